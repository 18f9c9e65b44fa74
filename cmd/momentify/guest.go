package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"momentify/internal/gallery"
	"momentify/internal/models"
	"momentify/internal/page"
)

const watchHelp = `commands: n next, p previous, o <n> open item n, esc close,
          m load more, u <file...> upload, r redraw, q quit`

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <slug>",
		Short: "Open an album and follow new memories live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			keys := gallery.NewKeys()
			p := a.newPage(true, keys)
			defer p.Close()

			if err := p.Open(ctx, args[0]); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			redraw := func() {
				if p.Memory() == nil {
					return
				}
				if err := p.Render(out); err != nil {
					a.log.Warn("render", "err", err)
				}
			}
			p.Reconciler().Cache().OnChange(func([]models.MediaItem) { redraw() })
			p.Gallery().Navigator().OnChange(func(v gallery.View) {
				if v.Phase == gallery.PhaseIdle {
					redraw()
				}
			})
			redraw()
			fmt.Fprintln(out, watchHelp)

			lines := make(chan string)
			go func() {
				defer close(lines)
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					lines <- sc.Text()
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if quit := handleWatchInput(ctx, p, keys, strings.Fields(line), redraw); quit {
						return nil
					}
				}
			}
		},
	}
}

func handleWatchInput(ctx context.Context, p *page.Page, keys *gallery.Keys, fields []string, redraw func()) (quit bool) {
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "q", "quit":
		return true
	case "n":
		keys.Press(gallery.KeyArrowRight)
	case "p":
		keys.Press(gallery.KeyArrowLeft)
	case "esc":
		keys.Press(gallery.KeyEscape)
	case "o":
		if len(fields) < 2 {
			break
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || !p.Gallery().Navigator().Open(n-1) {
			fmt.Fprintf(os.Stderr, "no item %s\n", fields[1])
		}
	case "m":
		if !p.HasMore() {
			fmt.Fprintln(os.Stderr, "no older memories")
			break
		}
		if _, err := p.LoadMore(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "load more: %v\n", err)
		}
	case "u":
		if _, err := p.Upload(fields[1:]...); err != nil {
			fmt.Fprintf(os.Stderr, "upload: %v\n", err)
		}
	case "r":
		redraw()
	default:
		fmt.Fprintln(os.Stderr, watchHelp)
	}
	return false
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <slug> <file...>",
		Short: "Upload photos and videos to an album",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.newPage(false, nil)
			defer p.Close()

			if err := p.Open(cmd.Context(), args[0]); err != nil {
				return err
			}
			ids, err := p.Upload(args[1:]...)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return fmt.Errorf("no files accepted")
			}
			if err := p.Uploads().Wait(); err != nil {
				return fmt.Errorf("%d of %d uploads failed", countErrors(err), len(ids))
			}
			return nil
		},
	}
}

// countErrors counts the errors joined into err.
func countErrors(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

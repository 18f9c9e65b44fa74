package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"momentify/internal/credentials"
	"momentify/internal/models"
)

const dateLayout = "2006-01-02"

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if err := a.admin().Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Admin email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Admin password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored admin session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.admin().Logout()
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.admin().Identity()
			if errors.Is(err, credentials.ErrNoCredentials) {
				return errors.New("not logged in")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", id.Email, id.ID)
			return nil
		},
	}
}

func newMemoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "memories",
		Aliases: []string{"memory"},
		Short:   "Manage albums",
	}
	cmd.AddCommand(
		newMemoriesListCmd(a),
		newMemoriesShowCmd(a),
		newMemoriesCreateCmd(a),
		newMemoriesUpdateCmd(a),
		newMemoriesDeleteCmd(a),
		newMemoriesDownloadCmd(a),
	)
	return cmd
}

func newMemoriesListCmd(a *app) *cobra.Command {
	var page, perPage int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List albums",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, total, err := a.admin().List(cmd.Context(), page, perPage)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tTITLE\tEVENT DATE\tMEDIA")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.ID, r.Title, r.EventDate.Format(dateLayout), r.MediaCount)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d albums\n", len(records), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "Albums per page")
	return cmd
}

func newMemoriesShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <slug>",
		Short: "Show an album and its media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.admin().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", r.Title, r.ID)
			if r.Description != "" {
				fmt.Fprintln(out, r.Description)
			}
			fmt.Fprintf(out, "Event date: %s\nQR code:    %s\nMedia:      %d\n\n", r.EventDate.Format(dateLayout), r.QRCodeURL, r.MediaCount)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILE\tTYPE\tSIZE")
			for _, m := range r.MediaItems {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", m.ID, m.Filename, m.MimeType, m.Size)
			}
			return tw.Flush()
		},
	}
}

// memoryFlags binds the editable album fields.
type memoryFlags struct {
	title       string
	description string
	eventDate   string
	cover       string
}

func (f *memoryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Album title")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Album description")
	cmd.Flags().StringVar(&f.eventDate, "date", "", "Event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.cover, "cover", "", "Cover image file")
}

func (f *memoryFlags) input() (models.MemoryInput, error) {
	in := models.MemoryInput{Title: f.title, Description: f.description, CoverPath: f.cover}
	if f.eventDate != "" {
		d, err := time.ParseInLocation(dateLayout, f.eventDate, time.Local)
		if err != nil {
			return in, fmt.Errorf("invalid --date %q: %w", f.eventDate, err)
		}
		in.EventDate = d
	}
	return in, nil
}

func newMemoriesCreateCmd(a *app) *cobra.Command {
	var flags memoryFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an album",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input()
			if err != nil {
				return err
			}
			r, err := a.admin().Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", r.ID)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newMemoriesUpdateCmd(a *app) *cobra.Command {
	var flags memoryFlags
	cmd := &cobra.Command{
		Use:   "update <slug>",
		Short: "Update an album",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := a.admin()
			current, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			in, err := flags.input()
			if err != nil {
				return err
			}
			// Unset flags keep the current values.
			if !cmd.Flags().Changed("title") {
				in.Title = current.Title
			}
			if !cmd.Flags().Changed("description") {
				in.Description = current.Description
			}
			if !cmd.Flags().Changed("date") {
				in.EventDate = current.EventDate
			}
			r, err := svc.Update(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", r.ID)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newMemoriesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete an album and its media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.admin().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newMemoriesDownloadCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <slug>",
		Short: "Download every file of an album as a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.admin().Download(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d bytes\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (default <slug>.zip)")
	return cmd
}

func newMediaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Manage media items",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a media item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.admin().DeleteMedia(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted media %s\n", args[0])
			return nil
		},
	})
	return cmd
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"momentify/internal/admin"
	"momentify/internal/apiclient"
	"momentify/internal/config"
	"momentify/internal/credentials"
	"momentify/internal/gallery"
	"momentify/internal/logging"
	"momentify/internal/notify"
	"momentify/internal/page"
	"momentify/internal/socket"
	"momentify/internal/storage"
)

var configFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	rootCmd := newRootCommand(a)
	err := rootCmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "momentify: %v\n", err)
		os.Exit(1)
	}
}

// app holds the process wide dependencies, built once before any command
// runs.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	db       *storage.DB
	session  *credentials.Session
	client   *apiclient.Client
	notifier *notify.Writer
}

func (a *app) init() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	db, err := storage.InitDB(cfg.DatabasePath())
	if err != nil {
		return err
	}
	a.db = db
	a.session = credentials.NewSession("")
	a.notifier = notify.NewWriter(os.Stdout, a.log)
	a.client = apiclient.New(apiclient.Options{
		BaseURL:     cfg.APIURL,
		Timeout:     cfg.HTTPTimeout,
		Credentials: db,
		Session:     a.session,
		Logger:      a.log,
		OnSessionExpired: func() {
			fmt.Fprintln(os.Stderr, "Session expired, please log in again.")
		},
	})
	a.log.Debug("client configured", "api_url", cfg.APIURL, "ws_url", cfg.WSURL, "db", cfg.DatabasePath())
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("close database", "err", err)
		}
	}
}

func (a *app) admin() *admin.Service {
	return admin.NewService(a.client, a.log)
}

// newPage builds an album page. live is false for one-shot commands that do
// not need push updates.
func (a *app) newPage(live bool, keys gallery.KeySource) *page.Page {
	opts := page.Options{
		API:       a.client,
		Notifier:  a.notifier,
		Keys:      keys,
		SessionID: a.session.ID(),
		MaxBytes:  a.cfg.MaxUploadBytes,
		Logger:    a.log,
	}
	if live {
		header := http.Header{}
		header.Set("X-Session-Id", a.session.ID())
		opts.Live = socket.NewSession(socket.Options{
			URL:         a.cfg.WSURL,
			MaxAttempts: a.cfg.ReconnectAttempts,
			Delay:       a.cfg.ReconnectDelay,
			DelayMax:    a.cfg.ReconnectDelayMax,
			Header:      header,
			Logger:      a.log,
			OnStateChange: func(st socket.State) {
				a.log.Info("live updates", "state", st.String())
			},
		})
	}
	return page.New(opts)
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "momentify",
		Short: "Momentify memory gallery client",
		Long: `Momentify browses event albums, uploads photos and videos to them and
shows new memories from other guests as they arrive. Admin commands manage
albums and their media.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "momentify.yaml", "YAML config file (optional)")
	cmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newWatchCmd(a),
		newUploadCmd(a),
		newMemoriesCmd(a),
		newMediaCmd(a),
	)
	return cmd
}

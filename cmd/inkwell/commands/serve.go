package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hypergopher/inkwell"
	"github.com/hypergopher/inkwell/config"
	"github.com/hypergopher/inkwell/web"
)

var (
	// Serve flags
	addr            string
	fullTextSearch  bool
	shutdownTimeout time.Duration
)

// serveCmd runs the web server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the blog web server",
	Long: `Run the blog web server. The schema is created on startup when missing.

Examples:
  inkwell serve                       # Listen on the configured address
  inkwell serve --addr :8080          # Override the listen address
  inkwell serve --full-text           # Search post bodies as well as titles`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	if addr != "" {
		cfg.Addr = addr
	}
	if !cfg.Debug && cfg.SecretKey == config.DefaultSecretKey {
		logger.Warn("running in production with the default secret key, set SECRET_KEY")
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	blog, err := inkwell.NewBlog(inkwell.Options{Store: store, Logger: logger})
	if err != nil {
		return err
	}

	server, err := web.New(web.Options{
		Service:        inkwell.NewService(blog, logger),
		Accounts:       inkwell.NewAccounts(store, logger),
		Logger:         logger,
		SecretKey:      cfg.SecretKey,
		Debug:          cfg.Debug,
		HostAllowed:    cfg.HostAllowed,
		MediaRoot:      cfg.MediaRoot,
		StaticRoot:     cfg.StaticRoot,
		FullTextSearch: fullTextSearch,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return <-errCh
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to the configured address)")
	serveCmd.Flags().BoolVar(&fullTextSearch, "full-text", false, "Use the store's full-text index for search")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")
}

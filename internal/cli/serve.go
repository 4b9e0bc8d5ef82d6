package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openarc/strata/internal/atomic"
	"github.com/openarc/strata/internal/config"
	"github.com/openarc/strata/internal/httpapi"
	"github.com/openarc/strata/internal/schema"
	"github.com/openarc/strata/internal/store"
)

// shutdownTimeout bounds graceful drain of in-flight batches.
const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the atomic operations server",
		Long: `Run the HTTP server exposing the atomic operations endpoint.

Loads the CUE resource definitions, opens (or creates) the SQLite store,
and serves POST /operations until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
	return cmd
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading configuration", err)
	}

	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format, opts.Verbose)

	reg, err := schema.LoadDir(cfg.Schema.Dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading resource definitions", err)
	}
	logger.Info("resource definitions loaded",
		"dir", cfg.Schema.Dir,
		"types", len(reg.Types()))

	s, err := store.Open(cfg.Database.Path, reg, store.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "opening store", err)
	}
	defer s.Close()

	proc := atomic.NewProcessor(s, reg, atomic.WithProcessorLogger(logger))
	handler := httpapi.NewHandler(proc,
		httpapi.WithLogger(logger),
		httpapi.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "server failed", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return WrapExitError(ExitCommandError, "shutdown", err)
		}
	}

	return nil
}

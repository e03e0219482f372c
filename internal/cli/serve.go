package cli

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apphttp "rashody/internal/http"
	applog "rashody/internal/log"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, err := LoadAndValidateConfig(opts.envFile)
	if err != nil {
		return err
	}
	logger, err := SetupLogger(cfg)
	if err != nil {
		return err
	}
	ctx, stop := GracefulShutdown(parent, logger)
	defer stop()

	a, err := bootstrap(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Cleanup failed", applog.FieldError, err)
		}
	}()
	a.startCacheCleanup(ctx)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               net.JoinHostPort("", cfg.Port),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Location:           a.loc,
	}, apphttp.Deps{
		Auth:     a.accounts,
		Expenses: a.expenses,
		Reports:  a.reports,
		Store:    a.store,
	}, logger)

	logger.Info("Starting rashody API",
		applog.FieldOperation, applog.OpStartup,
		applog.FieldBackend, cfg.DataBackend,
		"version", Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

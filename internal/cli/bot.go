package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"rashody/internal/bot"
	applog "rashody/internal/log"
)

func newBotCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), opts)
		},
	}
}

func runBot(parent context.Context, opts *rootOptions) error {
	cfg, err := LoadAndValidateConfig(opts.envFile)
	if err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
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

	api, err := bot.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return err
	}

	sessions := bot.NewDefaultSessionStore(cfg.BotSessionTTL)
	a.caches.Register(sessions.Cleaner())
	a.startCacheCleanup(ctx)

	controller := bot.NewController(a.accounts, a.expenses, a.reports, logger)
	telegram := bot.NewTelegram(api, controller, sessions, bot.TelegramConfig{
		PollTimeout: cfg.BotPollTimeout,
		Workers:     cfg.BotWorkers,
	}, logger)

	logger.Info("Starting rashody bot",
		applog.FieldOperation, applog.OpStartup,
		applog.FieldBackend, cfg.DataBackend,
		applog.FieldUsername, api.Self.UserName)

	if err := telegram.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

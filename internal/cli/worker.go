package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rashody/internal/amqp"
	applog "rashody/internal/log"
	"rashody/internal/sheets"
	gsheet "rashody/internal/sheets/google"
	sheetsmem "rashody/internal/sheets/memory"
	"rashody/internal/worker"
)

type workerOptions struct {
	dryRun        bool
	backfillSince string
}

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	wopts := &workerOptions{}
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Export created expenses to Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), opts, wopts)
		},
	}
	cmd.Flags().BoolVar(&wopts.dryRun, "dry-run", false, "keep exported rows in memory instead of writing to the sheet")
	cmd.Flags().StringVar(&wopts.backfillSince, "backfill-since", "", "export every expense created on or after this date (YYYY-MM-DD) before consuming")
	return cmd
}

func runWorker(parent context.Context, opts *rootOptions, wopts *workerOptions) error {
	cfg, err := LoadAndValidateConfig(opts.envFile)
	if err != nil {
		return err
	}
	if wopts.dryRun {
		if cfg.AMQPURL == "" {
			return errors.New("AMQP_URL is required to run the export worker")
		}
	} else if err := cfg.ValidateWorker(); err != nil {
		return err
	}
	logger, err := SetupLogger(cfg)
	if err != nil {
		return err
	}
	ctx, stop := GracefulShutdown(parent, logger)
	defer stop()

	a, err := bootstrap(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Cleanup failed", applog.FieldError, err)
		}
	}()

	var exporter sheets.ExpenseExporter
	if wopts.dryRun {
		logger.Warn("Dry run: rows are kept in memory only")
		exporter = sheetsmem.New()
	} else {
		exporter, err = gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Location:        a.loc,
		}, logger)
		if err != nil {
			return fmt.Errorf("init google sheets: %w", err)
		}
	}

	w := worker.NewExportWorker(a.store, exporter, logger)

	if wopts.backfillSince != "" {
		since, err := time.ParseInLocation("2006-01-02", wopts.backfillSince, a.loc)
		if err != nil {
			return fmt.Errorf("--backfill-since: %w", err)
		}
		if _, err := w.Backfill(ctx, since); err != nil {
			logger.Error("Backfill incomplete", applog.FieldError, err)
		}
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Close()

	logger.Info("Starting rashody export worker",
		applog.FieldOperation, applog.OpStartup,
		applog.FieldQueue, cfg.AMQPQueue,
		"dry_run", wopts.dryRun)

	if err := client.Run(ctx, w.HandleExpenseCreated); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Package worker exports stored expenses to the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rashody/internal/amqp"
	"rashody/internal/core"
	applog "rashody/internal/log"
	"rashody/internal/sheets"
	"rashody/internal/storage"
)

// Store is the read access the worker needs.
type Store interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	ListExpenses(ctx context.Context, f storage.ExpenseFilter) ([]core.Expense, error)
}

// ExportWorker appends expenses announced on the broker to the spreadsheet.
type ExportWorker struct {
	store    Store
	exporter sheets.ExpenseExporter
	logger   *applog.Logger
}

func NewExportWorker(store Store, exporter sheets.ExpenseExporter, logger *applog.Logger) *ExportWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleExpenseCreated exports one expense. Expenses deleted before export
// are skipped; any other error is returned so the message is redelivered.
func (w *ExportWorker) HandleExpenseCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	e, err := w.store.GetExpense(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Expense no longer exists, skipping export",
			applog.FieldExpenseID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense %d: %w", msg.ID, err)
	}
	return w.export(ctx, e)
}

func (w *ExportWorker) export(ctx context.Context, e core.Expense) error {
	owner, err := w.store.GetUserByID(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("get owner of expense %d: %w", e.ID, err)
	}

	ref, err := w.exporter.AppendExpense(ctx, sheets.NewRow(e, owner))
	if err != nil {
		return fmt.Errorf("export expense %d: %w", e.ID, err)
	}

	w.logger.InfoContext(ctx, "Expense exported",
		applog.FieldExpenseID, e.ID,
		applog.FieldUserID, e.UserID,
		applog.FieldOperation, applog.OpExport,
		"row_ref", ref)
	return nil
}

// Backfill exports every expense created at or after since, oldest first.
// It is used to recover from messages lost while the broker was unavailable.
func (w *ExportWorker) Backfill(ctx context.Context, since time.Time) (exported int, err error) {
	expenses, err := w.store.ListExpenses(ctx, storage.ExpenseFilter{From: since})
	if err != nil {
		return 0, fmt.Errorf("list expenses since %s: %w", since.Format(time.RFC3339), err)
	}

	var errs []error
	for i := len(expenses) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		if err := w.export(ctx, expenses[i]); err != nil {
			w.logger.ErrorContext(ctx, "Backfill export failed",
				applog.FieldExpenseID, expenses[i].ID,
				applog.FieldError, err)
			errs = append(errs, err)
			continue
		}
		exported++
	}

	w.logger.InfoContext(ctx, "Backfill finished",
		"exported", exported,
		"failed", len(errs))
	return exported, errors.Join(errs...)
}

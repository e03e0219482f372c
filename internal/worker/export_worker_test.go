package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rashody/internal/amqp"
	"rashody/internal/core"
	"rashody/internal/sheets"
	sheetsmem "rashody/internal/sheets/memory"
	"rashody/internal/storage/memory"
)

type failingExporter struct{}

func (failingExporter) AppendExpense(context.Context, sheets.Row) (string, error) {
	return "", errors.New("quota exceeded")
}

func seed(t *testing.T, store *memory.Store, externalID int64, amount int64, category string, at time.Time) core.Expense {
	t.Helper()
	ctx := context.Background()
	u, _, err := store.InsertUserIfAbsent(ctx, core.Identity{ExternalID: externalID}.NewUser())
	require.NoError(t, err)
	e, err := store.CreateExpense(ctx, core.Expense{
		UserID: u.ID, Amount: core.MoneyFromCents(amount), Category: category, CreatedAt: at,
	})
	require.NoError(t, err)
	return e
}

func TestExportWorker_HandleExpenseCreated(t *testing.T) {
	store := memory.NewStore()
	exporter := sheetsmem.New()
	w := NewExportWorker(store, exporter, nil)
	e := seed(t, store, 42, 30000, "еда", time.Date(2025, 7, 3, 9, 0, 0, 0, time.UTC))

	require.NoError(t, w.HandleExpenseCreated(context.Background(), amqp.NewExpenseCreatedMessage(e.ID, e.UserID)))

	rows := exporter.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, e.ID, rows[0].ExpenseID)
	assert.Equal(t, "tg_42", rows[0].Username)
	assert.Equal(t, "еда", rows[0].Category)
	assert.Equal(t, "300.00", rows[0].Amount.String())
}

func TestExportWorker_SkipsDeletedExpense(t *testing.T) {
	w := NewExportWorker(memory.NewStore(), sheetsmem.New(), nil)
	err := w.HandleExpenseCreated(context.Background(), amqp.NewExpenseCreatedMessage(99, 1))
	assert.NoError(t, err)
}

func TestExportWorker_ExportErrorIsReturned(t *testing.T) {
	store := memory.NewStore()
	e := seed(t, store, 1, 100, "еда", time.Now())
	w := NewExportWorker(store, failingExporter{}, nil)

	err := w.HandleExpenseCreated(context.Background(), amqp.NewExpenseCreatedMessage(e.ID, e.UserID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestExportWorker_Backfill(t *testing.T) {
	store := memory.NewStore()
	exporter := sheetsmem.New()
	w := NewExportWorker(store, exporter, nil)
	since := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	seed(t, store, 1, 100, "old", since.Add(-time.Hour))
	first := seed(t, store, 1, 200, "first", since.Add(time.Hour))
	second := seed(t, store, 2, 300, "second", since.Add(2*time.Hour))

	n, err := w.Backfill(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := exporter.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ExpenseID, "oldest first")
	assert.Equal(t, second.ID, rows[1].ExpenseID)
}

func TestExportWorker_BackfillCollectsErrors(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, 1, 100, "a", time.Now())
	seed(t, store, 1, 100, "b", time.Now())

	n, err := NewExportWorker(store, failingExporter{}, nil).Backfill(context.Background(), time.Time{})
	assert.Equal(t, 0, n)
	assert.Error(t, err)
}

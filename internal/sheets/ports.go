// Package sheets defines the export port for spreadsheet backends.
package sheets

import (
	"context"
	"time"

	"rashody/internal/core"
)

// Row is one exported expense.
type Row struct {
	ExpenseID int64
	CreatedAt time.Time
	Username  string
	Category  string
	Amount    core.Money
}

// NewRow joins an expense with its owner.
func NewRow(e core.Expense, owner core.User) Row {
	return Row{
		ExpenseID: e.ID,
		CreatedAt: e.CreatedAt,
		Username:  owner.Username,
		Category:  e.Category,
		Amount:    e.Amount,
	}
}

// Values renders the row in column order: date, user, category, amount, id.
func (r Row) Values(loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	return []any{
		r.CreatedAt.In(loc).Format("2006-01-02 15:04"),
		r.Username,
		r.Category,
		r.Amount.String(),
		r.ExpenseID,
	}
}

// ExpenseExporter appends expenses to an external spreadsheet.
type ExpenseExporter interface {
	AppendExpense(ctx context.Context, row Row) (rowRef string, err error)
}

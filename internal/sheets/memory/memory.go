// Package memory keeps exported rows in process. The worker uses it for dry
// runs and tests use it in place of Google Sheets.
package memory

import (
	"context"
	"fmt"
	"sync"

	"rashody/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows []sheets.Row
	seen map[int64]int
}

var _ sheets.ExpenseExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{seen: make(map[int64]int)}
}

// AppendExpense stores the row. Re-exporting an expense replaces its row so
// redelivered messages do not duplicate it.
func (e *Exporter) AppendExpense(_ context.Context, row sheets.Row) (string, error) {
	if row.ExpenseID <= 0 {
		return "", fmt.Errorf("row without expense id")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if i, ok := e.seen[row.ExpenseID]; ok {
		e.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	e.rows = append(e.rows, row)
	e.seen[row.ExpenseID] = len(e.rows) - 1
	return fmt.Sprintf("mem:%d", len(e.rows)), nil
}

// Rows returns a copy of the exported rows in export order.
func (e *Exporter) Rows() []sheets.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sheets.Row(nil), e.rows...)
}

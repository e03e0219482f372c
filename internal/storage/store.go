// Package storage persists accounts and expenses.
package storage

import (
	"context"
	"time"

	"rashody/internal/core"
)

// ExpenseFilter narrows ListExpenses. Zero values mean "no constraint".
// From is inclusive and To exclusive.
type ExpenseFilter struct {
	UserID   int64
	Category string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

type ExpenseStore interface {
	// CreateExpense assigns ID and, when zero, CreatedAt.
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	// ListExpenses returns matches newest first.
	ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error)
	// ListByUserBetween returns one user's expenses with start <= created_at < end,
	// oldest first.
	ListByUserBetween(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error)
	// UpdateExpense rewrites amount and category. Owner and CreatedAt are immutable.
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
}

type UserStore interface {
	// InsertUserIfAbsent creates the user unless the username is taken and
	// returns the stored record. created reports whether this call inserted it.
	InsertUserIfAbsent(ctx context.Context, u core.User) (user core.User, created bool, err error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	GetUserByTokenHash(ctx context.Context, hash string) (core.User, error)
	SetAPITokenHash(ctx context.Context, userID int64, hash string) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	ExpenseStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

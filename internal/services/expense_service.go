package services

import (
	"context"
	"fmt"

	"rashody/internal/amqp"
	"rashody/internal/core"
	applog "rashody/internal/log"
	"rashody/internal/storage"
)

// Publisher announces stored expenses to asynchronous consumers.
type Publisher interface {
	PublishExpenseCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error
	Close() error
}

// ExpenseUpdate carries the mutable fields of an expense. Nil means unchanged.
type ExpenseUpdate struct {
	Amount   *core.Money
	Category *string
}

// ExpenseService orchestrates expense operations across the store and the broker.
type ExpenseService struct {
	store     storage.ExpenseStore
	publisher Publisher
	logger    *applog.Logger
}

// NewExpenseService builds the service. publisher may be nil when no broker is configured.
func NewExpenseService(store storage.ExpenseStore, publisher Publisher, logger *applog.Logger) *ExpenseService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentExpense),
	}
}

// CreateExpense stores an expense owned by userID and publishes its creation.
func (s *ExpenseService) CreateExpense(ctx context.Context, userID int64, category string, amount core.Money) (core.Expense, error) {
	e := core.Expense{UserID: userID, Amount: amount, Category: category}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	stored, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	// The expense is already persisted; a broker failure must not undo it.
	if err := s.publishCreated(ctx, stored); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense created message",
			applog.FieldExpenseID, stored.ID,
			applog.FieldError, err)
	}
	return stored, nil
}

func (s *ExpenseService) publishCreated(ctx context.Context, e core.Expense) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishExpenseCreated(ctx, amqp.NewExpenseCreatedMessage(e.ID, e.UserID))
}

// GetExpense returns the expense if userID owns it. Expenses of other users
// are reported as core.ErrNotFound.
func (s *ExpenseService) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if e.UserID != userID {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

// ListExpenses lists the caller's expenses. Any UserID in the filter is overridden.
func (s *ExpenseService) ListExpenses(ctx context.Context, userID int64, f storage.ExpenseFilter) ([]core.Expense, error) {
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return nil, core.ErrInvalidTimeRange
	}
	f.UserID = userID
	return s.store.ListExpenses(ctx, f)
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, userID, id int64, upd ExpenseUpdate) (core.Expense, error) {
	e, err := s.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	if upd.Amount != nil {
		e.Amount = *upd.Amount
	}
	if upd.Category != nil {
		e.Category = *upd.Category
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	updated, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldExpenseID, updated.ID,
		applog.FieldUserID, userID)
	return updated, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, userID, id int64) error {
	if _, err := s.GetExpense(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id,
		applog.FieldUserID, userID)
	return nil
}

// Close closes the broker connection. The store is owned by the caller.
func (s *ExpenseService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close expense service: amqp: %w", err)
	}
	return nil
}

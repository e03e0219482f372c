// Package storagetest holds behaviour checks shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rashody/internal/core"
	"rashody/internal/storage"
)

// UserDeleter is implemented by stores that support removing accounts.
type UserDeleter interface {
	DeleteUser(ctx context.Context, userID int64) error
}

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("InsertUserIfAbsent", func(t *testing.T) { testInsertUserIfAbsent(t, newStore(t)) })
	t.Run("APIToken", func(t *testing.T) { testAPIToken(t, newStore(t)) })
	t.Run("ExpenseCRUD", func(t *testing.T) { testExpenseCRUD(t, newStore(t)) })
	t.Run("ListExpenses", func(t *testing.T) { testListExpenses(t, newStore(t)) })
	t.Run("ListByUserBetween", func(t *testing.T) { testListByUserBetween(t, newStore(t)) })
	t.Run("LastSupportedMonth", func(t *testing.T) { testLastSupportedMonth(t, newStore(t)) })
	t.Run("DeleteUserCascades", func(t *testing.T) { testDeleteUserCascades(t, newStore(t)) })
}

func mustMoney(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseMoney(s)
	require.NoError(t, err)
	return m
}

func newUser(t *testing.T, s storage.Store, externalID int64) core.User {
	t.Helper()
	u, created, err := s.InsertUserIfAbsent(context.Background(),
		core.Identity{ExternalID: externalID, FirstName: "Ivan"}.NewUser())
	require.NoError(t, err)
	require.True(t, created)
	return u
}

func testInsertUserIfAbsent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	identity := core.Identity{ExternalID: 42, FirstName: "Ivan", LastName: "Petrov"}

	first, created, err := s.InsertUserIfAbsent(ctx, identity.NewUser())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "tg_42", first.Username)
	assert.Equal(t, "Ivan", first.FirstName)
	assert.Equal(t, "Petrov", first.LastName)
	assert.False(t, first.CreatedAt.IsZero())

	renamed := identity
	renamed.FirstName = "Vanya"
	second, created, err := s.InsertUserIfAbsent(ctx, renamed.NewUser())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ivan", second.FirstName, "display names are only set at creation")

	byName, err := s.GetUserByUsername(ctx, "tg_42")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byName.ID)

	byID, err := s.GetUserByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "tg_42", byID.Username)

	_, err = s.GetUserByUsername(ctx, "tg_43")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testAPIToken(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, 7)

	_, err := s.GetUserByTokenHash(ctx, "")
	assert.ErrorIs(t, err, core.ErrEmptyAPIToken)

	require.NoError(t, s.SetAPITokenHash(ctx, u.ID, "abc123"))
	got, err := s.GetUserByTokenHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "abc123", got.APITokenHash)

	require.NoError(t, s.SetAPITokenHash(ctx, u.ID, ""))
	_, err = s.GetUserByTokenHash(ctx, "abc123")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, s.SetAPITokenHash(ctx, 9999, "x"), core.ErrNotFound)
}

func testExpenseCRUD(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, 1)
	at := time.Date(2025, 7, 15, 10, 30, 0, 123456000, time.UTC)

	created, err := s.CreateExpense(ctx, core.Expense{
		UserID: u.ID, Amount: mustMoney(t, "300"), Category: "еда", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := s.GetExpense(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)
	assert.Equal(t, "еда", got.Category)
	assert.Equal(t, "300.00", got.Amount.String())
	assert.True(t, at.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, at)

	got.Amount = mustMoney(t, "12.5")
	got.Category = "кафе"
	got.UserID = u.ID + 100
	updated, err := s.UpdateExpense(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "12.50", updated.Amount.String())
	assert.Equal(t, "кафе", updated.Category)
	assert.Equal(t, u.ID, updated.UserID, "owner is immutable")
	assert.True(t, at.Equal(updated.CreatedAt))

	_, err = s.CreateExpense(ctx, core.Expense{UserID: u.ID, Amount: mustMoney(t, "1"), Category: " "})
	assert.ErrorIs(t, err, core.ErrEmptyCategory)

	require.NoError(t, s.DeleteExpense(ctx, created.ID))
	_, err = s.GetExpense(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteExpense(ctx, created.ID), core.ErrNotFound)

	_, err = s.UpdateExpense(ctx, core.Expense{ID: created.ID, Amount: mustMoney(t, "1"), Category: "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testListExpenses(t *testing.T, s storage.Store) {
	ctx := context.Background()
	alice := newUser(t, s, 1)
	bob := newUser(t, s, 2)
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	for i, c := range []struct {
		user     int64
		category string
	}{
		{alice.ID, "еда"}, {alice.ID, "транспорт"}, {bob.ID, "еда"}, {alice.ID, "еда"},
	} {
		_, err := s.CreateExpense(ctx, core.Expense{
			UserID: c.user, Amount: mustMoney(t, "10"), Category: c.category,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	all, err := s.ListExpenses(ctx, storage.ExpenseFilter{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt), "newest first")

	food, err := s.ListExpenses(ctx, storage.ExpenseFilter{UserID: alice.ID, Category: "еда"})
	require.NoError(t, err)
	assert.Len(t, food, 2)

	window, err := s.ListExpenses(ctx, storage.ExpenseFilter{
		UserID: alice.ID, From: base.Add(time.Hour), To: base.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "транспорт", window[0].Category)

	page, err := s.ListExpenses(ctx, storage.ExpenseFilter{UserID: alice.ID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	tail, err := s.ListExpenses(ctx, storage.ExpenseFilter{UserID: alice.ID, Offset: 2})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, all[2].ID, tail[0].ID)

	none, err := s.ListExpenses(ctx, storage.ExpenseFilter{UserID: 9999})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testListByUserBetween(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, 1)
	other := newUser(t, s, 2)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	add := func(user int64, amount, category string, at time.Time) {
		_, err := s.CreateExpense(ctx, core.Expense{
			UserID: user, Amount: mustMoney(t, amount), Category: category, CreatedAt: at,
		})
		require.NoError(t, err)
	}
	add(u.ID, "1", "до", start.Add(-time.Microsecond))
	add(u.ID, "10", "еда", start)
	add(u.ID, "5", "транспорт", start.Add(48*time.Hour))
	add(u.ID, "3", "еда", end.Add(-time.Microsecond))
	add(u.ID, "1", "после", end)
	add(other.ID, "100", "еда", start.Add(time.Hour))

	got, err := s.ListByUserBetween(ctx, u.ID, start, end)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "еда", got[0].Category)
	assert.Equal(t, "транспорт", got[1].Category)
	assert.Equal(t, "еда", got[2].Category)

	_, err = s.ListByUserBetween(ctx, u.ID, end, start)
	assert.ErrorIs(t, err, core.ErrInvalidTimeRange)
}

func testLastSupportedMonth(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser(t, s, 1)
	p, err := core.NewMonthPeriod(core.MaxYear, 12)
	require.NoError(t, err)
	start, end := p.Window(time.UTC)

	_, err = s.CreateExpense(ctx, core.Expense{
		UserID: u.ID, Amount: mustMoney(t, "7"), Category: "еда", CreatedAt: end.Add(-time.Hour),
	})
	require.NoError(t, err)

	got, err := s.ListByUserBetween(ctx, u.ID, start, end)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "еда", got[0].Category)
}

func testDeleteUserCascades(t *testing.T, s storage.Store) {
	deleter, ok := s.(UserDeleter)
	if !ok {
		t.Skip("store does not support deleting users")
	}
	ctx := context.Background()
	u := newUser(t, s, 1)
	e, err := s.CreateExpense(ctx, core.Expense{UserID: u.ID, Amount: mustMoney(t, "1"), Category: "еда"})
	require.NoError(t, err)

	require.NoError(t, deleter.DeleteUser(ctx, u.ID))
	_, err = s.GetExpense(ctx, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// Package memory is an in-process storage.Store used by tests and by
// DATA_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rashody/internal/core"
	"rashody/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[int64]core.User
	expenses map[int64]core.Expense
	nextUser int64
	nextExp  int64
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		now:      time.Now,
		users:    make(map[int64]core.User),
		expenses: make(map[int64]core.Expense),
	}
}

// WithClock replaces the time source used for server-assigned timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error                { return nil }

func (s *Store) InsertUserIfAbsent(_ context.Context, u core.User) (core.User, bool, error) {
	if u.Username == "" {
		return core.User{}, false, core.ErrInvalidIdentity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return existing, false, nil
		}
	}
	s.nextUser++
	u.ID = s.nextUser
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	u.CreatedAt = u.CreatedAt.UTC()
	s.users[u.ID] = u
	return u, true, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	return s.findUser(func(u core.User) bool { return u.Username == username })
}

func (s *Store) GetUserByTokenHash(_ context.Context, hash string) (core.User, error) {
	if hash == "" {
		return core.User{}, core.ErrEmptyAPIToken
	}
	return s.findUser(func(u core.User) bool { return u.APITokenHash == hash })
}

func (s *Store) findUser(match func(core.User) bool) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) SetAPITokenHash(_ context.Context, userID int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.APITokenHash = hash
	s.users[userID] = u
	return nil
}

// DeleteUser removes a user and, like the SQL schema, all of its expenses.
func (s *Store) DeleteUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return core.ErrNotFound
	}
	delete(s.users, userID)
	for id, e := range s.expenses {
		if e.UserID == userID {
			delete(s.expenses, id)
		}
	}
	return nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[e.UserID]; !ok {
		return core.Expense{}, core.ErrInvalidOwner
	}
	s.nextExp++
	e.ID = s.nextExp
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, f storage.ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	out := []core.Expense{}
	for _, e := range s.expenses {
		if f.UserID != 0 && e.UserID != f.UserID {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []core.Expense{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) ListByUserBetween(_ context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	if !end.After(start) {
		return nil, core.ErrInvalidTimeRange
	}
	s.mu.RLock()
	out := []core.Expense{}
	for _, e := range s.expenses {
		if e.UserID == userID && !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := core.ValidateCategory(e.Category); err != nil {
		return core.Expense{}, err
	}
	if err := e.Amount.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.expenses[e.ID]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	stored.Amount = e.Amount
	stored.Category = e.Category
	s.expenses[e.ID] = stored
	return stored, nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

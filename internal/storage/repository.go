package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"rashody/internal/core"
	applog "rashody/internal/log"
)

// SQLRepository implements Store on SQLite or PostgreSQL.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *applog.Logger
	now     func() time.Time
}

var _ Store = (*SQLRepository)(nil)

// SQLiteDSN builds the connection string for a database file, enabling
// foreign keys so that deleting a user cascades to its expenses.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(ctx context.Context, dbPath string, logger *applog.Logger) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	repo, err := open(ctx, DialectSQLite, SQLiteDSN(dbPath), logger)
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	repo.db.SetMaxOpenConns(1)
	return repo, nil
}

func NewPostgresRepository(ctx context.Context, databaseURL string, logger *applog.Logger) (*SQLRepository, error) {
	repo, err := open(ctx, DialectPostgres, databaseURL, logger)
	if err != nil {
		return nil, err
	}
	repo.db.SetMaxOpenConns(10)
	repo.db.SetConnMaxIdleTime(5 * time.Minute)
	return repo, nil
}

func open(ctx context.Context, dialect Dialect, dsn string, logger *applog.Logger) (*SQLRepository, error) {
	if logger == nil {
		logger = applog.Discard()
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLRepository{
		db:      db,
		dialect: dialect,
		logger:  logger.WithComponent(applog.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLRepository) Dialect() Dialect { return r.dialect }

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const userColumns = "id, username, first_name, last_name, api_token_hash, created_at"

func (r *SQLRepository) InsertUserIfAbsent(ctx context.Context, u core.User) (core.User, bool, error) {
	if u.Username == "" {
		return core.User{}, false, core.ErrInvalidIdentity
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	res, err := r.db.ExecContext(ctx, r.dialect.rebind(
		`INSERT INTO users (username, first_name, last_name, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`),
		u.Username, u.FirstName, u.LastName, r.dialect.timeValue(createdAt))
	if err != nil {
		return core.User{}, false, fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.User{}, false, fmt.Errorf("insert user %s: %w", u.Username, err)
	}

	stored, err := r.GetUserByUsername(ctx, u.Username)
	if err != nil {
		return core.User{}, false, err
	}
	if affected > 0 {
		r.logger.InfoContext(ctx, "User created",
			applog.FieldUserID, stored.ID,
			applog.FieldUsername, stored.Username)
	}
	return stored, affected > 0, nil
}

func (r *SQLRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

func (r *SQLRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.getUser(ctx, "username = ?", username)
}

func (r *SQLRepository) GetUserByTokenHash(ctx context.Context, hash string) (core.User, error) {
	if hash == "" {
		return core.User{}, core.ErrEmptyAPIToken
	}
	return r.getUser(ctx, "api_token_hash = ?", hash)
}

func (r *SQLRepository) getUser(ctx context.Context, where string, arg any) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		r.dialect.rebind("SELECT "+userColumns+" FROM users WHERE "+where), arg)

	var (
		u         core.User
		tokenHash sql.NullString
		createdAt dbTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &tokenHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.APITokenHash = tokenHash.String
	u.CreatedAt = createdAt.Time
	return u, nil
}

// SetAPITokenHash stores the hash of the user's bearer token. An empty hash revokes it.
func (r *SQLRepository) SetAPITokenHash(ctx context.Context, userID int64, hash string) error {
	value := sql.NullString{String: hash, Valid: hash != ""}
	res, err := r.db.ExecContext(ctx,
		r.dialect.rebind("UPDATE users SET api_token_hash = ? WHERE id = ?"), value, userID)
	if err != nil {
		return fmt.Errorf("set api token for user %d: %w", userID, err)
	}
	return expectAffected(res)
}

// DeleteUser removes a user; its expenses are removed by the foreign key cascade.
func (r *SQLRepository) DeleteUser(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind("DELETE FROM users WHERE id = ?"), userID)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", userID, err)
	}
	return expectAffected(res)
}

const expenseColumns = "id, user_id, amount_cents, category, created_at"

func (r *SQLRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)

	err := r.db.QueryRowContext(ctx, r.dialect.rebind(
		`INSERT INTO expenses (user_id, amount_cents, category, created_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`),
		e.UserID, e.Amount.Cents(), e.Category, r.dialect.timeValue(e.CreatedAt)).Scan(&e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	r.logger.InfoContext(ctx, "Expense saved",
		applog.FieldExpenseID, e.ID,
		applog.FieldUserID, e.UserID,
		applog.FieldCategory, e.Category,
		applog.FieldAmountCents, e.Amount.Cents(),
		applog.FieldBackend, string(r.dialect))
	return e, nil
}

func (r *SQLRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		r.dialect.rebind("SELECT "+expenseColumns+" FROM expenses WHERE id = ?"), id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLRepository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, r.dialect.timeValue(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, r.dialect.timeValue(f.To))
	}

	var q strings.Builder
	q.WriteString("SELECT " + expenseColumns + " FROM expenses")
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	q.WriteString(" ORDER BY created_at DESC, id DESC")
	switch {
	case f.Limit > 0:
		q.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	case f.Offset > 0 && r.dialect == DialectSQLite:
		q.WriteString(" LIMIT -1")
	}
	if f.Offset > 0 {
		q.WriteString(" OFFSET ?")
		args = append(args, f.Offset)
	}

	return r.queryExpenses(ctx, q.String(), args...)
}

func (r *SQLRepository) ListByUserBetween(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	if !end.After(start) {
		return nil, core.ErrInvalidTimeRange
	}
	return r.queryExpenses(ctx,
		"SELECT "+expenseColumns+` FROM expenses
		 WHERE user_id = ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC`,
		userID, r.dialect.timeValue(start), r.dialect.timeValue(end))
}

func (r *SQLRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := core.ValidateCategory(e.Category); err != nil {
		return core.Expense{}, err
	}
	if err := e.Amount.Validate(); err != nil {
		return core.Expense{}, err
	}

	res, err := r.db.ExecContext(ctx,
		r.dialect.rebind("UPDATE expenses SET amount_cents = ?, category = ? WHERE id = ?"),
		e.Amount.Cents(), e.Category, e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	if err := expectAffected(res); err != nil {
		return core.Expense{}, err
	}
	return r.GetExpense(ctx, e.ID)
}

func (r *SQLRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind("DELETE FROM expenses WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return expectAffected(res)
}

func (r *SQLRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e         core.Expense
		cents     int64
		createdAt dbTime
	)
	if err := row.Scan(&e.ID, &e.UserID, &cents, &e.Category, &createdAt); err != nil {
		return core.Expense{}, err
	}
	e.Amount = core.MoneyFromCents(cents)
	e.CreatedAt = createdAt.Time
	return e, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

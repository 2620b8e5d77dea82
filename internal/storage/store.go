// Package storage provides the SQLite record store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/records"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var _ records.Backend = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// DSN builds the connection string used for both the store and migrations.
// Foreign keys are enabled per connection so cascades apply on every one.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the connection; used by the readiness check.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), s.timestamp())
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	var c core.Category
	var typ string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type FROM categories WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&c.ID, &c.UserID, &c.Name, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.Type = core.CategoryType(typ)
	return c, nil
}

// DeleteCategory relies on the schema's ON DELETE rules for transactions,
// budgets and goals.
func (s *SQLiteStore) DeleteCategory(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	c, err := s.GetCategory(ctx, tx.UserID, tx.Category.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	now := s.now().UTC()
	tx.ID = uuid.NewString()
	tx.Category = c
	tx.Amount = tx.Amount.Round(2)
	tx.Version = 1
	tx.CreatedAt = now
	tx.UpdatedAt = now

	ts := now.Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, user_id, category_id, amount_cents, description, date, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, c.ID, core.Cents(tx.Amount), tx.Description, tx.Date.String(), tx.Version, ts, ts)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"category", c.Name,
		"amount_cents", core.Cents(tx.Amount),
		"date", tx.Date.String())
	return tx, nil
}

func (s *SQLiteStore) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	c, err := s.GetCategory(ctx, tx.UserID, tx.Category.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, amount_cents = ?, description = ?, date = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		c.ID, core.Cents(tx.Amount), tx.Description, tx.Date.String(), s.timestamp(), tx.ID, tx.UserID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, core.ErrNotFound)
	}
	return s.GetTransaction(ctx, tx.UserID, tx.ID)
}

const transactionColumns = `
	t.id, t.user_id, t.amount_cents, t.description, t.date, t.version, t.created_at, t.updated_at,
	c.id, c.user_id, c.name, c.type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx                          core.Transaction
		cents                       int64
		date, created, updated, typ string
	)
	err := row.Scan(&tx.ID, &tx.UserID, &cents, &tx.Description, &date, &tx.Version, &created, &updated,
		&tx.Category.ID, &tx.Category.UserID, &tx.Category.Name, &typ)
	if err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", date, err)
	}
	tx.Date = d
	tx.Amount = core.FromCents(cents)
	tx.Category.Type = core.CategoryType(typ)
	tx.CreatedAt = parseTimestamp(created)
	tx.UpdatedAt = parseTimestamp(updated)
	return tx, nil
}

func (s *SQLiteStore) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions t JOIN categories c ON c.id = t.category_id
		WHERE t.id = ? AND t.user_id = ?`, id, userID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (s *SQLiteStore) FindTransactions(ctx context.Context, userID string, from core.Date) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions t JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.date >= ?
		ORDER BY t.date, t.rowid`, userID, from.String())
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SumTransactions(ctx context.Context, q records.SumQuery) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND category_id = ? AND date >= ?`
	args := []any{q.UserID, q.CategoryID, q.From.String()}
	if !q.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, q.To.String())
	}
	switch q.Sign {
	case records.Positive:
		query += ` AND amount_cents > 0`
	case records.Negative:
		query += ` AND amount_cents < 0`
	}

	var cents int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}
	return core.FromCents(cents), nil
}

func (s *SQLiteStore) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	c, err := s.GetCategory(ctx, b.UserID, b.Category.ID)
	if err != nil {
		return core.Budget{}, err
	}
	b.ID = uuid.NewString()
	b.Category = c
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, category_id, month, amount_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, c.ID, b.Month.String(), core.Cents(b.Amount), s.timestamp())
	if isUniqueViolation(err) {
		return core.Budget{}, fmt.Errorf("budget for %s %s: %w", c.Name, b.Month, core.ErrConflict)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) FindBudgets(ctx context.Context, q records.BudgetQuery) ([]core.Budget, error) {
	query := `SELECT b.id, b.user_id, b.month, b.amount_cents, c.id, c.user_id, c.name, c.type
		FROM budgets b JOIN categories c ON c.id = b.category_id
		WHERE b.user_id = ?`
	args := []any{q.UserID}
	if q.CategoryID != "" {
		query += ` AND b.category_id = ?`
		args = append(args, q.CategoryID)
	}
	if q.Match == records.MonthFloor {
		query += ` AND b.month >= ?`
	} else {
		query += ` AND b.month = ?`
	}
	args = append(args, q.Month.String())
	query += ` ORDER BY b.month, b.rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var (
			b          core.Budget
			cents      int64
			month, typ string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &month, &cents,
			&b.Category.ID, &b.Category.UserID, &b.Category.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		if b.Month, err = core.ParseDate(month); err != nil {
			return nil, fmt.Errorf("parse budget month %q: %w", month, err)
		}
		b.Amount = core.FromCents(cents)
		b.Category.Type = core.CategoryType(typ)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	var categoryID sql.NullString
	if g.HasCategory() {
		if _, err := s.GetCategory(ctx, g.UserID, g.CategoryID); err != nil {
			return core.Goal{}, err
		}
		categoryID = sql.NullString{String: g.CategoryID, Valid: true}
	}
	now := s.now().UTC()
	g.ID = uuid.NewString()
	g.IsActive = true
	g.CreatedAt = now
	g.UpdatedAt = now

	ts := now.Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals
			(id, user_id, name, amount_cents, goal_type, target_date, category_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		g.ID, g.UserID, g.Name, core.Cents(g.Amount), string(g.GoalType), g.TargetDate.String(), categoryID, ts, ts)
	if err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (s *SQLiteStore) queryGoals(ctx context.Context, query string, args ...any) ([]core.Goal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g                core.Goal
			cents            int64
			goalType, target string
			categoryID       sql.NullString
			active           bool
			created, updated string
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &cents, &goalType, &target,
			&categoryID, &active, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.TargetDate, err = core.ParseDate(target); err != nil {
			return nil, fmt.Errorf("parse goal target date %q: %w", target, err)
		}
		g.Amount = core.FromCents(cents)
		g.GoalType = core.GoalType(goalType)
		g.CategoryID = categoryID.String
		g.IsActive = active
		g.CreatedAt = parseTimestamp(created)
		g.UpdatedAt = parseTimestamp(updated)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return out, nil
}

const goalColumns = `id, user_id, name, amount_cents, goal_type, target_date, category_id, is_active, created_at, updated_at`

func (s *SQLiteStore) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	return s.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY rowid`, userID)
}

func (s *SQLiteStore) FindActiveGoals(ctx context.Context, userID, categoryID string) ([]core.Goal, error) {
	return s.queryGoals(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE user_id = ? AND category_id = ? AND is_active = 1
		ORDER BY rowid`, userID, categoryID)
}

// SaveGoal persists the goal's active flag.
func (s *SQLiteStore) SaveGoal(ctx context.Context, g core.Goal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET is_active = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		g.IsActive, s.timestamp(), g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %s: %w", g.ID, core.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CreateNotification(ctx context.Context, userID, message string) (core.Notification, error) {
	n := core.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, message, is_read, created_at) VALUES (?, ?, ?, 0, ?)`,
		n.ID, n.UserID, n.Message, n.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return core.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string) ([]core.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, is_read, created_at FROM notifications
		WHERE user_id = ? ORDER BY rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var n core.Notification
		var created string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &created); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt = parseTimestamp(created)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, core.ErrNotFound)
	}
	return nil
}

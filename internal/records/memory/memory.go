// Package memory provides an in-process record store. It mirrors the
// lifecycle rules of the SQLite store and backs tests and DATA_BACKEND=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/records"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var _ records.Backend = (*Store)(nil)

type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	categories    map[string]core.Category
	transactions  []core.Transaction
	budgets       []core.Budget
	goals         []core.Goal
	notifications []core.Notification
}

func New() *Store {
	return &Store{
		now:        time.Now,
		categories: make(map[string]core.Category),
	}
}

// WithClock replaces the clock used for record timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) Close() error { return nil }

// CreateCategory stores a category, rejecting duplicates of (user, name, type).
func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.UserID == c.UserID && existing.Type == c.Type &&
			strings.EqualFold(existing.Name, c.Name) {
			return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return c, nil
}

// DeleteCategory removes the category with its transactions and budgets;
// goals bound to it lose their category.
func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	delete(s.categories, id)

	txs := s.transactions[:0]
	for _, tx := range s.transactions {
		if tx.Category.ID != id {
			txs = append(txs, tx)
		}
	}
	s.transactions = txs

	budgets := s.budgets[:0]
	for _, b := range s.budgets {
		if b.Category.ID != id {
			budgets = append(budgets, b)
		}
	}
	s.budgets = budgets

	for i := range s.goals {
		if s.goals[i].CategoryID == id {
			s.goals[i].CategoryID = ""
		}
	}
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[tx.Category.ID]
	if !ok || c.UserID != tx.UserID {
		return core.Transaction{}, fmt.Errorf("category %s: %w", tx.Category.ID, core.ErrNotFound)
	}
	now := s.now()
	tx.ID = uuid.NewString()
	tx.Category = c
	tx.Amount = tx.Amount.Round(2)
	tx.Version = 1
	tx.CreatedAt = now
	tx.UpdatedAt = now
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[tx.Category.ID]
	if !ok || c.UserID != tx.UserID {
		return core.Transaction{}, fmt.Errorf("category %s: %w", tx.Category.ID, core.ErrNotFound)
	}
	for i := range s.transactions {
		cur := &s.transactions[i]
		if cur.ID != tx.ID || cur.UserID != tx.UserID {
			continue
		}
		cur.Category = c
		cur.Amount = tx.Amount.Round(2)
		cur.Description = tx.Description
		cur.Date = tx.Date
		cur.Version++
		cur.UpdatedAt = s.now()
		return *cur, nil
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, core.ErrNotFound)
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.ID == id && tx.UserID == userID {
			tx.Category = s.categories[tx.Category.ID]
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) FindTransactions(_ context.Context, userID string, from core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != userID || tx.Date.Before(from.Time) {
			continue
		}
		tx.Category = s.categories[tx.Category.ID]
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) SumTransactions(_ context.Context, q records.SumQuery) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, tx := range s.transactions {
		if tx.UserID != q.UserID || tx.Category.ID != q.CategoryID {
			continue
		}
		if tx.Date.Before(q.From.Time) {
			continue
		}
		if !q.To.IsZero() && tx.Date.After(q.To.Time) {
			continue
		}
		switch q.Sign {
		case records.Positive:
			if !tx.Amount.IsPositive() {
				continue
			}
		case records.Negative:
			if !tx.Amount.IsNegative() {
				continue
			}
		}
		sum = sum.Add(tx.Amount)
	}
	return sum, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[b.Category.ID]
	if !ok || c.UserID != b.UserID {
		return core.Budget{}, fmt.Errorf("category %s: %w", b.Category.ID, core.ErrNotFound)
	}
	for _, existing := range s.budgets {
		if existing.UserID == b.UserID && existing.Category.ID == b.Category.ID &&
			existing.Month.Equal(b.Month.Time) {
			return core.Budget{}, fmt.Errorf("budget for %s %s: %w", c.Name, b.Month, core.ErrConflict)
		}
	}
	b.ID = uuid.NewString()
	b.Category = c
	s.budgets = append(s.budgets, b)
	return b, nil
}

func (s *Store) FindBudgets(_ context.Context, q records.BudgetQuery) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID != q.UserID {
			continue
		}
		if q.CategoryID != "" && b.Category.ID != q.CategoryID {
			continue
		}
		switch q.Match {
		case records.MonthExact:
			if !b.Month.Equal(q.Month.Time) {
				continue
			}
		case records.MonthFloor:
			if b.Month.Before(q.Month.Time) {
				continue
			}
		}
		b.Category = s.categories[b.Category.ID]
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month.Time) })
	return out, nil
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.HasCategory() {
		c, ok := s.categories[g.CategoryID]
		if !ok || c.UserID != g.UserID {
			return core.Goal{}, fmt.Errorf("category %s: %w", g.CategoryID, core.ErrNotFound)
		}
	}
	now := s.now()
	g.ID = uuid.NewString()
	g.IsActive = true
	g.CreatedAt = now
	g.UpdatedAt = now
	s.goals = append(s.goals, g)
	return g, nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) FindActiveGoals(_ context.Context, userID, categoryID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.UserID == userID && g.IsActive && g.HasCategory() && g.CategoryID == categoryID {
			out = append(out, g)
		}
	}
	return out, nil
}

// SaveGoal persists the goal's active flag.
func (s *Store) SaveGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == g.ID && s.goals[i].UserID == g.UserID {
			s.goals[i].IsActive = g.IsActive
			s.goals[i].UpdatedAt = s.now()
			return nil
		}
	}
	return fmt.Errorf("goal %s: %w", g.ID, core.ErrNotFound)
}

func (s *Store) CreateNotification(_ context.Context, userID, message string) (core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := core.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: s.now(),
	}
	s.notifications = append(s.notifications, n)
	return n, nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(_ context.Context, userID string) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, core.ErrNotFound)
}

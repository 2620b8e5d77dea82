// Package records defines the record store ports the engine and the outer
// layers depend on. Implementations live in records/memory and storage.
package records

import (
	"context"

	"budgetwatch/internal/core"

	"github.com/shopspring/decimal"
)

// MonthMatch selects how a budget's month is compared with the requested month.
type MonthMatch int

const (
	// MonthExact matches budgets whose month equals the requested month.
	MonthExact MonthMatch = iota
	// MonthFloor matches budgets whose month is on or after the requested month.
	MonthFloor
)

// Sign filters transaction amounts in a sum.
type Sign int

const (
	AnySign Sign = iota
	Positive
	Negative
)

type (
	// BudgetQuery selects budgets of one user. An empty CategoryID means all categories.
	BudgetQuery struct {
		UserID     string
		CategoryID string
		Month      core.Date
		Match      MonthMatch
	}

	// SumQuery selects the transactions of one user and category to sum.
	// A zero To leaves the range open ended.
	SumQuery struct {
		UserID     string
		CategoryID string
		From       core.Date
		To         core.Date
		Sign       Sign
	}
)

// Ports used by the evaluation engine.
type (
	BudgetFinder interface {
		// FindBudgets returns matching budgets ordered by month, then creation.
		FindBudgets(ctx context.Context, q BudgetQuery) ([]core.Budget, error)
	}

	TransactionSummer interface {
		// SumTransactions returns zero when nothing matches.
		SumTransactions(ctx context.Context, q SumQuery) (decimal.Decimal, error)
	}

	GoalStore interface {
		FindActiveGoals(ctx context.Context, userID, categoryID string) ([]core.Goal, error)
		SaveGoal(ctx context.Context, g core.Goal) error
	}

	NotificationWriter interface {
		CreateNotification(ctx context.Context, userID, message string) (core.Notification, error)
	}

	TransactionFinder interface {
		// FindTransactions returns the user's transactions dated on or after from,
		// with their category populated, ordered by date.
		FindTransactions(ctx context.Context, userID string, from core.Date) ([]core.Transaction, error)
	}

	// Store is the record store the evaluator and aggregator run against.
	Store interface {
		BudgetFinder
		TransactionSummer
		GoalStore
		NotificationWriter
		TransactionFinder
	}
)

// Ports used by the write path and the HTTP layer.
type (
	TransactionWriter interface {
		// CreateTransaction assigns ID, Version and timestamps.
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// UpdateTransaction bumps Version; ErrNotFound if the transaction does not
		// belong to tx.UserID.
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		GetCategory(ctx context.Context, userID, id string) (core.Category, error)
		// DeleteCategory cascades to transactions and budgets and unbinds goals.
		DeleteCategory(ctx context.Context, userID, id string) error
	}

	BudgetWriter interface {
		// CreateBudget returns ErrConflict for a second budget on the same
		// user, category and month.
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	}

	GoalWriter interface {
		CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
	}

	NotificationReader interface {
		ListNotifications(ctx context.Context, userID string) ([]core.Notification, error)
		MarkNotificationRead(ctx context.Context, userID, id string) error
	}

	// Backend is everything a data backend offers to the application.
	Backend interface {
		Store
		TransactionWriter
		CategoryStore
		BudgetWriter
		GoalWriter
		NotificationReader
		Close() error
	}
)

// Package engine holds the evaluation engine run after every transaction
// write and the read-only analytics aggregator.
package engine

import (
	"context"
	"fmt"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/metrics"
	"budgetwatch/internal/records"
)

// Evaluator checks a freshly written transaction against the user's monthly
// budget and active goals for its category.
type Evaluator struct {
	store   records.Store
	now     func() time.Time
	match   records.MonthMatch
	logger  *log.Logger
	metrics *metrics.Metrics
}

type EvaluatorOption func(*Evaluator)

// WithClock sets the clock that decides the current month.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// WithMonthMatch selects how budgets are matched against the current month.
func WithMonthMatch(m records.MonthMatch) EvaluatorOption {
	return func(e *Evaluator) { e.match = m }
}

func WithEvaluatorLogger(l *log.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = l.WithComponent(log.ComponentEvaluator) }
}

func WithEvaluatorMetrics(m *metrics.Metrics) EvaluatorOption {
	return func(e *Evaluator) { e.metrics = m }
}

func NewEvaluator(store records.Store, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		store:  store,
		now:    time.Now,
		match:  records.MonthExact,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the budget check and then the goal checks for tx. The
// current month comes from the evaluator's clock, not from tx.Date.
//
// A store failure aborts the evaluation; notifications already written stay.
func (e *Evaluator) Evaluate(ctx context.Context, tx core.Transaction) (err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveEvaluation(start, err) }()

	som := core.MonthOf(e.now())
	logger := e.logger.With(
		log.FieldUserID, tx.UserID,
		log.FieldTransactionID, tx.ID,
		log.FieldCategory, tx.Category.Name,
		log.FieldMonth, som.String(),
	)

	if err := e.checkBudget(ctx, logger, tx, som); err != nil {
		logger.LogErr(ctx, "Budget check failed", err, log.ErrorTypeDatabase)
		return err
	}
	if err := e.checkGoals(ctx, logger, tx, som); err != nil {
		logger.LogErr(ctx, "Goal check failed", err, log.ErrorTypeDatabase)
		return err
	}
	logger.DebugContext(ctx, "Transaction evaluated")
	return nil
}

func (e *Evaluator) checkBudget(ctx context.Context, logger *log.Logger, tx core.Transaction, som core.Date) error {
	budgets, err := e.store.FindBudgets(ctx, records.BudgetQuery{
		UserID:     tx.UserID,
		CategoryID: tx.Category.ID,
		Month:      som,
		Match:      e.match,
	})
	if err != nil {
		return e.storeErr("find budgets", err)
	}
	if len(budgets) == 0 {
		return nil
	}
	// Budgets come ordered by month; a repeated first month means the
	// (user, category, month) uniqueness was broken.
	if len(budgets) > 1 && budgets[1].Month.Equal(budgets[0].Month.Time) {
		logger.WarnContext(ctx, "Several budgets share the month, using the first",
			log.FieldErrorType, log.ErrorTypeInvalidState,
			log.FieldError, core.ErrInvalidState.Error(),
			"matches", len(budgets))
	}
	budget := budgets[0]

	spent, err := e.store.SumTransactions(ctx, records.SumQuery{
		UserID:     tx.UserID,
		CategoryID: tx.Category.ID,
		From:       som,
	})
	if err != nil {
		return e.storeErr("sum transactions", err)
	}
	if !spent.GreaterThan(budget.Amount) {
		return nil
	}

	msg := BudgetExceededMessage(tx.Category.Name, budget, spent)
	if _, err := e.store.CreateNotification(ctx, tx.UserID, msg); err != nil {
		return e.storeErr("create notification", err)
	}
	e.metrics.NotificationEmitted(metrics.KindBudgetExceeded)
	logger.InfoContext(ctx, "Budget exceeded",
		log.FieldBudget, core.FormatAmount(budget.Amount),
		log.FieldSpent, core.FormatAmount(spent))
	return nil
}

func (e *Evaluator) checkGoals(ctx context.Context, logger *log.Logger, tx core.Transaction, som core.Date) error {
	goals, err := e.store.FindActiveGoals(ctx, tx.UserID, tx.Category.ID)
	if err != nil {
		return e.storeErr("find active goals", err)
	}
	for _, g := range goals {
		if !g.HasCategory() || !g.IsActive {
			continue
		}
		reached, err := e.goalReached(ctx, g, som)
		if err != nil {
			return err
		}
		if !reached {
			continue
		}

		if _, err := e.store.CreateNotification(ctx, tx.UserID, GoalReachedMessage(g)); err != nil {
			return e.storeErr("create notification", err)
		}
		e.metrics.NotificationEmitted(metrics.KindGoalReached)

		g.IsActive = false
		if err := e.store.SaveGoal(ctx, g); err != nil {
			return e.storeErr("save goal", err)
		}
		e.metrics.GoalAchieved(string(g.GoalType))
		logger.InfoContext(ctx, "Goal reached",
			log.FieldGoalID, g.ID,
			log.FieldGoalType, string(g.GoalType))
	}
	return nil
}

// goalReached sums the goal's category between the start of the month and
// the target date. Save goals count inflows, spend goals count outflows.
func (e *Evaluator) goalReached(ctx context.Context, g core.Goal, som core.Date) (bool, error) {
	q := records.SumQuery{
		UserID:     g.UserID,
		CategoryID: g.CategoryID,
		From:       som,
		To:         g.TargetDate,
	}
	switch g.GoalType {
	case core.Save:
		q.Sign = records.Positive
	case core.Spend:
		q.Sign = records.Negative
	default:
		return false, nil
	}

	sum, err := e.store.SumTransactions(ctx, q)
	if err != nil {
		return false, e.storeErr("sum goal transactions", err)
	}
	return sum.Abs().GreaterThanOrEqual(g.Amount), nil
}

func (e *Evaluator) storeErr(op string, err error) error {
	e.metrics.StoreError(op)
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}

package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/metrics"
	"budgetwatch/internal/records"

	"github.com/shopspring/decimal"
)

const (
	// WindowDays is how far back BuildAnalytics looks from the as-of date.
	WindowDays = 365
	// TopCategoriesLimit caps the top categories ranking.
	TopCategoriesLimit = 5
)

// Aggregator builds read-only reports. It never writes to the store and is
// safe for concurrent use.
type Aggregator struct {
	store   records.Store
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewAggregator(store records.Store, logger *log.Logger, m *metrics.Metrics) *Aggregator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Aggregator{
		store:   store,
		logger:  logger.WithComponent(log.ComponentAggregator),
		metrics: m,
	}
}

// BuildAnalytics returns trends, top categories, net worth and budget vs
// actual for userID as of the given day.
func (a *Aggregator) BuildAnalytics(ctx context.Context, userID string, asOf core.Date) (core.Analytics, error) {
	start := time.Now()
	defer a.metrics.ObserveAnalytics(start)

	txs, err := a.store.FindTransactions(ctx, userID, asOf.AddDays(-WindowDays))
	if err != nil {
		return core.Analytics{}, a.storeErr("find transactions", err)
	}

	trends := Trends(txs)
	deltas, err := a.BudgetVsActual(ctx, userID, asOf)
	if err != nil {
		return core.Analytics{}, err
	}

	a.logger.DebugContext(ctx, "Analytics built",
		log.FieldUserID, userID,
		log.FieldAsOf, asOf.String(),
		"transactions", len(txs))

	return core.Analytics{
		AsOf:           asOf,
		Trends:         trends,
		TopCategories:  TopCategories(txs, TopCategoriesLimit),
		NetWorth:       NetWorth(trends),
		BudgetVsActual: deltas,
	}, nil
}

// BudgetVsActual compares every budget from the as-of month onwards with the
// category's bookings since the start of that month.
func (a *Aggregator) BudgetVsActual(ctx context.Context, userID string, asOf core.Date) ([]core.BudgetDelta, error) {
	som := asOf.StartOfMonth()
	budgets, err := a.store.FindBudgets(ctx, records.BudgetQuery{
		UserID: userID,
		Month:  som,
		Match:  records.MonthFloor,
	})
	if err != nil {
		return nil, a.storeErr("find budgets", err)
	}

	deltas := make([]core.BudgetDelta, 0, len(budgets))
	for _, b := range budgets {
		actual, err := a.store.SumTransactions(ctx, records.SumQuery{
			UserID:     userID,
			CategoryID: b.Category.ID,
			From:       som,
		})
		if err != nil {
			return nil, a.storeErr("sum transactions", err)
		}
		deltas = append(deltas, core.BudgetDelta{
			Category:   b.Category.Name,
			Budgeted:   b.Amount,
			Actual:     actual,
			Difference: b.Amount.Sub(actual),
		})
	}
	return deltas, nil
}

// BuildMonthSummary totals the calendar month containing asOf.
func (a *Aggregator) BuildMonthSummary(ctx context.Context, userID string, asOf core.Date) (core.MonthSummary, error) {
	txs, err := a.MonthTransactions(ctx, userID, asOf)
	if err != nil {
		return core.MonthSummary{}, err
	}

	summary := core.MonthSummary{
		AsOf:          asOf,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, tx := range txs {
		switch tx.Category.Type {
		case core.Income:
			summary.TotalIncome = summary.TotalIncome.Add(tx.Amount)
		case core.Expense:
			summary.TotalExpenses = summary.TotalExpenses.Add(tx.Amount)
		}
	}
	summary.Balance = summary.TotalIncome.Sub(summary.TotalExpenses)

	totals := groupByCategory(txs)
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Type != totals[j].Type {
			return totals[i].Type < totals[j].Type
		}
		return totals[i].Name < totals[j].Name
	})
	summary.CategoryTotals = totals
	return summary, nil
}

// MonthTransactions returns the user's transactions dated within the
// calendar month containing asOf.
func (a *Aggregator) MonthTransactions(ctx context.Context, userID string, asOf core.Date) ([]core.Transaction, error) {
	som := asOf.StartOfMonth()
	next := core.Date{Time: som.AddDate(0, 1, 0)}

	txs, err := a.store.FindTransactions(ctx, userID, som)
	if err != nil {
		return nil, a.storeErr("find transactions", err)
	}
	out := txs[:0]
	for _, tx := range txs {
		if tx.Date.Before(next.Time) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// AllTransactions returns every transaction of the user ordered by date.
func (a *Aggregator) AllTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := a.store.FindTransactions(ctx, userID, core.Date{})
	if err != nil {
		return nil, a.storeErr("find transactions", err)
	}
	return txs, nil
}

func (a *Aggregator) storeErr(op string, err error) error {
	a.metrics.StoreError(op)
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}

type trendKey struct {
	month time.Time
	typ   core.CategoryType
}

// Trends sums amounts per (month, category type), ordered by month then type.
func Trends(txs []core.Transaction) []core.TrendPoint {
	sums := make(map[trendKey]decimal.Decimal)
	for _, tx := range txs {
		k := trendKey{month: tx.Date.StartOfMonth().Time, typ: tx.Category.Type}
		sums[k] = sums[k].Add(tx.Amount)
	}

	points := make([]core.TrendPoint, 0, len(sums))
	for k, total := range sums {
		points = append(points, core.TrendPoint{Month: core.Date{Time: k.month}, Type: k.typ, Total: total})
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Month.Equal(points[j].Month.Time) {
			return points[i].Month.Before(points[j].Month.Time)
		}
		return points[i].Type < points[j].Type
	})
	return points
}

type categoryKey struct {
	name string
	typ  core.CategoryType
}

func groupByCategory(txs []core.Transaction) []core.CategoryTotal {
	sums := make(map[categoryKey]decimal.Decimal)
	for _, tx := range txs {
		k := categoryKey{name: tx.Category.Name, typ: tx.Category.Type}
		sums[k] = sums[k].Add(tx.Amount)
	}
	totals := make([]core.CategoryTotal, 0, len(sums))
	for k, total := range sums {
		totals = append(totals, core.CategoryTotal{Name: k.name, Type: k.typ, Total: total})
	}
	return totals
}

// TopCategories ranks (name, type) groups by descending total and keeps at
// most limit entries. Equal totals are ordered by name, then type.
func TopCategories(txs []core.Transaction, limit int) []core.CategoryTotal {
	totals := groupByCategory(txs)
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Total.Cmp(totals[j].Total); c != 0 {
			return c > 0
		}
		if totals[i].Name != totals[j].Name {
			return totals[i].Name < totals[j].Name
		}
		return totals[i].Type < totals[j].Type
	})
	if len(totals) > limit {
		totals = totals[:limit]
	}
	return totals
}

// NetWorth walks the trend months in order and keeps a running balance of
// income minus expenses.
func NetWorth(trends []core.TrendPoint) []core.NetWorthPoint {
	type monthTotals struct {
		month           core.Date
		income, expense decimal.Decimal
	}
	var months []*monthTotals
	byMonth := make(map[time.Time]*monthTotals)
	for _, p := range trends {
		m, ok := byMonth[p.Month.Time]
		if !ok {
			m = &monthTotals{month: p.Month}
			byMonth[p.Month.Time] = m
			months = append(months, m)
		}
		switch p.Type {
		case core.Income:
			m.income = m.income.Add(p.Total)
		case core.Expense:
			m.expense = m.expense.Add(p.Total)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].month.Before(months[j].month.Time) })

	balance := decimal.Zero
	out := make([]core.NetWorthPoint, 0, len(months))
	for _, m := range months {
		balance = balance.Add(m.income).Sub(m.expense)
		out = append(out, core.NetWorthPoint{Month: m.month, NetWorth: balance})
	}
	return out
}

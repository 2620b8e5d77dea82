package core

import "github.com/shopspring/decimal"

// TrendPoint is the total of one category type within one month.
type TrendPoint struct {
	Month Date
	Type  CategoryType
	Total decimal.Decimal
}

// CategoryTotal represents an amount aggregated by category name and type.
type CategoryTotal struct {
	Name  string
	Type  CategoryType
	Total decimal.Decimal
}

// NetWorthPoint is the cumulative income minus expenses up to and including Month.
type NetWorthPoint struct {
	Month    Date
	NetWorth decimal.Decimal
}

// BudgetDelta compares a budget ceiling with what was actually booked.
type BudgetDelta struct {
	Category   string
	Budgeted   decimal.Decimal
	Actual     decimal.Decimal
	Difference decimal.Decimal // Budgeted - Actual
}

// Analytics is the read-only report built for one user.
type Analytics struct {
	AsOf           Date
	Trends         []TrendPoint
	TopCategories  []CategoryTotal
	NetWorth       []NetWorthPoint
	BudgetVsActual []BudgetDelta
}

// MonthSummary is a compact summary of the month containing AsOf.
type MonthSummary struct {
	AsOf           Date
	TotalIncome    decimal.Decimal
	TotalExpenses  decimal.Decimal
	Balance        decimal.Decimal
	CategoryTotals []CategoryTotal
}

package engine

import (
	"fmt"

	"budgetwatch/internal/core"

	"github.com/shopspring/decimal"
)

func BudgetExceededMessage(category string, b core.Budget, spent decimal.Decimal) string {
	return fmt.Sprintf("Budget exceeded for %s! Budget: %s, Spent: %s",
		category, core.FormatAmount(b.Amount), core.FormatAmount(spent))
}

func GoalReachedMessage(g core.Goal) string {
	if g.GoalType == core.Spend {
		return "You reached your spending goal: " + g.Name
	}
	return "Congratulations! You achieved your savings goal: " + g.Name
}

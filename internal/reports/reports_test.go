package reports

import (
	"strings"
	"testing"

	"budgetwatch/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	food := core.Category{Name: "Food", Type: core.Expense}
	txs := []core.Transaction{
		{Category: food, Amount: decimal.RequireFromString("12.5"), Description: "lunch, with friends", Date: core.NewDate(2025, 3, 4)},
		{Category: core.Category{Name: "Salary", Type: core.Income}, Amount: decimal.NewFromInt(2000), Description: "march", Date: core.NewDate(2025, 3, 1)},
	}

	var b strings.Builder
	require.NoError(t, WriteCSV(&b, Rows(txs)))

	want := "Date,Description,Category,Type,Amount\n" +
		"2025-03-04,\"lunch, with friends\",Food,expense,12.50\n" +
		"2025-03-01,march,Salary,income,2000.00\n"
	assert.Equal(t, want, b.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteCSV(&b, nil))
	assert.Equal(t, "Date,Description,Category,Type,Amount\n", b.String())
}

func TestMonthlySummaryFilename(t *testing.T) {
	assert.Equal(t, "monthly_summary_2025_03.csv", MonthlySummaryFilename(core.NewDate(2025, 3, 15)))
	assert.Equal(t, "monthly_summary_2024_12.csv", MonthlySummaryFilename(core.NewDate(2024, 12, 1)))
}

// Package reports renders transaction listings for download and export.
package reports

import (
	"encoding/csv"
	"fmt"
	"io"

	"budgetwatch/internal/core"
)

const TransactionsFilename = "transactions.csv"

// Header is the column row of every report.
var Header = []string{"Date", "Description", "Category", "Type", "Amount"}

// Row is one transaction as it appears in a report.
type Row struct {
	Date        string
	Description string
	Category    string
	Type        string
	Amount      string // fixed two fraction digits
}

func (r Row) Values() []string {
	return []string{r.Date, r.Description, r.Category, r.Type, r.Amount}
}

// Rows converts transactions to report rows, keeping their order.
func Rows(txs []core.Transaction) []Row {
	out := make([]Row, 0, len(txs))
	for _, tx := range txs {
		out = append(out, Row{
			Date:        tx.Date.String(),
			Description: tx.Description,
			Category:    tx.Category.Name,
			Type:        string(tx.Category.Type),
			Amount:      tx.Amount.StringFixed(2),
		})
	}
	return out
}

// MonthlySummaryFilename names the report of the month containing asOf,
// e.g. monthly_summary_2025_03.csv.
func MonthlySummaryFilename(asOf core.Date) string {
	return fmt.Sprintf("monthly_summary_%04d_%02d.csv", asOf.Year(), int(asOf.Month()))
}

// WriteCSV writes the header followed by rows.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Package sheets exports report rows to spreadsheets. Each calendar year
// gets its own tab named "<year> <sheet>".
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"budgetwatch/internal/core"
	"budgetwatch/internal/reports"
)

// ReportExporter appends report rows to the tab of asOf's year and returns
// a reference to the written range.
type ReportExporter interface {
	ExportRows(ctx context.Context, asOf core.Date, rows []reports.Row) (ref string, err error)
}

// YearPrefixedName returns "<year> <base>" unless base already starts with
// a 4-digit year.
func YearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

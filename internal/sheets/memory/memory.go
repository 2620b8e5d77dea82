// Package memory is an in-process ReportExporter for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetwatch/internal/core"
	"budgetwatch/internal/reports"
	"budgetwatch/internal/sheets"
)

var _ sheets.ReportExporter = (*Exporter)(nil)

type Exporter struct {
	mu   sync.Mutex
	base string
	tabs map[string][][]string
}

func New(sheetName string) *Exporter {
	return &Exporter{base: sheetName, tabs: make(map[string][][]string)}
}

// ExportRows appends rows, writing the header first on an empty tab.
func (e *Exporter) ExportRows(_ context.Context, asOf core.Date, rows []reports.Row) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tab := sheets.YearPrefixedName(e.base, asOf.Year())
	values := e.tabs[tab]
	if len(values) == 0 {
		values = append(values, reports.Header)
	}
	first := len(values) + 1
	for _, r := range rows {
		values = append(values, r.Values())
	}
	e.tabs[tab] = values
	return fmt.Sprintf("%s!A%d:E%d", tab, first, len(values)), nil
}

// Tab returns a copy of the tab's values, header included.
func (e *Exporter) Tab(name string) [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.tabs[name]...)
}

package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/middleware/auth"
	"budgetwatch/internal/records"
	"budgetwatch/internal/reports"
	"budgetwatch/internal/services"
	"budgetwatch/internal/sheets"

	"github.com/go-chi/chi/v5"
)

type (
	// TransactionRecorder is the transaction write path.
	TransactionRecorder interface {
		Record(ctx context.Context, tx core.Transaction) (services.WriteResult, error)
		Revise(ctx context.Context, tx core.Transaction) (services.WriteResult, error)
	}

	// AnalyticsReader serves the read-only reports.
	AnalyticsReader interface {
		Analytics(ctx context.Context, userID string, asOf core.Date) (core.Analytics, error)
		MonthSummary(ctx context.Context, userID string, asOf core.Date) (core.MonthSummary, error)
		BudgetVsActual(ctx context.Context, userID string, asOf core.Date) ([]core.BudgetDelta, error)
		MonthTransactions(ctx context.Context, userID string, asOf core.Date) ([]core.Transaction, error)
		AllTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		Invalidate(userID string)
	}
)

type handlers struct {
	records      records.Backend
	transactions TransactionRecorder
	analytics    AnalyticsReader
	exporter     sheets.ReportExporter
	ready        func(context.Context) error
	now          func() time.Time
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).
				WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := req.toCategory(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.records.CreateCategory(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryView(created))
}

func (h *handlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if err := h.records.DeleteCategory(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	h.analytics.Invalidate(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) createBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID := auth.UserID(r.Context())
	b, err := req.toBudget(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.records.CreateBudget(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.analytics.Invalidate(userID)
	writeJSON(w, http.StatusCreated, newBudgetView(created))
}

func (h *handlers) budgetSummary(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	deltas, err := h.analytics.BudgetVsActual(r.Context(), auth.UserID(r.Context()), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetDeltaViews(deltas))
}

func (h *handlers) createGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := req.toGoal(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.records.CreateGoal(r.Context(), g)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGoalView(created))
}

func (h *handlers) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.records.ListGoals(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGoalViews(goals))
}

func (h *handlers) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := req.toTransaction(auth.UserID(r.Context()), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.transactions.Record(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newWriteResultView(res))
}

func (h *handlers) updateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := req.toTransaction(auth.UserID(r.Context()), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx.ID = chi.URLParam(r, "id")
	res, err := h.transactions.Revise(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newWriteResultView(res))
}

func (h *handlers) transactionSummary(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.analytics.MonthSummary(r.Context(), auth.UserID(r.Context()), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMonthSummaryView(summary))
}

func (h *handlers) analyticsReport(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.analytics.Analytics(r.Context(), auth.UserID(r.Context()), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalyticsView(a))
}

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := h.records.ListNotifications(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newNotificationViews(ns))
}

func (h *handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.records.MarkNotificationRead(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) transactionsCSV(w http.ResponseWriter, r *http.Request) {
	txs, err := h.analytics.AllTransactions(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCSV(w, r, reports.TransactionsFilename, reports.Rows(txs))
}

func (h *handlers) monthlySummaryCSV(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := h.analytics.MonthTransactions(r.Context(), auth.UserID(r.Context()), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCSV(w, r, reports.MonthlySummaryFilename(asOf), reports.Rows(txs))
}

// writeCSV renders into a buffer first so a failure still yields a JSON error.
func (h *handlers) writeCSV(w http.ResponseWriter, r *http.Request, filename string, rows []reports.Row) {
	var buf bytes.Buffer
	if err := reports.WriteCSV(&buf, rows); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *handlers) exportMonthlySummary(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "spreadsheet export is not configured"})
		return
	}
	asOf, err := parseAsOf(r, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := auth.UserID(r.Context())
	txs, err := h.analytics.MonthTransactions(r.Context(), userID, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows := reports.Rows(txs)
	ref, err := h.exporter.ExportRows(r.Context(), asOf, rows)
	if err != nil {
		writeError(w, r, fmt.Errorf("export monthly summary: %w", err))
		return
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentReports).InfoContext(r.Context(),
		"Monthly summary exported", log.FieldOperation, log.OpExport, log.FieldAsOf, asOf.String(), "range", ref)
	writeJSON(w, http.StatusOK, exportView{Range: ref, Rows: len(rows)})
}

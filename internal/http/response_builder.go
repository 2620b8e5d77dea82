package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/middleware/auth"
	"budgetwatch/internal/services"

	"github.com/shopspring/decimal"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

var validationErrors = []error{
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrEmptyName,
	core.ErrEmptyUser,
	core.ErrEmptyCategory,
	core.ErrInvalidCategoryType,
	core.ErrInvalidGoalType,
}

// statusFor maps an error to its HTTP status and log error type.
func statusFor(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, log.ErrorTypeValidation
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, log.ErrorTypeAuth
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, log.ErrorTypeConflict
	case errors.Is(err, core.ErrInvalidState):
		return http.StatusUnprocessableEntity, log.ErrorTypeInvalidState
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, log.ErrorTypeDatabase
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusBadRequest, log.ErrorTypeValidation
		}
	}
	return http.StatusInternalServerError, log.ErrorTypeInternal
}

// writeError logs err with the request logger and renders it as JSON.
// Internal errors are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := statusFor(err)
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.LogErr(r.Context(), "Request failed", err, errType, log.FieldPath, r.URL.Path)
		msg = http.StatusText(status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldError, err, log.FieldErrorType, errType, log.FieldPath, r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func amount(d decimal.Decimal) string { return d.StringFixed(2) }

type (
	categoryView struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	}

	transactionView struct {
		ID          string       `json:"id"`
		Category    categoryView `json:"category"`
		Amount      string       `json:"amount"`
		Description string       `json:"description"`
		Date        string       `json:"date"`
		Version     int64        `json:"version"`
		CreatedAt   time.Time    `json:"created_at"`
		UpdatedAt   time.Time    `json:"updated_at"`
	}

	evaluationView struct {
		Mode  string `json:"mode"`
		Error string `json:"error,omitempty"`
	}

	writeResultView struct {
		Transaction transactionView `json:"transaction"`
		Evaluation  evaluationView  `json:"evaluation"`
	}

	budgetView struct {
		ID       string       `json:"id"`
		Category categoryView `json:"category"`
		Month    string       `json:"month"`
		Amount   string       `json:"amount"`
	}

	goalView struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		Amount     string    `json:"amount"`
		GoalType   string    `json:"goal_type"`
		TargetDate string    `json:"target_date"`
		CategoryID string    `json:"category_id,omitempty"`
		IsActive   bool      `json:"is_active"`
		CreatedAt  time.Time `json:"created_at"`
	}

	notificationView struct {
		ID        string    `json:"id"`
		Message   string    `json:"message"`
		IsRead    bool      `json:"is_read"`
		CreatedAt time.Time `json:"created_at"`
	}

	trendView struct {
		Month string `json:"month"`
		Type  string `json:"type"`
		Total string `json:"total"`
	}

	categoryTotalView struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Total string `json:"total"`
	}

	netWorthView struct {
		Month    string `json:"month"`
		NetWorth string `json:"net_worth"`
	}

	budgetDeltaView struct {
		Category   string `json:"category"`
		Budgeted   string `json:"budgeted"`
		Actual     string `json:"actual"`
		Difference string `json:"difference"`
	}

	analyticsView struct {
		AsOf           string              `json:"as_of"`
		Trends         []trendView         `json:"trends"`
		TopCategories  []categoryTotalView `json:"top_categories"`
		NetWorth       []netWorthView      `json:"net_worth"`
		BudgetVsActual []budgetDeltaView   `json:"budget_vs_actual"`
	}

	monthSummaryView struct {
		AsOf           string              `json:"as_of"`
		TotalIncome    string              `json:"total_income"`
		TotalExpenses  string              `json:"total_expenses"`
		Balance        string              `json:"balance"`
		CategoryTotals []categoryTotalView `json:"category_totals"`
	}

	exportView struct {
		Range string `json:"range"`
		Rows  int    `json:"rows"`
	}
)

func newCategoryView(c core.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Type: string(c.Type)}
}

func newTransactionView(tx core.Transaction) transactionView {
	return transactionView{
		ID:          tx.ID,
		Category:    newCategoryView(tx.Category),
		Amount:      amount(tx.Amount),
		Description: tx.Description,
		Date:        tx.Date.String(),
		Version:     tx.Version,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

func newWriteResultView(res services.WriteResult) writeResultView {
	v := writeResultView{
		Transaction: newTransactionView(res.Transaction),
		Evaluation:  evaluationView{Mode: string(res.Mode)},
	}
	if res.EvaluationErr != nil {
		v.Evaluation.Error = res.EvaluationErr.Error()
	}
	return v
}

func newBudgetView(b core.Budget) budgetView {
	return budgetView{
		ID:       b.ID,
		Category: newCategoryView(b.Category),
		Month:    b.Month.Format("2006-01"),
		Amount:   amount(b.Amount),
	}
}

func newGoalView(g core.Goal) goalView {
	return goalView{
		ID:         g.ID,
		Name:       g.Name,
		Amount:     amount(g.Amount),
		GoalType:   string(g.GoalType),
		TargetDate: g.TargetDate.String(),
		CategoryID: g.CategoryID,
		IsActive:   g.IsActive,
		CreatedAt:  g.CreatedAt,
	}
}

func newGoalViews(goals []core.Goal) []goalView {
	out := make([]goalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalView(g))
	}
	return out
}

func newNotificationViews(ns []core.Notification) []notificationView {
	out := make([]notificationView, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationView{ID: n.ID, Message: n.Message, IsRead: n.IsRead, CreatedAt: n.CreatedAt})
	}
	return out
}

func newCategoryTotalViews(totals []core.CategoryTotal) []categoryTotalView {
	out := make([]categoryTotalView, 0, len(totals))
	for _, t := range totals {
		out = append(out, categoryTotalView{Name: t.Name, Type: string(t.Type), Total: amount(t.Total)})
	}
	return out
}

func newBudgetDeltaViews(deltas []core.BudgetDelta) []budgetDeltaView {
	out := make([]budgetDeltaView, 0, len(deltas))
	for _, d := range deltas {
		out = append(out, budgetDeltaView{
			Category:   d.Category,
			Budgeted:   amount(d.Budgeted),
			Actual:     amount(d.Actual),
			Difference: amount(d.Difference),
		})
	}
	return out
}

func newAnalyticsView(a core.Analytics) analyticsView {
	v := analyticsView{
		AsOf:           a.AsOf.String(),
		Trends:         make([]trendView, 0, len(a.Trends)),
		TopCategories:  newCategoryTotalViews(a.TopCategories),
		NetWorth:       make([]netWorthView, 0, len(a.NetWorth)),
		BudgetVsActual: newBudgetDeltaViews(a.BudgetVsActual),
	}
	for _, t := range a.Trends {
		v.Trends = append(v.Trends, trendView{Month: t.Month.Format("2006-01"), Type: string(t.Type), Total: amount(t.Total)})
	}
	for _, p := range a.NetWorth {
		v.NetWorth = append(v.NetWorth, netWorthView{Month: p.Month.Format("2006-01"), NetWorth: amount(p.NetWorth)})
	}
	return v
}

func newMonthSummaryView(s core.MonthSummary) monthSummaryView {
	return monthSummaryView{
		AsOf:           s.AsOf.String(),
		TotalIncome:    amount(s.TotalIncome),
		TotalExpenses:  amount(s.TotalExpenses),
		Balance:        amount(s.Balance),
		CategoryTotals: newCategoryTotalViews(s.CategoryTotals),
	}
}

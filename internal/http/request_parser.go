package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"budgetwatch/internal/core"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// badRequest marks errors caused by the request itself.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func invalid(err error) error { return badRequest{err: err} }

type (
	categoryRequest struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}

	transactionRequest struct {
		CategoryID  string          `json:"category_id"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Date        string          `json:"date"`
	}

	budgetRequest struct {
		CategoryID string          `json:"category_id"`
		Month      string          `json:"month"`
		Amount     decimal.Decimal `json:"amount"`
	}

	goalRequest struct {
		Name       string          `json:"name"`
		Amount     decimal.Decimal `json:"amount"`
		GoalType   string          `json:"goal_type"`
		TargetDate string          `json:"target_date"`
		CategoryID string          `json:"category_id"`
	}
)

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalid(fmt.Errorf("invalid request body: %w", err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalid(errors.New("invalid request body: trailing data"))
	}
	return nil
}

// parseAsOf reads the as_of query parameter, defaulting to today.
func parseAsOf(r *http.Request, now time.Time) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if v == "" {
		return core.DateOf(now), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, invalid(fmt.Errorf("invalid as_of %q: want YYYY-MM-DD", v))
	}
	return d, nil
}

// parseMonth accepts YYYY-MM or the first day of a month as YYYY-MM-DD.
func parseMonth(v string) (core.Date, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse("2006-01", v); err == nil {
		return core.DateOf(t), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, invalid(fmt.Errorf("invalid month %q: want YYYY-MM", v))
	}
	return d, nil
}

func parseDateOr(v string, fallback time.Time) (core.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return core.DateOf(fallback), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, invalid(fmt.Errorf("invalid date %q: want YYYY-MM-DD", v))
	}
	return d, nil
}

// sanitizeInput drops control characters other than tab and newlines and
// trims surrounding whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

func (req categoryRequest) toCategory(userID string) (core.Category, error) {
	c := core.Category{
		UserID: userID,
		Name:   sanitizeInput(req.Name),
		Type:   core.CategoryType(strings.ToLower(strings.TrimSpace(req.Type))),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}
	return c, nil
}

func (req transactionRequest) toTransaction(userID string, now time.Time) (core.Transaction, error) {
	date, err := parseDateOr(req.Date, now)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		UserID:      userID,
		Category:    core.Category{ID: strings.TrimSpace(req.CategoryID)},
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
		Date:        date,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	return tx, nil
}

func (req budgetRequest) toBudget(userID string) (core.Budget, error) {
	month, err := parseMonth(req.Month)
	if err != nil {
		return core.Budget{}, err
	}
	b := core.Budget{
		UserID:   userID,
		Category: core.Category{ID: strings.TrimSpace(req.CategoryID)},
		Month:    month,
		Amount:   req.Amount,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}
	return b, nil
}

func (req goalRequest) toGoal(userID string) (core.Goal, error) {
	target, err := core.ParseDate(req.TargetDate)
	if err != nil {
		return core.Goal{}, invalid(fmt.Errorf("invalid target_date %q: want YYYY-MM-DD", req.TargetDate))
	}
	g := core.Goal{
		UserID:     userID,
		Name:       sanitizeInput(req.Name),
		Amount:     req.Amount,
		GoalType:   core.GoalType(strings.ToLower(strings.TrimSpace(req.GoalType))),
		TargetDate: target,
		CategoryID: strings.TrimSpace(req.CategoryID),
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, invalid(err)
	}
	return g, nil
}

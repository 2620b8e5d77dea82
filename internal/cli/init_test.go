package cli

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budgetwatch/internal/config"
	"budgetwatch/internal/log"
	"budgetwatch/internal/metrics"
	"budgetwatch/internal/records"

	"github.com/stretchr/testify/assert"
)

func TestMonthMatch(t *testing.T) {
	assert.Equal(t, records.MonthExact, MonthMatch(&config.Config{BudgetMonthMatch: "exact"}))
	assert.Equal(t, records.MonthFloor, MonthMatch(&config.Config{BudgetMonthMatch: "floor"}))
	assert.Equal(t, records.MonthExact, MonthMatch(&config.Config{}))
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", log.FormatJSON)
	assert.NotNil(t, logger)
	assert.True(t, logger.Enabled(t.Context(), -4))
}

func TestMetricsServerExposesEvaluations(t *testing.T) {
	m := metrics.New()
	m.ObserveEvaluation(time.Now(), nil)
	m.ObserveEvaluation(time.Now(), errors.New("store down"))

	srv := MetricsServer(":9091", m)
	assert.Equal(t, ":9091", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `budgetwatch_evaluations_total{outcome="error"} 1`)
	assert.Contains(t, rec.Body.String(), `budgetwatch_evaluations_total{outcome="ok"} 1`)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

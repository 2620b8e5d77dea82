package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveEvaluation(time.Now(), nil)
	m.ObserveEvaluation(time.Now(), errors.New("boom"))
	m.NotificationEmitted(KindBudgetExceeded)
	m.GoalAchieved("save")
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues("error")); got != 1 {
		t.Fatalf("error evaluations = %v", got)
	}
	if got := testutil.ToFloat64(m.Notifications.WithLabelValues(KindBudgetExceeded)); got != 1 {
		t.Fatalf("budget notifications = %v", got)
	}
	if got := testutil.ToFloat64(m.AnalyticsCache.WithLabelValues("miss")); got != 2 {
		t.Fatalf("cache misses = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveEvaluation(time.Now(), nil)
	m.NotificationEmitted(KindGoalReached)
	m.StoreError("sum")
	m.ObserveHTTP("GET", "/api/goals", 200, time.Now())
	m.RateLimitHit()
}

func TestObserveHTTPGroupsStatus(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/api/goals", 200, time.Now())
	m.ObserveHTTP("GET", "/api/goals", 204, time.Now())
	m.ObserveHTTP("GET", "/api/goals", 404, time.Now())
	m.RateLimitHit()

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/goals", "2xx")); got != 2 {
		t.Fatalf("2xx requests = %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/goals", "4xx")); got != 1 {
		t.Fatalf("4xx requests = %v", got)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Fatalf("rate limited = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.GoalAchieved("spend")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `budgetwatch_goals_achieved_total{goal_type="spend"} 1`) {
		t.Fatalf("metric missing from exposition:\n%s", rec.Body.String())
	}
}

package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"budgetwatch/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(middleware.RequestID, Middleware(m))
	r.Get("/api/goals/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/goals/42", nil))

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("request id header not set")
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/goals/{id}", "4xx")); got != 1 {
		t.Fatalf("requests for route = %v", got)
	}
}

// Package http serves the budgetwatch JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"budgetwatch/internal/log"
	"budgetwatch/internal/metrics"
	"budgetwatch/internal/middleware/auth"
	"budgetwatch/internal/middleware/ratelimit"
	"budgetwatch/internal/middleware/security"
	"budgetwatch/internal/middleware/trace"
	"budgetwatch/internal/records"
	"budgetwatch/internal/sheets"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators of the API server. Exporter and both limiters
// are optional; without an exporter the sheets route answers 503.
// IPLimiter keys by client address and runs before authentication; Limiter
// keys by user after it.
type Deps struct {
	Records      records.Backend
	Transactions TransactionRecorder
	Analytics    AnalyticsReader
	Exporter     sheets.ReportExporter
	Auth         *auth.JWTManager
	Limiter      *ratelimit.Limiter
	IPLimiter    *ratelimit.Limiter
	Metrics      *metrics.Metrics
	Logger       *log.Logger
	Ready        func(context.Context) error
	Now          func() time.Time
}

type Server struct {
	*http.Server
}

// NewServer builds the router and wraps it in an http.Server listening on addr.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// NewRouter returns the API handler without binding a listener.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handlers{
		records:      deps.Records,
		transactions: deps.Transactions,
		analytics:    deps.Analytics,
		exporter:     deps.Exporter,
		ready:        deps.Ready,
		now:          deps.Now,
	}
	clientIP := security.NewClientIPResolver()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(trace.Middleware(deps.Metrics))
	r.Use(log.Middleware(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Unauthenticated traffic is limited per client address before the
		// token is checked; authenticated traffic is then limited per user.
		if deps.IPLimiter != nil {
			r.Use(deps.IPLimiter.Middleware(
				func(req *http.Request) string { return "ip:" + clientIP.ClientIP(req) },
				rejectLimited(deps.Metrics),
			))
		}
		r.Use(auth.RequireAuth(deps.Auth, writeError))
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Middleware(
				func(req *http.Request) string { return "user:" + auth.UserID(req.Context()) },
				rejectLimited(deps.Metrics),
			))
		}

		r.Post("/categories", h.createCategory)
		r.Delete("/categories/{id}", h.deleteCategory)

		r.Post("/budgets", h.createBudget)
		r.Get("/budgets/summary", h.budgetSummary)

		r.Post("/goals", h.createGoal)
		r.Get("/goals", h.listGoals)

		r.Post("/transactions", h.createTransaction)
		r.Put("/transactions/{id}", h.updateTransaction)
		r.Get("/transactions/summary", h.transactionSummary)

		r.Get("/analytics", h.analyticsReport)

		r.Get("/notifications", h.listNotifications)
		r.Post("/notifications/{id}/read", h.markNotificationRead)

		r.Get("/reports/transactions.csv", h.transactionsCSV)
		r.Get("/reports/monthly-summary.csv", h.monthlySummaryCSV)
		r.Post("/reports/monthly-summary/sheets", h.exportMonthlySummary)
	})

	return r
}

func rejectLimited(m *metrics.Metrics) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		m.RateLimitHit()
		log.FromContext(req.Context()).WithComponent(log.ComponentRateLimit).
			WarnContext(req.Context(), "Rate limit exceeded", log.FieldPath, req.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	}
}

// Shutdown drains in-flight requests, bounded by timeout.
func (s *Server) Shutdown(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Server.Shutdown(ctx)
}

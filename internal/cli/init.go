// Package cli provides the initialization steps shared by cmd/budgetwatch
// and cmd/budgetwatch-worker.
package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budgetwatch/internal/backend"
	"budgetwatch/internal/config"
	"budgetwatch/internal/engine"
	"budgetwatch/internal/log"
	"budgetwatch/internal/metrics"
	"budgetwatch/internal/records"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	if format != "" {
		cfg.Format = format
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads the API server configuration and validates
// it. Exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	return loadAndValidate((*config.Config).Validate)
}

// LoadAndValidateWorkerConfig is LoadAndValidateConfig for the evaluation
// worker.
func LoadAndValidateWorkerConfig() *config.Config {
	return loadAndValidate((*config.Config).ValidateWorker)
}

func loadAndValidate(validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend creates the record store selected by the config.
// Exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// MonthMatch maps BUDGET_MONTH_MATCH to the store's budget lookup mode.
func MonthMatch(cfg *config.Config) records.MonthMatch {
	if cfg.BudgetMonthMatch == "floor" {
		return records.MonthFloor
	}
	return records.MonthExact
}

// NewEvaluator builds the evaluator both binaries run, so inline and queued
// evaluations agree.
func NewEvaluator(store records.Store, cfg *config.Config, logger *log.Logger, m *metrics.Metrics) *engine.Evaluator {
	return engine.NewEvaluator(store,
		engine.WithMonthMatch(MonthMatch(cfg)),
		engine.WithEvaluatorLogger(logger),
		engine.WithEvaluatorMetrics(m),
	)
}

// MetricsServer exposes m on addr for processes that serve no API.
func MetricsServer(addr string, m *metrics.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

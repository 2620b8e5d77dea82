package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/cache"
	"budgetwatch/internal/cli"
	"budgetwatch/internal/core"
	"budgetwatch/internal/engine"
	apphttp "budgetwatch/internal/http"
	"budgetwatch/internal/log"
	"budgetwatch/internal/metrics"
	"budgetwatch/internal/middleware/auth"
	"budgetwatch/internal/middleware/ratelimit"
	"budgetwatch/internal/services"
	"budgetwatch/internal/sheets"
	gsheet "budgetwatch/internal/sheets/google"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	m := metrics.New()

	analyticsCache := cache.NewLRUCache[core.Analytics](cfg.AnalyticsCacheSize, cfg.AnalyticsCacheTTL)
	analytics := services.NewAnalyticsService(
		engine.NewAggregator(be.Backend, logger, m),
		analyticsCache,
		m,
	)

	var publisher services.EvaluationPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
	}
	transactions := services.NewTransactionService(
		be.Backend,
		cli.NewEvaluator(be.Backend, cfg, logger, m),
		publisher,
		services.EvaluationMode(cfg.EvaluationMode),
		analytics,
		logger,
	)

	var exporter sheets.ReportExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	defer limiter.Stop()
	ipLimiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.IPRateLimitPerMinute})
	defer ipLimiter.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Records:      be.Backend,
		Transactions: transactions,
		Analytics:    analytics,
		Exporter:     exporter,
		Auth:         auth.NewJWTManager(cfg.JWTSecret),
		Limiter:      limiter,
		IPLimiter:    ipLimiter,
		Metrics:      m,
		Logger:       logger,
		Ready:        be.Ready,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budgetwatch server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"evaluation_mode", cfg.EvaluationMode,
			"sheets", exporter != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cache.NewJanitor(logger, analyticsCache).Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(context.Background(), cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/cli"
	"budgetwatch/internal/log"
	"budgetwatch/internal/metrics"
	"budgetwatch/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateWorkerConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer be.Cleanup()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	m := metrics.New()
	w := worker.NewEvaluationWorker(be.Backend, cli.NewEvaluator(be.Backend, cfg, logger, m), logger)
	metricsSrv := cli.MetricsServer(":"+cfg.MetricsPort, m)

	logger.Info("Starting budgetwatch-worker",
		"backend", cfg.DataBackend,
		"queue", cfg.AMQPQueue,
		"budget_month_match", cfg.BudgetMonthMatch,
		"metrics_port", cfg.MetricsPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return client.ConsumeEvaluations(gctx, w.HandleEvaluationMessage)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

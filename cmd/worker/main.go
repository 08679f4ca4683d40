package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/quipu-erp/quipu-erp/internal/analytics"
	"github.com/quipu-erp/quipu-erp/internal/app"
	jobmetrics "github.com/quipu-erp/quipu-erp/internal/jobs"
	"github.com/quipu-erp/quipu-erp/internal/platform/cache"
	"github.com/quipu-erp/quipu-erp/internal/platform/db"
	"github.com/quipu-erp/quipu-erp/internal/purchasing"
	"github.com/quipu-erp/quipu-erp/jobs"
)

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, eventType string, payload any) error { return nil }

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// The digest job reads aging through the purchasing service. The worker
	// never emits events of its own, hence the no-op notifier.
	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, cfg.PurchasingConfig(), noopNotifier{}, nil, logger)

	processor := jobs.NewProcessor(jobs.ProcessorConfig{
		Logger:  logger,
		Cache:   analytics.NewCache(redisClient, cfg.KPICacheTTL),
		Aging:   purchasingService,
		Metrics: jobmetrics.NewMetrics(nil),
	})

	digestTask, err := jobs.NewAgingDigestTask(jobs.AgingDigestPayload{CompanyID: cfg.DigestCompanyID})
	if err != nil {
		logger.Error("build digest task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Processor: processor,
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * 1-5", Task: digestTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quipu-erp/quipu-erp/cmd/quipu/cli"
	"github.com/quipu-erp/quipu-erp/internal/analytics"
	"github.com/quipu-erp/quipu-erp/internal/app"
	"github.com/quipu-erp/quipu-erp/internal/observability"
	"github.com/quipu-erp/quipu-erp/internal/platform/cache"
	"github.com/quipu-erp/quipu-erp/internal/platform/db"
	"github.com/quipu-erp/quipu-erp/internal/purchasing"
	"github.com/quipu-erp/quipu-erp/internal/shared"
	"github.com/quipu-erp/quipu-erp/internal/stock"
	"github.com/quipu-erp/quipu-erp/internal/suppliers"
	"github.com/quipu-erp/quipu-erp/jobs"
	"github.com/quipu-erp/quipu-erp/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "digest" {
		runDigest(ctx, cfg, logger, os.Args[2:])
		return
	}

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

	queueClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	notifier := jobs.NewNotifier(queueClient, metrics, logger)
	auditLogger := shared.NewAuditLogger(pool)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, cfg.PurchasingConfig(), notifier, auditLogger, logger)
	converter := purchasing.NewConverter(purchasingRepo, purchasingService, notifier, logger)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, converter, purchasingRepo)

	suppliersRepo := suppliers.NewRepository(pool)
	suppliersService := suppliers.NewService(suppliersRepo)
	suppliersHandler := suppliers.NewHandler(logger, suppliersService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo)
	stockHandler := stock.NewHandler(logger, stockService)

	analyticsRepo := analytics.NewRepository(pool)
	analyticsCache := analytics.NewCache(redisClient, cfg.KPICacheTTL)
	analyticsService := analytics.NewService(analyticsRepo, analyticsCache)
	analyticsHandler := analytics.NewHandler(logger, analyticsService)

	reportClient := report.NewClient(cfg.GotenbergURL)
	if err := reportClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}
	reportHandler := report.NewHandler(logger, analyticsService, reportClient)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PurchasingHandler: purchasingHandler,
		SuppliersHandler:  suppliersHandler,
		StockHandler:      stockHandler,
		AnalyticsHandler:  analyticsHandler,
		JobsHandler:       jobsHandler,
		ReportHandler:     reportHandler,
		Pool:              pool,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runDigest enqueues an ad-hoc aging digest without starting the server.
func runDigest(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("digest", flag.ExitOnError)
	companyID := fs.Int64("company", cfg.DigestCompanyID, "company whose digest to build")
	recipient := fs.String("to", "", "override the digest recipient")
	_ = fs.Parse(args)

	ops, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		logger.Error("init jobs cli", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := ops.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	info, err := ops.TriggerDigest(ctx, *companyID, *recipient)
	if err != nil {
		logger.Error("trigger digest", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("digest enqueued", slog.String("task_id", info.ID), slog.Int64("company_id", *companyID))
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/foundry-erp/foundry-erp/internal/app"
	"github.com/foundry-erp/foundry-erp/internal/bom"
	"github.com/foundry-erp/foundry-erp/internal/ledger"
	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
	"github.com/foundry-erp/foundry-erp/internal/observability"
	"github.com/foundry-erp/foundry-erp/internal/planning"
	"github.com/foundry-erp/foundry-erp/internal/platform/cache"
	"github.com/foundry-erp/foundry-erp/internal/platform/db"
	"github.com/foundry-erp/foundry-erp/internal/procurement"
	"github.com/foundry-erp/foundry-erp/internal/shared"
	"github.com/foundry-erp/foundry-erp/jobs"
)

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

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	productRepo := products.NewRepository(pool)
	productService := products.NewService(productRepo)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, productService, auditLogger, nil,
		ledger.ServiceConfig{AllowNegativeStock: cfg.LedgerAllowNegative}, nil)

	bomRepo := bom.NewRepository(pool)
	bomService := bom.NewService(bomRepo, productService, auditLogger)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, productService, ledgerService, auditLogger)

	planCache := planning.NewCache(redisClient, cfg.PlanCacheTTL)
	planningRepo := planning.NewRepository(pool)
	planningService := planning.NewService(planningRepo, bomService, ledgerService, procurementService, productService,
		planning.Defaults{
			RawMaterialLeadTimeDays: cfg.PlanLeadTimeRawDays,
			DefaultLeadTimeDays:     cfg.PlanLeadTimeDefaultDays,
		}, planCache, metrics, auditLogger)

	stockAlertJob := jobs.NewStockAlertJob(logger, metrics, cfg.AlertFrom, cfg.AlertTo)
	replanJob := jobs.NewReplanJob(planningService, planCache, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockAlert, Handler: stockAlertJob.Handle},
			{Type: jobs.TaskReplan, Handler: replanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReplanCron, Task: jobs.NewReplanTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}

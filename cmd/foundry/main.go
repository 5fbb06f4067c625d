package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewNotifier(jobClient, logger)

	productRepo := products.NewRepository(pool)
	productService := products.NewService(productRepo)
	productHandler := products.NewHandler(logger, productService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, productService, auditLogger, idempotencyStore,
		ledger.ServiceConfig{AllowNegativeStock: cfg.LedgerAllowNegative}, notifier)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	bomRepo := bom.NewRepository(pool)
	bomService := bom.NewService(bomRepo, productService, auditLogger)
	bomHandler := bom.NewHandler(logger, bomService)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, productService, ledgerService, auditLogger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	planCache := planning.NewCache(redisClient, cfg.PlanCacheTTL)
	if err := planCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	planningRepo := planning.NewRepository(pool)
	planningService := planning.NewService(planningRepo, bomService, ledgerService, procurementService, productService,
		planning.Defaults{
			RawMaterialLeadTimeDays: cfg.PlanLeadTimeRawDays,
			DefaultLeadTimeDays:     cfg.PlanLeadTimeDefaultDays,
		}, planCache, metrics, auditLogger)
	planningHandler := planning.NewHandler(logger, planningService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProductHandler:     productHandler,
		LedgerHandler:      ledgerHandler,
		BOMHandler:         bomHandler,
		ProcurementHandler: procurementHandler,
		PlanningHandler:    planningHandler,
		Metrics:            metrics,
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

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

	"github.com/rentledger/rentledger/internal/app"
	"github.com/rentledger/rentledger/internal/billing"
	"github.com/rentledger/rentledger/internal/observability"
	"github.com/rentledger/rentledger/internal/pdc"
	"github.com/rentledger/rentledger/internal/platform/cache"
	"github.com/rentledger/rentledger/internal/platform/db"
	"github.com/rentledger/rentledger/internal/property"
	"github.com/rentledger/rentledger/internal/rates"
	"github.com/rentledger/rentledger/internal/shared"
	"github.com/rentledger/rentledger/jobs"
	"github.com/rentledger/rentledger/report"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ratesRepo := rates.NewRepository(dbpool)
	ratesCache := rates.NewCache(redisClient, cfg.RatesCacheTTL)
	ratesService := rates.NewService(ratesRepo, ratesCache)

	propertyRepo := property.NewRepository(dbpool)
	propertyService := property.NewService(propertyRepo)
	propertyHandler := property.NewHandler(logger, propertyService)

	pdcRepo := pdc.NewRepository(dbpool)
	pdcService := pdc.NewService(pdcRepo)
	pdcHandler := pdc.NewHandler(logger, pdcService)

	locker := shared.NewLocker(redisClient, cfg.BillingLockTTL)
	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(billingRepo, propertyService, pdcService, ratesService, locker)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportHandler := report.NewHandler(reportClient, logger)
	statementRenderer, err := billing.NewStatementRenderer(reportClient)
	if err != nil {
		logger.Error("init statement renderer", slog.Any("error", err))
		os.Exit(1)
	}
	metrics := observability.NewMetrics()
	billingHandler := billing.NewHandler(logger, billingService, statementRenderer).
		WithSaveCounter(metrics.CountBillingSave)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		PropertyHandler: propertyHandler,
		BillingHandler:  billingHandler,
		PDCHandler:      pdcHandler,
		JobHandler:      jobHandler,
		ReportHandler:   reportHandler,
		Metrics:         metrics,
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

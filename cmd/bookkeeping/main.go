package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	"github.com/odyssey-erp/bookkeeping/internal/audit"
	audithttp "github.com/odyssey-erp/bookkeeping/internal/audit/http"
	"github.com/odyssey-erp/bookkeeping/internal/app"
	"github.com/odyssey-erp/bookkeeping/internal/drafts"
	"github.com/odyssey-erp/bookkeeping/internal/inventory"
	"github.com/odyssey-erp/bookkeeping/internal/ledger"
	"github.com/odyssey-erp/bookkeeping/internal/observability"
	"github.com/odyssey-erp/bookkeeping/internal/platform/cache"
	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
	"github.com/odyssey-erp/bookkeeping/internal/posting"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
	"github.com/odyssey-erp/bookkeeping/jobs"
	"github.com/odyssey-erp/bookkeeping/migrations"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if *migrateOnly {
		applied, err := migrations.Apply(ctx, dbpool)
		if err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied", slog.Any("files", applied))
		return
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	engineOpts := posting.Options{Audit: auditLogger, Metrics: metrics}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, posting without result cache", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		engineOpts.Cache = posting.NewRedisCache(redisClient, cfg.ResultCacheTTL)
	}
	engine := posting.NewEngine(posting.NewRepository(dbpool), logger, engineOpts)

	queueOpts := cache.QueueOptions(cfg.RedisAddr)
	queue, err := jobs.NewClient(queueOpts, cfg.PostingMaxRetry)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(queueOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	draftService := drafts.NewService(drafts.NewRepository(dbpool), logger, drafts.WithAudit(auditLogger))
	allocationService := allocation.NewService(allocation.NewStore(dbpool), ledger.NewStore(dbpool))

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		DraftsHandler:     drafts.NewHandler(logger, draftService),
		PostingHandler:    posting.NewHandler(logger, engine, queue),
		AllocationHandler: allocation.NewHandler(logger, allocationService),
		InventoryHandler:  inventory.NewHandler(logger, inventory.NewStore(dbpool)),
		AuditHandler:      audithttp.NewHandler(logger, audit.NewService(audit.NewStore(dbpool))),
		JobHandler:        jobs.NewHandler(inspector, logger),
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
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	"github.com/odyssey-erp/bookkeeping/internal/app"
	jobmetrics "github.com/odyssey-erp/bookkeeping/internal/jobs"
	"github.com/odyssey-erp/bookkeeping/internal/ledger"
	"github.com/odyssey-erp/bookkeeping/internal/observability"
	"github.com/odyssey-erp/bookkeeping/internal/platform/cache"
	"github.com/odyssey-erp/bookkeeping/internal/platform/db"
	"github.com/odyssey-erp/bookkeeping/internal/posting"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
	"github.com/odyssey-erp/bookkeeping/jobs"
)

const metricsAddr = ":9091"

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

	logger := app.NewLogger(cfg).With(slog.String("process", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	engineOpts := posting.Options{Audit: shared.NewAuditLogger(pool), Metrics: metrics}
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
	engineOpts.Cache = posting.NewRedisCache(redisClient, cfg.ResultCacheTTL)
	engine := posting.NewEngine(posting.NewRepository(pool), logger, engineOpts)

	statements := allocation.NewService(allocation.NewStore(pool), ledger.NewStore(pool))
	postingJob := jobs.NewPostingJob(engine, logger, jobMetrics)
	reconcileJob := jobs.NewReconcileJob(statements, logger, jobMetrics)
	reconcileJob.Locker = redislock.New(redisClient)

	reconcileTask, err := jobs.NewReconcileTask(time.Now().UTC())
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	queueOpts := cache.QueueOptions(cfg.RedisAddr)
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   queueOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPostingPost, Handler: postingJob.Handle},
			{Type: jobs.TaskStatementsReconcile, Handler: reconcileJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(queueOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	mux := chi.NewRouter()
	mux.Method(http.MethodGet, "/metrics", metrics.Handler())
	mux.Route("/jobs", jobs.NewHandler(inspector, logger).MountRoutes)
	server := &http.Server{Addr: metricsAddr, Handler: mux, ReadTimeout: cfg.AppReadTimeout, WriteTimeout: cfg.AppWriteTimeout}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

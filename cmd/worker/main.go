package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/authgraph/authgraph/internal/app"
	"github.com/authgraph/authgraph/internal/authz"
	"github.com/authgraph/authgraph/internal/platform/cache"
	"github.com/authgraph/authgraph/internal/platform/db"
	"github.com/authgraph/authgraph/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	store := authz.NewRepository(pool)
	sharedCache := authz.NewRedisCache(redisClient, cfg.AuthzSharedCacheTTL)
	if err := sharedCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("subscribe invalidation", slog.Any("error", err))
	}

	sweepJob := jobs.NewGraphSweepJob(store, logger)
	warmupJob := jobs.NewCacheWarmupJob(store, sharedCache, logger)

	sweepTask, err := jobs.NewGraphSweepTask(jobs.GraphSweepPayload{IncludeCycles: true})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewCacheWarmupTask(jobs.CacheWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGraphSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskCacheWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SweepCron, Task: sweepTask},
			{Spec: cfg.WarmupCron, Task: warmupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

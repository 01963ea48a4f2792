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

	"github.com/authgraph/authgraph/internal/app"
	"github.com/authgraph/authgraph/internal/audit"
	"github.com/authgraph/authgraph/internal/authz"
	authzhttp "github.com/authgraph/authgraph/internal/authz/http"
	"github.com/authgraph/authgraph/internal/platform/cache"
	"github.com/authgraph/authgraph/internal/platform/db"
	"github.com/authgraph/authgraph/jobs"
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

	store := authz.NewRepository(dbpool)
	service := authz.NewService(store, logger, authz.Config{Strict: cfg.AuthzStrict}).
		WithAudit(audit.NewRecorder(dbpool))

	if cfg.AuthzCache {
		service.LocalCache().Enable()
	}
	if cfg.AuthzSharedCache {
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
		service.WithSharedCache(authz.NewRedisCache(redisClient, cfg.AuthzSharedCacheTTL))
	}

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	handler := authzhttp.NewHandler(logger, service)
	guard := &authzhttp.Middleware{
		Service: service,
		Logger:  logger,
		Resolve: authzhttp.HeaderUserResolver(cfg.AuthzUserHeader),
	}

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthzHandler: handler,
		Guard:        guard,
		Ops:          &app.OpsHandler{Client: jobsClient, Logger: logger},
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

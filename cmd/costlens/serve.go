package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/costlens/internal/analytics"
	analytichttp "github.com/odyssey-erp/costlens/internal/analytics/http"
	"github.com/odyssey-erp/costlens/internal/app"
	"github.com/odyssey-erp/costlens/internal/ingest"
	jobmetrics "github.com/odyssey-erp/costlens/internal/jobs"
	"github.com/odyssey-erp/costlens/internal/observability"
	"github.com/odyssey-erp/costlens/internal/platform/cache"
	"github.com/odyssey-erp/costlens/jobs"
)

func runServe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	logger := app.NewLogger(cfg)

	rates, err := cfg.LoadRates()
	if err != nil {
		logger.Error("load rates", slog.Any("error", err))
		return 1
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			logger.Warn("redis unavailable, serving without cache or jobs", slog.Any("error", err))
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var viewCache *analytics.Cache
	if redisClient != nil {
		viewCache = analytics.NewCache(redisClient, cfg.CacheTTL).WithObserver(metrics)
		if err := viewCache.Subscribe(ctx, func(version int64) {
			logger.Info("view cache invalidated", slog.Int64("version", version))
		}); err != nil {
			logger.Warn("subscribe cache bumps", slog.Any("error", err))
		}
	}

	ingester := ingest.NewIngester(cfg.IngestOptions(rates), logger, metrics)
	analyticsService, err := analytics.NewService(ingest.NewStore(), viewCache, cfg.AnalyticsOptions(rates))
	if err != nil {
		logger.Error("init analytics", slog.Any("error", err))
		return 1
	}
	analyticsService.WithLogger(logger)

	refreshJob := jobs.NewDatasetRefreshJob(ingester, analyticsService, logger, jobMetrics)
	if cfg.RefreshSource != "" {
		if _, err := refreshJob.Refresh(ctx, cfg.RefreshSource); err != nil {
			logger.Warn("initial dataset load", slog.String("path", cfg.RefreshSource), slog.Any("error", err))
		}
	}

	var jobHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		inspector := asynq.NewInspector(redisOpts)
		defer func() { _ = inspector.Close() }()
		jobHandler = jobs.NewHandler(inspector, logger)

		worker, err := newRefreshWorker(cfg, redisOpts, refreshJob, logger)
		if err != nil {
			logger.Error("init worker", slog.Any("error", err))
			return 1
		}
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker run", slog.Any("error", err))
			}
		}()
	}

	analyticsHandler := analytichttp.NewHandler(logger, analyticsService, ingester, cfg.MaxUploadBytes)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: analyticsHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("http server", slog.Any("error", err))
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	logger.Info("server stopped")
	return 0
}

func newRefreshWorker(cfg *app.Config, redisOpts asynq.RedisClientOpt, job *jobs.DatasetRefreshJob, logger *slog.Logger) (*jobs.Worker, error) {
	var cron []jobs.CronRegistration
	if cfg.RefreshCron != "" {
		task, err := jobs.NewDatasetRefreshTask(jobs.DatasetRefreshPayload{Path: cfg.RefreshSource})
		if err != nil {
			return nil, err
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.RefreshCron,
			Task:    task,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}
	return jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDatasetRefresh, Handler: job.Handle},
		},
		Cron: cron,
	})
}

package main

import (
	"context"
	"flag"
	"os"

	"github.com/hibiken/asynq"
	"github.com/vibelog/backend/internal/app"
	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/service"
)

func main() {
	envCfg := logger.LoadFromEnv()
	envCfg.ServiceName = "vibelog-worker"
	appLogger := logger.New(envCfg)
	logger.SetDefault(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid config")
	}
	if cfg.Redis.Addr == "" {
		appLogger.Fatal("redis.addr is required to run the worker")
	}

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize services")
	}
	defer a.Close()

	srv := asynq.NewServer(app.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: cfg.Jobs.Concurrency,
		Queues:      map[string]int{cfg.Jobs.Queue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.With(logger.Fields{
				"task_type": task.Type(),
				"retried":   retried,
				"max_retry": maxRetry,
			}).Error(ctx, "Task failed: %v", err)
		}),
	})

	appLogger.WithFields(logger.Fields{
		"queue":       cfg.Jobs.Queue,
		"concurrency": cfg.Jobs.Concurrency,
	}).Info("Starting worker")

	// Run blocks until SIGTERM or SIGINT and then drains in-flight tasks.
	if err := srv.Run(service.NewAsynqMux(a.Runner)); err != nil {
		appLogger.WithError(err).Fatal("Worker stopped")
	}
}

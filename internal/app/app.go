// Package app builds the object graph shared by the API server and the worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/vibelog/backend/internal/api"
	"github.com/vibelog/backend/internal/api/handler"
	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/internal/repository"
	"github.com/vibelog/backend/internal/service"
	"github.com/vibelog/backend/internal/storage"
	"gorm.io/gorm"
)

// App holds the wired services and the resources that must be closed on exit.
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Storage    storage.ObjectStorage
	Redis      redis.UniversalClient
	Runner     *service.JobRunner
	Dispatcher service.Dispatcher
	Services   *api.Services

	inline  *service.InlineDispatcher
	closers []io.Closer
}

// Build connects to every configured backend and wires the services.
// Qdrant and Redis are optional; without them related vibelogs are empty,
// rate limit counters live in the database and follow-ups run in-process.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db

	// Repositories
	vibelogRepo := repository.NewVibelogRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	configRepo := repository.NewConfigRepository(db)
	costRepo := repository.NewCostRepository(db)
	rateRepo := repository.NewRateLimitRepository(db)

	// Object storage
	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Provider:  storage.Provider(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}
	a.Storage = objectStorage

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, a.Redis)
	}

	// AI providers
	openaiClient := service.NewOpenAIClient(&cfg.OpenAI)
	costGuard := service.NewCostGuard(costRepo, configRepo, cfg.Costs)
	writer := service.NewWriter(openaiClient, costGuard, configRepo, cfg.Pipeline.DefaultTone)
	covers := service.NewCoverService(openaiClient, objectStorage, costGuard, cfg.Pipeline.CoverFetchLimit, cfg.Pipeline.FetchTimeout)

	var indexer *service.Indexer
	if cfg.Qdrant.Enabled {
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Qdrant repository: %w", err)
		}
		a.closers = append(a.closers, qdrantRepo)
		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		indexer = service.NewIndexer(vibelogRepo, service.NewEmbeddingService(&cfg.Embedding), qdrantRepo, costGuard)
		logger.CtxInfo(ctx, "Vector index enabled: collection=%s, embedding=%s", cfg.Qdrant.Collection, cfg.Embedding.Name)
	}

	translator := service.NewTranslator(vibelogRepo, openaiClient, costGuard, cfg.Translation.Enabled, cfg.Translation.Languages)
	a.Runner = service.NewJobRunner(translator, indexer)

	switch cfg.Jobs.Backend {
	case "asynq":
		client := asynq.NewClient(RedisOpt(cfg.Redis))
		a.closers = append(a.closers, client)
		a.Dispatcher = service.NewAsynqDispatcher(client, cfg.Jobs.Queue, cfg.Jobs.MaxRetry, cfg.Jobs.Timeout)
	default:
		a.inline = service.NewInlineDispatcher(a.Runner, cfg.Jobs.Timeout)
		a.Dispatcher = a.inline
	}

	pipeline := service.NewPipeline(vibelogRepo, objectStorage, openaiClient, writer, covers, costGuard, a.Dispatcher,
		service.PipelineOptions{
			MaxUploadBytes:  cfg.Pipeline.MaxUploadBytes,
			GenerateCovers:  cfg.Pipeline.GenerateCovers,
			DefaultLanguage: cfg.Site.Language,
			PresignTTL:      cfg.Pipeline.PresignTTL,
		})
	vibelogs := service.NewVibelogService(vibelogRepo, profileRepo, pipeline, covers, indexer, a.Dispatcher)

	var modal *service.ModalTTSClient
	if cfg.Narration.ModalURL != "" {
		modal = service.NewModalTTSClient(cfg.Narration.ModalURL, cfg.Narration.Timeout)
	}

	var counters service.CounterStore = service.NewDBCounterStore(rateRepo)
	if a.Redis != nil {
		counters = service.NewRedisCounterStore(a.Redis)
	}
	limits := cfg.Limits.Endpoints
	if len(limits) == 0 {
		limits = config.DefaultEndpointLimits()
	}

	a.Services = &api.Services{
		Pipeline:  pipeline,
		Vibelogs:  vibelogs,
		Narration: service.NewNarrationService(vibelogRepo, profileRepo, objectStorage, openaiClient, modal, cfg.Narration.Provider, cfg.Narration.MaxChars, costGuard),
		Reactions: service.NewReactionService(reactionRepo),
		Comments:  service.NewCommentService(commentRepo, vibelogRepo),
		Profiles:  service.NewProfileService(profileRepo, objectStorage),
		Brain:     service.NewBrainService(openaiClient, profileRepo, vibelogRepo, indexer, configRepo, costGuard),
		Feeds:     service.NewFeedService(vibelogs, vibelogRepo, profileRepo, cfg.Site),
		Admin:     service.NewAdminConfigService(configRepo),
		Costs:     costGuard,
		Limiter:   service.NewRateLimiter(counters, configRepo, limits),
	}
	return a, nil
}

// RedisOpt converts the Redis settings for asynq.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// HealthChecks lists the dependencies reported by /health.
func (a *App) HealthChecks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close waits for in-process follow-ups and releases every connection.
func (a *App) Close() error {
	if a.inline != nil {
		a.inline.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

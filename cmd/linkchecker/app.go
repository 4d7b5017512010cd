package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/user/linkchecker-service/internal/adapter/memory"
	"github.com/user/linkchecker-service/internal/adapter/postgres"
	redis_adapter "github.com/user/linkchecker-service/internal/adapter/redis"
	"github.com/user/linkchecker-service/internal/linkcheck"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/internal/usecase"
	"github.com/user/linkchecker-service/pkg/config"
	"github.com/user/linkchecker-service/pkg/metrics"
	"go.uber.org/zap"
)

const memoryQueueCapacity = 100

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	content repository.ContentRepository
	queue   repository.JobQueue
	results repository.JobResultRepository

	external  *linkcheck.ExternalChecker
	validator *linkcheck.Validator
	feed      *usecase.DataFeedService
	fixer     *usecase.LinkFixer
	jobs      *usecase.JobExecutor

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initQueue(ctx); err != nil {
		a.Close()
		return nil, err
	}

	providers, err := linkcheck.ProvidersByID(cfg.Generator.Providers, cfg.Generator.TextSearch)
	if err != nil {
		a.Close()
		return nil, err
	}
	extractor := linkcheck.NewExtractor(providers...)
	a.external = linkcheck.NewExternalChecker(cfg.External, logger)
	a.closers = append(a.closers, a.external.Close)
	a.validator = linkcheck.NewValidator(a.content, a.external, extractor, logger)

	generator, err := usecase.NewGenerator(
		a.content,
		usecase.NewScanner(a.content, extractor),
		a.validator,
		cfg.Generator,
		a.metrics,
		logger,
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("generator: %w", err)
	}
	a.feed = usecase.NewDataFeedService(a.content, generator, usecase.NewGridResourcesCache(), cfg.Feed, a.metrics, logger)
	a.fixer = usecase.NewLinkFixer(a.content, extractor, a.validator, a.feed, logger)
	a.jobs = usecase.NewJobExecutor(a.queue, a.results, a.feed, a.metrics, logger)
	return a, nil
}

func (a *app) initStorage(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case "postgres":
		repo, err := postgres.NewContentRepo(ctx, a.cfg.Storage.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		a.content = repo
		a.logger.Info("PostgreSQL content repository is ready")
	default:
		a.content = memory.NewContentRepo()
		a.logger.Info("in-memory content repository is ready")
	}

	if a.cfg.Storage.SeedFile == "" {
		return nil
	}
	n, err := memory.Seed(ctx, a.content, a.cfg.Storage.SeedFile)
	if err != nil {
		return err
	}
	a.logger.Info("content is seeded", zap.String("file", a.cfg.Storage.SeedFile), zap.Int("nodes", n))
	return nil
}

func (a *app) initQueue(ctx context.Context) error {
	switch a.cfg.Queue.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Queue.RedisAddr,
			Password: a.cfg.Queue.RedisPassword,
			DB:       a.cfg.Queue.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.queue = redis_adapter.NewJobQueue(rdb, a.cfg.Queue.Topic)
		a.results = redis_adapter.NewJobResultRepo(rdb, a.cfg.Queue.ResultTTL)
		a.logger.Info("Redis job queue is ready", zap.String("topic", a.cfg.Queue.Topic))
	default:
		a.queue = memory.NewJobQueue(memoryQueueCapacity)
		a.results = memory.NewJobResultRepo()
		a.logger.Info("in-memory job queue is ready")
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/venuerec/api"
	"github.com/rushteam/venuerec/config"
	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/feature"
	"github.com/rushteam/venuerec/filter"
	"github.com/rushteam/venuerec/model"
	"github.com/rushteam/venuerec/pipeline"
	"github.com/rushteam/venuerec/pkg/logging"
	"github.com/rushteam/venuerec/pkg/metrics"
	"github.com/rushteam/venuerec/recall"
	"github.com/rushteam/venuerec/recommend"
	"github.com/rushteam/venuerec/service"
	"github.com/rushteam/venuerec/store"
	"github.com/rushteam/venuerec/store/postgres"
	"github.com/rushteam/venuerec/vector"
)

// app 进程内组装好的组件。
type app struct {
	handler *api.Handler
	trainer *recommend.Trainer
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// backends 数据来源：配置了 Postgres 时用 Postgres，否则用内存实现（开发用，数据为空）。
type backends struct {
	events     core.EventLogSource
	resolver   core.BrandResolver
	profiles   core.ProfileSource
	geo        core.GeoStore
	embeddings core.EmbeddingStore
	catalog    core.BrandCatalog
	ping       api.HealthCheck

	// 门店向量只在 Postgres 后端维护
	stores          core.StoreCatalog
	storeEmbeddings core.EmbeddingStore
}

func build(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	be, err := openBackends(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}

	cache, cacheCheck, err := openCache(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}

	als := recall.NewALSRecall(&model.ALS{
		Factors:        cfg.ALS.Factors,
		Regularization: cfg.ALS.Regularization,
		Iterations:     cfg.ALS.Iterations,
		Alpha:          cfg.ALS.Alpha,
		Workers:        cfg.ALS.Workers,
	})
	vectors := vector.NewScanService(be.embeddings, logging.Component(logger, "vector"))
	encoder := newEncoder(cfg, logger, a)

	filters, err := buildFilters(cfg.Recommend)
	if err != nil {
		return nil, err
	}
	pl, err := loadPipeline(cfg.Recommend.PipelinePath, config.Deps{
		ALS:     als,
		Vectors: vectors,
		Geo:     be.geo,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	opts := recommend.Options{
		ALS:                 als,
		Vectors:             vectors,
		Geo:                 be.geo,
		Cache:               cache,
		Weights:             cfg.Recommend.Weights(),
		DefaultTopK:         cfg.Recommend.DefaultTopK,
		DefaultRadiusKm:     cfg.Recommend.DefaultRadiusKm,
		CandidateMultiplier: cfg.Recommend.CandidateMultiplier,
		SourceTimeout:       cfg.Recommend.SourceTimeout,
		GeoTimeout:          cfg.Recommend.GeoTimeout,
		Filters:             filters,
		Pipeline:            pl,
		Logger:              logger,
	}
	if encoder != nil {
		opts.Profiles = &feature.ProfileBuilder{Source: be.profiles, Encoder: encoder}
	} else {
		logger.Warn().Msg("encoder.endpoint not set, profile-based recommendations disabled")
	}
	rec, err := recommend.New(opts)
	if err != nil {
		return nil, err
	}

	a.trainer = recommend.NewTrainer(be.events, be.resolver, als, recommend.TrainerConfig{
		TrainOnStartup: cfg.Recommend.TrainOnStartup,
		Interval:       cfg.Recommend.TrainInterval,
		Timeout:        cfg.Recommend.TrainTimeout,
	}, logger)

	a.handler = api.NewHandler(rec, a.trainer, logger)
	a.handler.Embeddings = be.embeddings
	if be.ping != nil {
		a.handler.Checks["postgres"] = be.ping
	}
	if cacheCheck != nil {
		a.handler.Checks["redis"] = cacheCheck
	}
	if encoder != nil && be.catalog != nil {
		a.handler.Indexer = &feature.EmbeddingIndexer{
			Source:  feature.BrandDocuments{Catalog: be.catalog},
			Encoder: encoder,
			Store:   be.embeddings,
		}
	}
	if encoder != nil && be.stores != nil {
		a.handler.StoreIndex = &feature.EmbeddingIndexer{
			Source:  feature.StoreDocuments{Catalog: be.stores},
			Encoder: encoder,
			Store:   be.storeEmbeddings,
		}
	}

	ok = true
	return a, nil
}

func openBackends(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger, a *app) (*backends, error) {
	if cfg.Database.DSN == "" {
		logger.Warn().Msg("database.dsn not set, using in-memory stores")
		geo := store.NewMemoryGeoStore()
		events := store.NewMemoryEventSource()
		return &backends{
			events:     events,
			resolver:   geo,
			profiles:   events,
			geo:        geo,
			embeddings: store.NewMemoryEmbeddingStore(cfg.Encoder.Dimension),
		}, nil
	}

	client, err := postgres.Open(ctx, postgres.Options{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	events := postgres.NewEventSource(client)
	return &backends{
		events:     events,
		resolver:   events,
		profiles:   postgres.NewProfileSource(client),
		geo:        postgres.NewGeoStore(client),
		embeddings: postgres.NewEmbeddingStore(client, cfg.Encoder.Dimension),
		catalog:    postgres.NewBrandCatalog(client),
		ping:       client.Ping,

		stores:          postgres.NewStoreCatalog(client),
		storeEmbeddings: postgres.NewStoreEmbeddingStore(client, cfg.Encoder.Dimension),
	}, nil
}

// openCache Redis 不可达时降级为进程内缓存，推荐照常服务。
func openCache(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger, a *app) (*recommend.ResultCache, api.HealthCheck, error) {
	var (
		backend core.Store
		check   api.HealthCheck
	)
	if cfg.Redis.Addr != "" {
		rs, err := store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS:      cfg.Redis.TLS,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, falling back to in-memory cache")
		} else {
			backend, check = rs, rs.Ping
		}
	}
	if backend == nil {
		backend = store.NewMemoryStore(time.Minute)
	}
	a.closers = append(a.closers, backend.Close)

	cache := recommend.NewResultCache(backend, cfg.Recommend.CacheTTL, logger)
	cache.Timeout = cfg.Recommend.CacheTimeout
	logger.Info().Str("backend", backend.Name()).Dur("ttl", cache.TTL).Msg("result cache ready")
	return cache, check, nil
}

func newEncoder(cfg *config.AppConfig, logger zerolog.Logger, a *app) core.TextEncoder {
	ec := cfg.Encoder
	if ec.Endpoint == "" {
		return nil
	}
	encLogger := logging.Component(logger, "encoder")
	opts := []service.EncoderOption{
		service.WithEncoderPath(ec.Path),
		service.WithEncoderDimension(ec.Dimension),
		service.WithEncoderTimeout(ec.Timeout),
		service.WithEncoderBreaker(service.BreakerConfig{
			FailureThreshold: ec.BreakerFailures,
			Timeout:          ec.BreakerTimeout,
			OnStateChange: func(from, to string) {
				metrics.EncoderBreakerTransitions.WithLabelValues(from, to).Inc()
				encLogger.Warn().Str("from", from).Str("to", to).Msg("encoder circuit breaker state changed")
			},
		}),
	}
	if ec.AuthToken != "" {
		opts = append(opts, service.WithEncoderAuth(&service.AuthConfig{Type: "bearer", Token: ec.AuthToken}))
	}
	var enc core.TextEncoder = service.NewHTTPTextEncoder(ec.Endpoint, opts...)
	if ec.CacheSize > 0 && ec.CacheTTL > 0 {
		vc := feature.NewVectorCache(ec.CacheSize, ec.CacheTTL)
		a.closers = append(a.closers, func() error { vc.Close(); return nil })
		enc = &feature.CachedEncoder{Encoder: enc, Cache: vc}
	}
	return enc
}

func buildFilters(rc config.RecommendConfig) ([]filter.Filter, error) {
	var filters []filter.Filter
	if len(rc.Blocklist) > 0 {
		filters = append(filters, filter.NewBlocklistFilter(rc.Blocklist))
	}
	if rc.FilterExpr != "" {
		f, err := filter.NewExprFilter(rc.FilterExpr)
		if err != nil {
			return nil, fmt.Errorf("recommend.filter_expr: %w", err)
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// loadPipeline 配置了 pipeline_path 时按 YAML 组装流水线，否则返回 nil 使用内置流水线。
func loadPipeline(path string, deps config.Deps) (*pipeline.Pipeline, error) {
	if path == "" {
		return nil, nil
	}
	pc, err := pipeline.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load pipeline %s: %w", path, err)
	}
	if err := config.ValidatePipelineConfig(pc); err != nil {
		return nil, err
	}
	pl, err := pc.BuildPipeline(config.NewFactory(deps))
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return pl, nil
}

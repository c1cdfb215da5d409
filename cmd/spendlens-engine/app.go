package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spendlens/spendlens-engine/internal/agent"
	"github.com/spendlens/spendlens-engine/internal/cache"
	"github.com/spendlens/spendlens-engine/internal/config"
	"github.com/spendlens/spendlens-engine/internal/detectors"
	"github.com/spendlens/spendlens-engine/internal/fetch"
	"github.com/spendlens/spendlens-engine/internal/intent"
	"github.com/spendlens/spendlens-engine/internal/models"
	"github.com/spendlens/spendlens-engine/internal/notify"
	"github.com/spendlens/spendlens-engine/internal/orchestrator"
	"github.com/spendlens/spendlens-engine/internal/registry"
	"github.com/spendlens/spendlens-engine/internal/store"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

// reflectiveAttempts bounds agent-level retry inside a single step.
const reflectiveAttempts = 2

// app bundles the wired engine with the resources that need closing.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	cache    cache.Provider
	store    *store.Store
	sink     *notify.AsyncSink
	registry *registry.Pool
	engine   *orchestrator.Engine
}

// buildApp wires the engine from configuration. recordsFile, when set,
// replaces the HTTP fetcher with a static JSON file for offline runs.
func buildApp(cfg *config.Config, logger *slog.Logger, recordsFile string) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.cache = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
		})
		if err != nil {
			logger.Warn("record cache unavailable", slog.Any("error", err))
		} else {
			a.cache = provider
		}
	}

	fetcher, err := buildFetcher(cfg, a.cache, logger, recordsFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open investigation store: %w", err)
	}
	a.store = db

	sinks := []notify.Sink{notify.LogSink{Logger: logger}}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.WebhookSink{URL: cfg.Notify.WebhookURL})
	}
	a.sink = notify.NewAsyncSink(cfg.Notify.Buffer, logger, sinks...)

	pool := registry.NewPool(cfg.Registry.MaxPerCapability, cfg.Registry.AcquireTimeout, logger)
	pool.Register(fetch.CapabilityFetch, func() agent.Agent {
		return fetch.NewFetchAgent(fetcher)
	})
	registerDetector(pool, cfg, logger, detectors.CapabilityStatistical, detectors.NewStatisticalAgent)
	registerDetector(pool, cfg, logger, detectors.CapabilityConcentration, detectors.NewConcentrationAgent)
	registerDetector(pool, cfg, logger, detectors.CapabilitySpectral, detectors.NewSpectralAgent)
	a.registry = pool

	profiles, err := orchestrator.NewProfileEngine(cfg.Profiles.Path, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load detector profiles: %w", err)
	}

	engine, err := orchestrator.NewEngine(orchestrator.Options{
		Config:    cfg.Orchestrator,
		Detection: cfg.Detection,
		Registry:  pool,
		Router:    intent.NewRouter(cfg.Intent.ConfidenceThreshold, logger),
		Store:     db,
		Sink:      a.sink,
		Profiles:  profiles,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine
	return a, nil
}

func registerDetector(pool *registry.Pool, cfg *config.Config, logger *slog.Logger, capability string, factory func() *agent.Base) {
	pool.Register(capability, func() agent.Agent {
		return agent.NewReflective(
			factory(),
			agent.ConfidenceScorer,
			agent.WidenDetection,
			cfg.Orchestrator.AcceptanceThreshold,
			reflectiveAttempts,
			logger,
		)
	})
}

func buildFetcher(cfg *config.Config, cacheProvider cache.Provider, logger *slog.Logger, recordsFile string) (fetch.Fetcher, error) {
	if recordsFile != "" {
		data, err := os.ReadFile(recordsFile)
		if err != nil {
			return nil, fmt.Errorf("read records file: %w", err)
		}
		var records []models.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse records file: %w", err)
		}
		return &fetch.StaticFetcher{Records: records}, nil
	}
	if cfg.Fetcher.BaseURL == "" {
		return nil, fmt.Errorf("fetcher base URL is required: %w", utils.ErrDataSourceUnavailable)
	}
	return fetch.NewClient(
		cfg.Fetcher.BaseURL,
		cfg.Fetcher.RecordsPath,
		cfg.Fetcher.APIKey,
		cfg.Fetcher.Timeout,
		cacheProvider,
		cfg.Fetcher.RecordsTTL,
		logger,
	), nil
}

// Close releases everything buildApp opened, tolerating partial wiring.
func (a *app) Close() {
	if a.engine != nil {
		a.engine.Shutdown()
	}
	if a.registry != nil {
		a.registry.Shutdown()
	}
	if a.sink != nil {
		a.sink.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing investigation store", slog.Any("error", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("closing record cache", slog.Any("error", err))
		}
	}
}

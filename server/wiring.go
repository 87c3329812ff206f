package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/mercaflow/cache"
	"github.com/jonwraymond/mercaflow/classify"
	"github.com/jonwraymond/mercaflow/config"
	"github.com/jonwraymond/mercaflow/observe"
	"github.com/jonwraymond/mercaflow/offline"
	"github.com/jonwraymond/mercaflow/resilience"
)

// ObserveConfig maps the observe section onto observe.Config.
func ObserveConfig(cfg config.ObserveConfig, version string) observe.Config {
	return observe.Config{
		ServiceName: cfg.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.TracingExporter != "none",
			Exporter:  cfg.TracingExporter,
			Endpoint:  cfg.TracingEndpoint,
			SamplePct: cfg.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.MetricsExporter != "none",
			Exporter: cfg.MetricsExporter,
			Endpoint: cfg.MetricsEndpoint,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.LogLevel,
		},
	}
}

// OpenStorage opens the configured generation storage. The returned close
// function is never nil.
func OpenStorage(cfg config.OfflineConfig) (cache.Storage, func() error, error) {
	switch cfg.Storage {
	case "sqlite":
		s, err := cache.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return s, s.Close, nil
	case "", "memory":
		return cache.NewMemoryStorage(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown storage %q", config.ErrInvalid, cfg.Storage)
	}
}

// Policy builds the interception policy. Empty lists and a zero entry limit
// keep the defaults.
func Policy(cfg config.OfflineConfig) *offline.Policy {
	p := offline.DefaultPolicy()
	if len(cfg.ExcludedPrefixes) > 0 {
		p.ExcludedPrefixes = cfg.ExcludedPrefixes
	}
	if len(cfg.ExcludedSubstrings) > 0 {
		p.ExcludedSubstrings = cfg.ExcludedSubstrings
	}
	if len(cfg.Extensions) > 0 {
		p.Extensions = cfg.Extensions
	}
	if len(cfg.SensitiveHeaders) > 0 {
		p.SensitiveHeaders = cfg.SensitiveHeaders
	}
	if cfg.MaxEntryBytes > 0 {
		p.MaxEntryBytes = int(cfg.MaxEntryBytes)
	}
	return &p
}

// NewUpstream builds the origin client guarded by the configured breaker.
func NewUpstream(cfg *config.Config, log observe.Logger) (*offline.Upstream, error) {
	return offline.NewUpstream(offline.UpstreamConfig{
		BaseURL:      cfg.Server.Upstream,
		Timeout:      cfg.Offline.FetchTimeout,
		MaxBodyBytes: cfg.Offline.MaxBodyBytes,
		Breaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Offline.BreakerFailures,
			ResetTimeout: cfg.Offline.BreakerReset,
			OnStateChange: func(from, to resilience.State) {
				log.Warn(context.Background(), "upstream circuit changed",
					observe.F("from", from.String()), observe.F("to", to.String()))
			},
		},
	})
}

// NewController builds the offline controller over storage and network.
func NewController(cfg config.OfflineConfig, storage cache.Storage, network offline.Network, obs observe.Observer) (*offline.Controller, error) {
	return offline.New(offline.Config{
		Version:     cfg.Version,
		Mode:        offline.Mode(cfg.Mode),
		Origin:      cfg.Origin,
		ShellAssets: cfg.ShellAssets,
		Policy:      Policy(cfg),
		InstallRetry: resilience.RetryConfig{
			MaxAttempts:  cfg.InstallAttempts,
			InitialDelay: 200 * time.Millisecond,
			Jitter:       true,
		},
	}, storage, network, offline.WithObserver(obs))
}

// NewClassifier builds the classifier with its mapping store and optional
// catalog file. An empty mappings file keeps learned mappings in memory.
func NewClassifier(ctx context.Context, cfg config.ClassifierConfig, obs observe.Observer) (*classify.Classifier, error) {
	var store classify.MappingStore = classify.NewMemoryStore()
	if cfg.MappingsFile != "" {
		store = classify.NewFileStore(cfg.MappingsFile, cfg.QuotaBytes)
	}

	opts := []classify.Option{
		classify.WithObserver(obs),
		classify.WithLimits(classify.Limits{MaxMappings: cfg.MaxMappings}),
	}
	if cfg.CatalogFile != "" {
		catalog, keywords, err := classify.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, classify.WithCatalog(catalog), classify.WithKeywords(keywords))
	}
	return classify.New(ctx, store, opts...)
}

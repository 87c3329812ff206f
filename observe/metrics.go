package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records the module's counters and histograms.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordFetch records one intercepted request and how it was answered.
	RecordFetch(ctx context.Context, route, outcome string, duration time.Duration)

	// RecordCacheWrite records a background cache write.
	RecordCacheWrite(ctx context.Context, err error)

	// RecordLifecycle records a controller phase transition.
	RecordLifecycle(ctx context.Context, phase string, err error)

	// RecordClassification records which table decided a section.
	RecordClassification(ctx context.Context, source string)

	// RecordHTTP records a served HTTP request.
	RecordHTTP(ctx context.Context, method string, status int, duration time.Duration)
}

type metricsImpl struct {
	fetchCount     metric.Int64Counter
	fetchDuration  metric.Float64Histogram
	cacheWrites    metric.Int64Counter
	lifecycle      metric.Int64Counter
	classification metric.Int64Counter
	httpDuration   metric.Float64Histogram
}

// NewMetrics creates the module's instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	fetchCount, err := meter.Int64Counter(
		"mercaflow.fetch.total",
		metric.WithDescription("Intercepted requests by route and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"mercaflow.fetch.duration_ms",
		metric.WithDescription("Time to answer an intercepted request"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheWrites, err := meter.Int64Counter(
		"mercaflow.cache.writes",
		metric.WithDescription("Background cache writes by result"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, err
	}

	lifecycle, err := meter.Int64Counter(
		"mercaflow.lifecycle.transitions",
		metric.WithDescription("Offline controller phase transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	classification, err := meter.Int64Counter(
		"mercaflow.classify.total",
		metric.WithDescription("Item classifications by deciding table"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	httpDuration, err := meter.Float64Histogram(
		"mercaflow.http.duration_ms",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		fetchCount:     fetchCount,
		fetchDuration:  fetchDuration,
		cacheWrites:    cacheWrites,
		lifecycle:      lifecycle,
		classification: classification,
		httpDuration:   httpDuration,
	}, nil
}

func (m *metricsImpl) RecordFetch(ctx context.Context, route, outcome string, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("outcome", outcome),
	)
	m.fetchCount.Add(ctx, 1, opt)
	m.fetchDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheWrite(ctx context.Context, err error) {
	m.cacheWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result(err))))
}

func (m *metricsImpl) RecordLifecycle(ctx context.Context, phase string, err error) {
	m.lifecycle.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("result", result(err)),
	))
}

func (m *metricsImpl) RecordClassification(ctx context.Context, source string) {
	m.classification.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *metricsImpl) RecordHTTP(ctx context.Context, method string, status int, duration time.Duration) {
	m.httpDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

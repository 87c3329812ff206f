package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumFor(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics_FetchCountedByOutcome(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFetch(ctx, "asset", "network", 10*time.Millisecond)
	m.RecordFetch(ctx, "asset", "network", 10*time.Millisecond)
	m.RecordFetch(ctx, "navigation", "shell", time.Millisecond)

	rm := collect(t, reader)
	found := findMetric(rm, "mercaflow.fetch.total")
	if found == nil {
		t.Fatal("mercaflow.fetch.total metric not found")
	}
	if got := sumFor(t, found, "outcome", "network"); got != 2 {
		t.Errorf("network outcome count = %d, want 2", got)
	}
	if got := sumFor(t, found, "outcome", "shell"); got != 1 {
		t.Errorf("shell outcome count = %d, want 1", got)
	}
	if findMetric(rm, "mercaflow.fetch.duration_ms") == nil {
		t.Error("duration histogram not recorded")
	}
}

func TestMetrics_CacheWritesByResult(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheWrite(ctx, nil)
	m.RecordCacheWrite(ctx, errors.New("quota"))

	found := findMetric(collect(t, reader), "mercaflow.cache.writes")
	if found == nil {
		t.Fatal("mercaflow.cache.writes metric not found")
	}
	if sumFor(t, found, "result", "ok") != 1 || sumFor(t, found, "result", "error") != 1 {
		t.Errorf("unexpected write counts: %+v", found.Data)
	}
}

func TestMetrics_ClassificationAndLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordClassification(ctx, "learned")
	m.RecordClassification(ctx, "keyword")
	m.RecordClassification(ctx, "keyword")
	m.RecordLifecycle(ctx, "active", nil)

	rm := collect(t, reader)
	if got := sumFor(t, findMetric(rm, "mercaflow.classify.total"), "source", "keyword"); got != 2 {
		t.Errorf("keyword classifications = %d, want 2", got)
	}
	if got := sumFor(t, findMetric(rm, "mercaflow.lifecycle.transitions"), "phase", "active"); got != 1 {
		t.Errorf("active transitions = %d, want 1", got)
	}
}

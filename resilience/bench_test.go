package resilience

import (
	"context"
	"testing"
)

func BenchmarkCircuitBreaker_Execute(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, op)
	}
}

func BenchmarkExecutor_Execute(b *testing.B) {
	e := NewExecutor(WithCircuitBreaker(NewCircuitBreaker(CircuitBreakerConfig{})))
	ctx := context.Background()
	op := func(context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Execute(ctx, op)
	}
}

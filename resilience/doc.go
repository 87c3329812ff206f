// Package resilience guards calls to the app's origin.
//
// # Patterns
//
//   - Circuit Breaker: after repeated network failures the origin is treated
//     as unreachable and calls fail fast with ErrCircuitOpen, so the offline
//     controller answers from cache without waiting on dead connections.
//
//   - Retry: retries transient failures with exponential, linear or
//     constant backoff. Used while pre-caching shell assets.
//
//   - Timeout: bounds a single call.
//
// # Usage
//
//	guard := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  3,
//	        ResetTimeout: 15 * time.Second,
//	    })),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	err := guard.Execute(ctx, func(ctx context.Context) error {
//	    return fetchFromOrigin(ctx)
//	})
package resilience

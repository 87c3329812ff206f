// Package health reports whether the mercaflow front can serve.
//
// A Checker reports Healthy, Degraded or Unhealthy. The Aggregator runs its
// checkers in parallel and returns results in registration order; the
// overall status is the worst one.
//
// # Checkers
//
//   - NewControllerChecker: unhealthy until the offline controller is
//     active, degraded once the kill switch retired it.
//   - NewGenerationChecker: unhealthy when the current generation is
//     missing from storage.
//   - NewUpstreamChecker: degraded while the origin circuit is open, since
//     the cache keeps answering.
//   - NewClassifierChecker: degraded when learned mappings only live in
//     memory.
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health
package health

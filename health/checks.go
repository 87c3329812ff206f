package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/mercaflow/cache"
	"github.com/jonwraymond/mercaflow/offline"
	"github.com/jonwraymond/mercaflow/resilience"
)

// Controller is the part of offline.Controller the checkers read.
type Controller interface {
	Phase() offline.Phase
	Version() string
	Mode() offline.Mode
}

// NewControllerChecker reports the offline lifecycle. Only an active
// controller is healthy; a retired one is degraded since requests still
// pass through to the origin.
func NewControllerChecker(c Controller) Checker {
	return NewCheckerFunc("offline", func(context.Context) Result {
		phase := c.Phase()
		var r Result
		switch phase {
		case offline.PhaseActive:
			r = Healthy("controller active")
		case offline.PhaseRedundant:
			r = Degraded("kill switch retired the cache")
		default:
			r = Unhealthy("controller not active", fmt.Errorf("%w: phase %s", ErrCheckFailed, phase))
		}
		r.Details = map[string]any{
			"phase":   phase.String(),
			"version": c.Version(),
			"mode":    string(c.Mode()),
		}
		return r
	})
}

// NewGenerationChecker reports whether the named generation exists.
func NewGenerationChecker(storage cache.Storage, version string) Checker {
	return NewCheckerFunc("generation", func(ctx context.Context) Result {
		ok, err := storage.Has(ctx, version)
		if err != nil {
			return Unhealthy("storage unavailable", err)
		}
		if !ok {
			return Unhealthy("generation "+version+" missing", ErrCheckFailed)
		}
		r := Healthy("generation " + version + " present")
		if names, err := storage.Names(ctx); err == nil {
			r.Details = map[string]any{"generations": names}
		}
		return r
	})
}

// NewUpstreamChecker reports the origin circuit. An open circuit is only
// degraded because cached responses still serve.
func NewUpstreamChecker(breaker *resilience.CircuitBreaker) Checker {
	return NewCheckerFunc("upstream", func(context.Context) Result {
		m := breaker.Metrics()
		var r Result
		switch m.State {
		case resilience.StateClosed:
			r = Healthy("origin reachable")
		case resilience.StateHalfOpen:
			r = Degraded("origin probing")
		default:
			r = Degraded("origin circuit open")
		}
		r.Details = map[string]any{"state": m.State.String(), "failures": m.Failures}
		if !m.LastFailure.IsZero() {
			r.Details["last_failure"] = m.LastFailure.UTC().Format(time.RFC3339)
		}
		return r
	})
}

// Persistence is the part of classify.Classifier the checker reads.
type Persistence interface {
	Degraded() bool
}

// NewClassifierChecker is degraded while learned mappings cannot be saved.
func NewClassifierChecker(p Persistence) Checker {
	return NewCheckerFunc("classifier", func(context.Context) Result {
		if p.Degraded() {
			return Degraded("learned mappings not persisted")
		}
		return Healthy("learned mappings persisted")
	})
}

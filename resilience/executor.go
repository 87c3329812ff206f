package resilience

import (
	"context"
	"time"
)

// Op is a guarded operation.
type Op = func(context.Context) error

// Executor runs an Op through a breaker, a retry and a per-attempt timeout,
// outermost first. Any of the three may be absent.
type Executor struct {
	breaker *CircuitBreaker
	retry   *Retry
	timeout *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an executor. With no options it just calls op.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker fails fast while the breaker is open. An open or
// half-open breaker sees one outcome per Execute, after retries.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry retries failed attempts inside the breaker.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(d) }
}

// CircuitBreaker returns the configured breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.breaker
}

// Execute runs op through the configured layers.
func (e *Executor) Execute(ctx context.Context, op Op) error {
	run := op
	if e.timeout != nil {
		run = wrap(e.timeout.Execute, run)
	}
	if e.retry != nil {
		run = wrap(e.retry.Execute, run)
	}
	if e.breaker != nil {
		run = wrap(e.breaker.Execute, run)
	}
	return run(ctx)
}

func wrap(layer func(context.Context, Op) error, inner Op) Op {
	return func(ctx context.Context) error { return layer(ctx, inner) }
}

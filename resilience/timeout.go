package resilience

import (
	"context"
	"errors"
	"time"
)

// Timeout bounds a single operation.
type Timeout struct {
	timeout time.Duration
}

// NewTimeout creates a timeout wrapper. Non-positive durations default to
// 10 seconds.
func NewTimeout(timeout time.Duration) *Timeout {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Timeout{timeout: timeout}
}

// Duration returns the configured limit.
func (t *Timeout) Duration() time.Duration {
	return t.timeout
}

// Execute runs op with a deadline. op must honor ctx; when the deadline
// passes first, ErrTimeout is returned without waiting for op.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return ErrTimeout
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

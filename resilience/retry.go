package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the maximum delay between retries.
	// Default: 5s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds up to 25% randomness to delays.
	Jitter bool

	// RetryIf determines if an error should trigger a retry.
	// Default: everything except Permanent errors and context.Canceled.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs a failing operation with backoff.
type Retry struct {
	config RetryConfig
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.RetryIf == nil {
		c.RetryIf = countsAsFailure
	}
	return c
}

// NewRetry creates a retry; zero fields take their defaults.
func NewRetry(config RetryConfig) *Retry {
	return &Retry{config: config.withDefaults()}
}

// Execute runs op until it succeeds, RetryIf rejects its error, or the
// attempts run out. It returns op's last error, or ctx.Err() when the
// context ends during a backoff.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	cfg := r.config
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil || attempt >= cfg.MaxAttempts || !cfg.RetryIf(err) {
			return err
		}

		d := r.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, d)
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// delay is the wait after the given failed attempt, capped at MaxDelay
// before jitter.
func (r *Retry) delay(attempt int) time.Duration {
	cfg := r.config
	d := cfg.InitialDelay
	switch cfg.Strategy {
	case BackoffLinear:
		d *= time.Duration(attempt)
	case BackoffExponential:
		d = time.Duration(float64(d) * math.Pow(cfg.Multiplier, float64(attempt-1)))
	}
	d = min(d, cfg.MaxDelay)

	if cfg.Jitter && d >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

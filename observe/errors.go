package observe

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("observe: invalid config")

var (
	ErrMissingServiceName     = fmt.Errorf("%w: service name is required", ErrInvalidConfig)
	ErrInvalidSamplePct       = fmt.Errorf("%w: sample percentage outside [0, 1]", ErrInvalidConfig)
	ErrInvalidTracingExporter = fmt.Errorf("%w: tracing exporter", ErrInvalidConfig)
	ErrInvalidMetricsExporter = fmt.Errorf("%w: metrics exporter", ErrInvalidConfig)
	ErrInvalidLogLevel        = fmt.Errorf("%w: log level", ErrInvalidConfig)
)

// ErrNilObserver is returned when a nil Observer is passed.
var ErrNilObserver = errors.New("observe: observer is nil")

// Sampling bounds for TracingConfig.SamplePct.
const (
	MinSamplePct = 0.0
	MaxSamplePct = 1.0
)

// RedactedFields are log keys whose values are replaced with [REDACTED].
// Matching ignores case, so header names such as Set-Cookie are covered.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"cookie",
	"set-cookie",
	"authorization",
	"proxy-authorization",
	"api_key",
	"credential",
}

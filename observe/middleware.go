package observe

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// HTTPMiddleware wraps handlers with a span, a duration histogram and an
// access log line.
//
// Contract:
//   - Concurrency: the returned handler is safe for concurrent use.
//   - Context: the span is attached to the request context seen by next.
//   - Ownership: request and response bodies pass through unmodified.
type HTTPMiddleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewHTTPMiddleware creates a middleware from individual components.
func NewHTTPMiddleware(tracer Tracer, metrics Metrics, logger Logger) *HTTPMiddleware {
	return &HTTPMiddleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver creates an HTTPMiddleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*HTTPMiddleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return NewHTTPMiddleware(obs.Tracer(), obs.Metrics(), obs.Logger()), nil
}

// Wrap returns next instrumented.
func (m *HTTPMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := m.tracer.StartSpan(r.Context(), SpanHTTP,
			attribute.String("http.method", r.Method),
			attribute.String("url.path", r.URL.Path),
		)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		duration := time.Since(start)
		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		m.tracer.EndSpan(span, nil)
		m.metrics.RecordHTTP(ctx, r.Method, rec.status, duration)

		fields := []Field{
			{Key: "method", Value: r.Method},
			{Key: "path", Value: r.URL.Path},
			{Key: "status", Value: rec.status},
			{Key: "bytes", Value: rec.bytes},
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}
		if rec.status >= http.StatusInternalServerError {
			m.logger.Warn(ctx, "request served", fields...)
		} else {
			m.logger.Debug(ctx, "request served", fields...)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Package observe provides the logging, tracing and metrics used by the
// offline controller and the classifier.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers receive an Observer and pass its Logger,
// Tracer and Metrics to the components they build.
package observe

// Package server assembles the mercaflow HTTP front from configuration.
//
// Routes:
//
//	/healthz, /readyz, /health  health handlers
//	/api/v1/...                 classifier API
//	/metrics                    Prometheus scrape, when that exporter is selected
//	/                           offline controller proxying to the upstream
//
// The whole mux is wrapped by observe.HTTPMiddleware.
package server

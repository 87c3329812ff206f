package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/mercaflow/api"
	"github.com/jonwraymond/mercaflow/cache"
	"github.com/jonwraymond/mercaflow/classify"
	"github.com/jonwraymond/mercaflow/config"
	"github.com/jonwraymond/mercaflow/health"
	"github.com/jonwraymond/mercaflow/observe"
	"github.com/jonwraymond/mercaflow/offline"
)

// Server is the assembled HTTP front.
type Server struct {
	cfg *config.Config
	obs observe.Observer
	log observe.Logger

	storage      cache.Storage
	closeStorage func() error

	upstream   *offline.Upstream
	controller *offline.Controller
	classifier *classify.Classifier
	health     *health.Aggregator

	handler http.Handler
}

// New wires every component. Nothing is fetched until Start.
func New(ctx context.Context, cfg *config.Config, obs observe.Observer) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalid)
	}
	if obs == nil {
		obs = observe.Nop()
	}
	s := &Server{cfg: cfg, obs: obs, log: obs.Logger()}

	storage, closeStorage, err := OpenStorage(cfg.Offline)
	if err != nil {
		return nil, err
	}
	s.storage, s.closeStorage = storage, closeStorage

	if err := s.wire(ctx); err != nil {
		_ = closeStorage()
		return nil, err
	}
	return s, nil
}

func (s *Server) wire(ctx context.Context) error {
	var err error
	if s.upstream, err = NewUpstream(s.cfg, s.log); err != nil {
		return err
	}
	if s.controller, err = NewController(s.cfg.Offline, s.storage, s.upstream, s.obs); err != nil {
		return err
	}
	if s.classifier, err = NewClassifier(ctx, s.cfg.Classifier, s.obs); err != nil {
		return err
	}

	s.health = health.NewAggregator()
	s.health.Register(health.NewControllerChecker(s.controller))
	if s.controller.Mode() == offline.ModeNormal {
		s.health.Register(health.NewGenerationChecker(s.storage, s.controller.Version()))
	}
	s.health.Register(health.NewUpstreamChecker(s.upstream.Breaker()))
	s.health.Register(health.NewClassifierChecker(s.classifier))

	gin.SetMode(gin.ReleaseMode)
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, s.health)
	mux.Handle(api.Prefix+"/", api.NewRouter(s.classifier, s.log))
	if s.cfg.Observe.MetricsExporter == "prometheus" {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	mux.Handle("/", s.controller)

	mw, err := observe.MiddlewareFromObserver(s.obs)
	if err != nil {
		return err
	}
	s.handler = mw.Wrap(mux)
	return nil
}

// Handler returns the instrumented mux.
func (s *Server) Handler() http.Handler { return s.handler }

// Controller returns the offline controller.
func (s *Server) Controller() *offline.Controller { return s.controller }

// Classifier returns the classifier.
func (s *Server) Classifier() *classify.Classifier { return s.classifier }

// Health returns the aggregator behind /health.
func (s *Server) Health() *health.Aggregator { return s.health }

// Start installs and activates the offline controller. A failed install is
// logged and leaves the controller idle, so requests pass straight through.
func (s *Server) Start(ctx context.Context) {
	if err := s.controller.Start(ctx); err != nil {
		s.log.Error(ctx, "offline controller not started", observe.F("error", err))
	}
}

// Run starts the controller and serves on the configured address until ctx
// is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info(ctx, "serving", observe.F("addr", ln.Addr().String()), observe.F("upstream", s.cfg.Server.Upstream))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.Start(gctx)
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.controller.Wait()
		s.log.Info(shutdownCtx, "stopped")
		return err
	})
	return g.Wait()
}

// Close waits for pending cache writes and releases storage.
func (s *Server) Close() error {
	s.controller.Wait()
	return s.closeStorage()
}

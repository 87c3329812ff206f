package offline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/mercaflow/cache"
	"github.com/jonwraymond/mercaflow/observe"
	"github.com/jonwraymond/mercaflow/resilience"
)

// Mode selects normal caching or the kill switch.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeKill   Mode = "kill"
)

// Phase is the controller lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInstalling
	PhaseInstalled
	PhaseActivating
	PhaseActive
	PhaseRedundant
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInstalling:
		return "installing"
	case PhaseInstalled:
		return "installed"
	case PhaseActivating:
		return "activating"
	case PhaseActive:
		return "active"
	case PhaseRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// DefaultShellAssets are pre-cached at install.
var DefaultShellAssets = []string{"/", "/index.html", "/manifest.json"}

// shellDocuments are tried in order for navigations that miss the cache.
var shellDocuments = []string{"/", "/index.html"}

// Config configures a Controller.
type Config struct {
	// Version names the current generation. Required.
	Version string

	// Mode is ModeNormal or ModeKill. Default: ModeNormal
	Mode Mode

	// Origin is the public origin used to build cache keys, since every
	// request the controller sees belongs to one app. Default:
	// http://localhost
	Origin string

	// ShellAssets are absolute paths fetched at install.
	// Default: DefaultShellAssets
	ShellAssets []string

	// Policy decides interception and cacheability. Default: DefaultPolicy()
	Policy *Policy

	// InstallRetry bounds retries per shell asset.
	// Default: 3 attempts, 100ms initial delay
	InstallRetry resilience.RetryConfig
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithObserver sets the logger, tracer and metrics. Default: observe.Nop()
func WithObserver(obs observe.Observer) Option {
	return func(c *Controller) {
		if obs != nil {
			c.obs = obs
		}
	}
}

// WithClients shares a client set. Default: NewClientSet(0)
func WithClients(clients *ClientSet) Option {
	return func(c *Controller) {
		if clients != nil {
			c.clients = clients
		}
	}
}

// Controller is the offline cache controller.
type Controller struct {
	version string
	mode    Mode
	origin  *url.URL
	assets  []string
	policy  Policy
	retry   *resilience.Retry

	shellKeys []string

	storage cache.Storage
	network Network
	clients *ClientSet
	obs     observe.Observer
	log     observe.Logger

	// lifecycle serializes Install and Activate.
	lifecycle sync.Mutex

	mu      sync.RWMutex
	phase   Phase
	current cache.Generation

	writes sync.WaitGroup
}

// New creates a controller in PhaseIdle.
func New(cfg Config, storage cache.Storage, network Network, opts ...Option) (*Controller, error) {
	if storage == nil || network == nil {
		return nil, fmt.Errorf("%w: storage and network are required", ErrInvalidConfig)
	}
	if err := cache.ValidateName(cfg.Version); err != nil {
		return nil, fmt.Errorf("%w: version: %w", ErrInvalidConfig, err)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeNormal
	}
	if mode != ModeNormal && mode != ModeKill {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, cfg.Mode)
	}

	originStr := cfg.Origin
	if originStr == "" {
		originStr = "http://localhost"
	}
	origin, err := url.Parse(originStr)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("%w: origin %q must be an absolute URL", ErrInvalidConfig, originStr)
	}
	origin.Path, origin.RawPath, origin.RawQuery, origin.Fragment = "", "", "", ""

	assets := cfg.ShellAssets
	if len(assets) == 0 {
		assets = DefaultShellAssets
	}
	for _, a := range assets {
		if !strings.HasPrefix(a, "/") {
			return nil, fmt.Errorf("%w: shell asset %q must be an absolute path", ErrInvalidConfig, a)
		}
	}

	policy := DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	policy.compile()

	c := &Controller{
		version: cfg.Version,
		mode:    mode,
		origin:  origin,
		assets:  append([]string(nil), assets...),
		policy:  policy,
		retry:   resilience.NewRetry(cfg.InstallRetry),
		storage: storage,
		network: network,
		clients: NewClientSet(0),
		obs:     observe.Nop(),
	}
	for _, doc := range shellDocuments {
		c.shellKeys = append(c.shellKeys, c.keyFor(&url.URL{Path: doc}))
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.obs.Logger().With(observe.F("version", c.version), observe.F("mode", string(c.mode)))
	return c, nil
}

// Version returns the configured generation name.
func (c *Controller) Version() string { return c.version }

// Mode returns the configured mode.
func (c *Controller) Mode() Mode { return c.mode }

// Clients returns the tracked client set.
func (c *Controller) Clients() *ClientSet { return c.clients }

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) state() (Phase, cache.Generation) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase, c.current
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Start installs and, on success, activates immediately.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.Install(ctx); err != nil {
		return err
	}
	return c.Activate(ctx)
}

// Install pre-caches the shell assets into the generation named by the
// version. Every asset must answer 200 or nothing is stored; a generation
// created by a failed install is deleted again.
func (c *Controller) Install(ctx context.Context) (err error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	switch c.Phase() {
	case PhaseIdle:
	case PhaseRedundant:
		return ErrRedundant
	default:
		return fmt.Errorf("%w: install in phase %s", ErrLifecycle, c.Phase())
	}

	ctx, span := c.obs.Tracer().StartSpan(ctx, observe.SpanInstall,
		attribute.String("offline.version", c.version),
		attribute.Int("offline.assets", len(c.assets)),
	)
	defer func() {
		c.obs.Tracer().EndSpan(span, err)
		c.obs.Metrics().RecordLifecycle(ctx, PhaseInstalled.String(), err)
	}()

	c.setPhase(PhaseInstalling)

	if c.mode == ModeKill {
		c.log.Info(ctx, "install: kill switch, skipping pre-cache")
		c.setPhase(PhaseInstalled)
		return nil
	}

	if err := c.precache(ctx); err != nil {
		c.setPhase(PhaseIdle)
		c.log.Error(ctx, "install failed", observe.F("error", err))
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	c.log.Info(ctx, "installed", observe.F("assets", len(c.assets)))
	c.setPhase(PhaseInstalled)
	return nil
}

func (c *Controller) precache(ctx context.Context) error {
	existed, err := c.storage.Has(ctx, c.version)
	if err != nil {
		return err
	}
	gen, err := c.storage.Open(ctx, c.version)
	if err != nil {
		return err
	}

	entries := make([]*cache.Entry, len(c.assets))
	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range c.assets {
		g.Go(func() error {
			entry, err := c.fetchAsset(gctx, asset)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = gen.PutAll(ctx, entries)
	}
	if err != nil && !existed {
		if _, derr := c.storage.Delete(context.WithoutCancel(ctx), c.version); derr != nil {
			c.log.Warn(ctx, "install: delete partial generation", observe.F("error", derr))
		}
	}
	return err
}

func (c *Controller) fetchAsset(ctx context.Context, asset string) (*cache.Entry, error) {
	key := c.keyFor(&url.URL{Path: asset})

	var entry *cache.Entry
	err := c.retry.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
		if err != nil {
			return resilience.Permanent(err)
		}
		resp, err := c.network.Do(ctx, req)
		if err != nil {
			return err
		}
		if resp.Status != http.StatusOK {
			return resilience.Permanent(fmt.Errorf("%s: status %d", asset, resp.Status))
		}
		entry = entryFromResponse(key, resp)
		entry.StoredAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", asset, err)
	}
	return entry, nil
}

// Activate makes the installed generation current. In normal mode every
// other generation is deleted while clients are claimed; in kill mode every
// generation is deleted, the controller becomes redundant and clients are
// told to reload.
func (c *Controller) Activate(ctx context.Context) (err error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	switch c.Phase() {
	case PhaseInstalled:
	case PhaseRedundant:
		return ErrRedundant
	default:
		return fmt.Errorf("%w: activate in phase %s", ErrLifecycle, c.Phase())
	}

	ctx, span := c.obs.Tracer().StartSpan(ctx, observe.SpanActivate,
		attribute.String("offline.version", c.version),
		attribute.String("offline.mode", string(c.mode)),
	)
	defer func() {
		c.obs.Tracer().EndSpan(span, err)
		c.obs.Metrics().RecordLifecycle(ctx, c.Phase().String(), err)
	}()

	c.setPhase(PhaseActivating)

	if c.mode == ModeKill {
		return c.retire(ctx)
	}

	var deleted, claimed int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := deleteGenerations(gctx, c.storage, func(name string) bool { return name != c.version })
		deleted = n
		return err
	})
	g.Go(func() error {
		claimed = c.clients.Claim(c.version)
		return nil
	})
	if err := g.Wait(); err != nil {
		c.setPhase(PhaseInstalled)
		c.log.Error(ctx, "activate failed", observe.F("error", err))
		return fmt.Errorf("activate: %w", err)
	}

	gen, err := c.storage.Open(ctx, c.version)
	if err != nil {
		c.setPhase(PhaseInstalled)
		return fmt.Errorf("activate: open generation: %w", err)
	}

	c.mu.Lock()
	c.current = gen
	c.phase = PhaseActive
	c.mu.Unlock()

	c.log.Info(ctx, "activated", observe.F("deleted_generations", deleted), observe.F("claimed_clients", claimed))
	return nil
}

func (c *Controller) retire(ctx context.Context) error {
	deleted, err := Purge(ctx, c.storage)
	if err != nil {
		c.setPhase(PhaseInstalled)
		c.log.Error(ctx, "kill switch: delete generations", observe.F("error", err))
		return fmt.Errorf("activate: %w", err)
	}

	c.mu.Lock()
	c.current = nil
	c.phase = PhaseRedundant
	c.mu.Unlock()

	targets := c.clients.NavigateAll()
	c.log.Warn(ctx, "kill switch: unregistered",
		observe.F("deleted_generations", deleted),
		observe.F("reloading_clients", len(targets)),
	)
	return nil
}

func deleteGenerations(ctx context.Context, storage cache.Storage, match func(string) bool) (int, error) {
	names, err := storage.Names(ctx)
	if err != nil {
		return 0, fmt.Errorf("list generations: %w", err)
	}
	deleted := 0
	for _, name := range names {
		if !match(name) {
			continue
		}
		ok, err := storage.Delete(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("delete generation %q: %w", name, err)
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// Wait blocks until background cache writes started so far have finished.
func (c *Controller) Wait() {
	c.writes.Wait()
}

// keyFor returns the absolute cache key for a request URL on the origin.
func (c *Controller) keyFor(u *url.URL) string {
	k := *c.origin
	k.Path = u.Path
	k.RawPath = u.RawPath
	k.RawQuery = u.RawQuery
	return cache.Key(&k)
}

// Purge deletes every generation in storage and returns how many were
// removed.
func Purge(ctx context.Context, storage cache.Storage) (int, error) {
	return deleteGenerations(ctx, storage, func(string) bool { return true })
}

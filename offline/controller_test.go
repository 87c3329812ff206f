package offline

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/mercaflow/cache"
	"github.com/jonwraymond/mercaflow/resilience"
)

var errOffline = errors.New("dial tcp: connection refused")

// fakeOrigin serves fixed responses by path and can be taken offline.
type fakeOrigin struct {
	mu        sync.Mutex
	offline   bool
	responses map[string]*Response
	failures  map[string]int
	calls     map[string]int
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{
		responses: map[string]*Response{
			"/":              {Status: http.StatusOK, Header: http.Header{"Content-Type": {"text/html"}}, Body: []byte("<html>shell</html>")},
			"/index.html":    {Status: http.StatusOK, Header: http.Header{"Content-Type": {"text/html"}}, Body: []byte("<html>index</html>")},
			"/manifest.json": {Status: http.StatusOK, Header: http.Header{"Content-Type": {"application/json"}}, Body: []byte(`{"name":"Mercaflow"}`)},
		},
		failures: map[string]int{},
		calls:    map[string]int{},
	}
}

func (o *fakeOrigin) Do(_ context.Context, r *http.Request) (*Response, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls[r.Method+" "+r.URL.Path]++
	if o.offline {
		return nil, errOffline
	}
	if o.failures[r.URL.Path] > 0 {
		o.failures[r.URL.Path]--
		return nil, errOffline
	}
	resp, ok := o.responses[r.URL.Path]
	if !ok {
		return &Response{Status: http.StatusNotFound, Header: http.Header{}, Body: []byte("not found"), Source: SourceNetwork}, nil
	}
	return &Response{Status: resp.Status, Header: resp.Header.Clone(), Body: resp.Body, Source: SourceNetwork}, nil
}

func (o *fakeOrigin) set(path string, resp *Response) {
	o.mu.Lock()
	o.responses[path] = resp
	o.mu.Unlock()
}

func (o *fakeOrigin) setOffline(v bool) {
	o.mu.Lock()
	o.offline = v
	o.mu.Unlock()
}

func (o *fakeOrigin) callCount(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[key]
}

func newTestController(t *testing.T, cfg Config, storage cache.Storage, origin Network) *Controller {
	t.Helper()
	if cfg.Version == "" {
		cfg.Version = "mercaflow-v2"
	}
	if cfg.Origin == "" {
		cfg.Origin = "http://app.test"
	}
	cfg.InstallRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}
	c, err := New(cfg, storage, origin)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func generationNames(t *testing.T, s cache.Storage) []string {
	t.Helper()
	names, err := s.Names(context.Background())
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	return names
}

func TestNew_InvalidConfig(t *testing.T) {
	storage := cache.NewMemoryStorage()
	origin := newFakeOrigin()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing version", cfg: Config{}},
		{name: "unknown mode", cfg: Config{Version: "v1", Mode: "panic"}},
		{name: "relative origin", cfg: Config{Version: "v1", Origin: "app.test"}},
		{name: "relative asset", cfg: Config{Version: "v1", ShellAssets: []string{"index.html"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, storage, origin); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if _, err := New(Config{Version: "v1"}, nil, origin); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(nil storage) error = %v, want ErrInvalidConfig", err)
	}
}

func TestController_InstallPrecachesShell(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	c := newTestController(t, Config{}, storage, newFakeOrigin())

	if err := c.Install(ctx); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if c.Phase() != PhaseInstalled {
		t.Errorf("Phase() = %v, want installed", c.Phase())
	}

	gen, err := storage.Open(ctx, "mercaflow-v2")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	keys, _ := gen.Keys(ctx)
	want := []string{"http://app.test/", "http://app.test/index.html", "http://app.test/manifest.json"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}

func TestController_InstallFailureLeavesNoGeneration(t *testing.T) {
	tests := []struct {
		name  string
		setup func(o *fakeOrigin)
	}{
		{name: "not found", setup: func(o *fakeOrigin) { delete(o.responses, "/manifest.json") }},
		{name: "server error", setup: func(o *fakeOrigin) {
			o.responses["/index.html"] = &Response{Status: http.StatusInternalServerError}
		}},
		{name: "offline", setup: func(o *fakeOrigin) { o.offline = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := cache.NewMemoryStorage()
			origin := newFakeOrigin()
			tt.setup(origin)
			c := newTestController(t, Config{}, storage, origin)

			err := c.Install(context.Background())
			if !errors.Is(err, ErrInstallFailed) {
				t.Fatalf("Install() error = %v, want ErrInstallFailed", err)
			}
			if names := generationNames(t, storage); len(names) != 0 {
				t.Errorf("generations after failed install = %v, want none", names)
			}
			if c.Phase() != PhaseIdle {
				t.Errorf("Phase() = %v, want idle", c.Phase())
			}
		})
	}
}

func TestController_InstallRetriesTransientFailures(t *testing.T) {
	origin := newFakeOrigin()
	origin.failures["/manifest.json"] = 2
	c := newTestController(t, Config{}, cache.NewMemoryStorage(), origin)

	if err := c.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if got := origin.callCount("GET /manifest.json"); got != 3 {
		t.Errorf("manifest fetches = %d, want 3", got)
	}
}

func TestController_InstallDoesNotRetryBadStatus(t *testing.T) {
	origin := newFakeOrigin()
	delete(origin.responses, "/manifest.json")
	c := newTestController(t, Config{}, cache.NewMemoryStorage(), origin)

	_ = c.Install(context.Background())
	if got := origin.callCount("GET /manifest.json"); got != 1 {
		t.Errorf("manifest fetches = %d, want 1", got)
	}
}

func TestController_ActivateDeletesStaleGenerations(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	for _, name := range []string{"mercaflow-v1", "mercadona-flow-v3", "workbox-precache"} {
		if _, err := storage.Open(ctx, name); err != nil {
			t.Fatalf("Open(%s) error = %v", name, err)
		}
	}
	c := newTestController(t, Config{}, storage, newFakeOrigin())
	c.Clients().Observe("tab-1", "/lists/7")

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if c.Phase() != PhaseActive {
		t.Errorf("Phase() = %v, want active", c.Phase())
	}
	if names := generationNames(t, storage); !reflect.DeepEqual(names, []string{"mercaflow-v2"}) {
		t.Errorf("generations = %v, want [mercaflow-v2]", names)
	}
	if got := c.Clients().List()[0].Version; got != "mercaflow-v2" {
		t.Errorf("client version = %q, want mercaflow-v2", got)
	}
}

func TestController_KillSwitch(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	for _, name := range []string{"mercaflow-v1", "mercaflow-v2"} {
		_, _ = storage.Open(ctx, name)
	}
	origin := newFakeOrigin()
	c := newTestController(t, Config{Version: "mercaflow-kill-v11", Mode: ModeKill}, storage, origin)
	c.Clients().Observe("tab-1", "/lists/7")

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if c.Phase() != PhaseRedundant {
		t.Errorf("Phase() = %v, want redundant", c.Phase())
	}
	if names := generationNames(t, storage); len(names) != 0 {
		t.Errorf("generations = %v, want none", names)
	}
	if got := origin.callCount("GET /"); got != 0 {
		t.Errorf("kill switch pre-cached %d shell fetches, want 0", got)
	}
	if target, ok := c.Clients().Observe("tab-1", "/"); !ok || target != "/lists/7" {
		t.Errorf("pending reload = %q, %v; want /lists/7, true", target, ok)
	}

	if err := c.Install(ctx); !errors.Is(err, ErrRedundant) {
		t.Errorf("Install() after kill = %v, want ErrRedundant", err)
	}
	if err := c.Activate(ctx); !errors.Is(err, ErrRedundant) {
		t.Errorf("Activate() after kill = %v, want ErrRedundant", err)
	}
}

func TestController_LifecycleOrder(t *testing.T) {
	c := newTestController(t, Config{}, cache.NewMemoryStorage(), newFakeOrigin())

	if err := c.Activate(context.Background()); !errors.Is(err, ErrLifecycle) {
		t.Errorf("Activate() before install = %v, want ErrLifecycle", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Install(context.Background()); !errors.Is(err, ErrLifecycle) {
		t.Errorf("Install() when active = %v, want ErrLifecycle", err)
	}
}

func TestPhase_String(t *testing.T) {
	want := []string{"idle", "installing", "installed", "activating", "active", "redundant"}
	for i, name := range want {
		if got := Phase(i).String(); got != name {
			t.Errorf("Phase(%d).String() = %q, want %q", i, got, name)
		}
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	storage := cache.NewMemoryStorage()
	_, _ = storage.Open(ctx, "a")
	_, _ = storage.Open(ctx, "b")

	n, err := Purge(ctx, storage)
	if err != nil || n != 2 {
		t.Fatalf("Purge() = %d, %v; want 2, nil", n, err)
	}
	if names := generationNames(t, storage); len(names) != 0 {
		t.Errorf("generations = %v, want none", names)
	}
}

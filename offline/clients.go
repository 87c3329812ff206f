package offline

import (
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	// ClientHeader carries the client id set by the page.
	ClientHeader = "X-Client-ID"
	// ClientCookie is the fallback client id carrier.
	ClientCookie = "mf_client"

	defaultMaxClients = 1024
)

// Client is a browsing context seen in a navigation.
type Client struct {
	ID      string
	URL     string
	Version string
	SeenAt  time.Time
	Reload  bool
}

// ClientSet tracks open clients so activation can claim them and the kill
// switch can reload them. It is safe for concurrent use.
type ClientSet struct {
	mu      sync.Mutex
	clients map[string]*Client
	version string
	max     int
	now     func() time.Time
}

// NewClientSet creates a set holding at most limit clients; the least
// recently seen client is evicted first. limit <= 0 selects 1024.
func NewClientSet(limit int) *ClientSet {
	if limit <= 0 {
		limit = defaultMaxClients
	}
	return &ClientSet{
		clients: make(map[string]*Client),
		max:     limit,
		now:     time.Now,
	}
}

// ClientID extracts the client id from the header or cookie.
func ClientID(r *http.Request) string {
	if id := r.Header.Get(ClientHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(ClientCookie); err == nil {
		return c.Value
	}
	return ""
}

// Observe records a visit of url by client id. When a reload was pending it
// is consumed and its target returned with ok set.
func (s *ClientSet) Observe(id, url string) (target string, ok bool) {
	if id == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.clients[id]
	if !exists {
		if len(s.clients) >= s.max {
			s.evictLocked()
		}
		c = &Client{ID: id, Version: s.version}
		s.clients[id] = c
	}

	if c.Reload {
		target, ok = c.URL, true
		c.Reload = false
	}
	c.URL = url
	c.SeenAt = s.now()
	return target, ok
}

// Claim stamps every client with version and makes it the version of new
// clients. It returns the number of clients claimed.
func (s *ClientSet) Claim(version string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version = version
	for _, c := range s.clients {
		c.Version = version
	}
	return len(s.clients)
}

// NavigateAll marks every client for reload of its last URL and returns the
// targets. Clients without a known URL are skipped.
func (s *ClientSet) NavigateAll() []Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version = ""
	targets := make([]Client, 0, len(s.clients))
	for _, c := range s.clients {
		c.Version = ""
		if c.URL == "" {
			continue
		}
		c.Reload = true
		targets = append(targets, *c)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })
	return targets
}

// TakeReload consumes a pending reload for client id without recording a
// visit. It returns the URL to reload with ok set.
func (s *ClientSet) TakeReload(id string) (target string, ok bool) {
	if id == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.clients[id]
	if !exists || !c.Reload {
		return "", false
	}
	c.Reload = false
	c.SeenAt = s.now()
	return c.URL, true
}

// List returns a snapshot sorted by id.
func (s *ClientSet) List() []Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of tracked clients.
func (s *ClientSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *ClientSet) evictLocked() {
	var oldest *Client
	for _, c := range s.clients {
		if oldest == nil || c.SeenAt.Before(oldest.SeenAt) {
			oldest = c
		}
	}
	if oldest != nil {
		delete(s.clients, oldest.ID)
	}
}

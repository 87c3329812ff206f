package offline

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := ClientID(r); got != "" {
		t.Errorf("ClientID() = %q, want empty", got)
	}

	r.AddCookie(&http.Cookie{Name: ClientCookie, Value: "cookie-id"})
	if got := ClientID(r); got != "cookie-id" {
		t.Errorf("ClientID() = %q, want cookie-id", got)
	}

	r.Header.Set(ClientHeader, "header-id")
	if got := ClientID(r); got != "header-id" {
		t.Errorf("ClientID() = %q, want header-id", got)
	}
}

func TestClientSet_ClaimAndNavigate(t *testing.T) {
	s := NewClientSet(0)
	s.Observe("a", "/lists/1")
	s.Observe("b", "/")
	s.Observe("", "/ignored")

	if n := s.Claim("v2"); n != 2 {
		t.Fatalf("Claim() = %d, want 2", n)
	}
	s.Observe("c", "/stores")
	for _, c := range s.List() {
		if c.Version != "v2" {
			t.Errorf("client %s version = %q, want v2", c.ID, c.Version)
		}
	}

	targets := s.NavigateAll()
	if len(targets) != 3 {
		t.Fatalf("NavigateAll() = %d targets, want 3", len(targets))
	}
	if targets[0].ID != "a" || targets[0].URL != "/lists/1" {
		t.Errorf("targets[0] = %+v, want a at /lists/1", targets[0])
	}

	target, ok := s.Observe("a", "/lists/2")
	if !ok || target != "/lists/1" {
		t.Errorf("Observe() = %q, %v; want /lists/1, true", target, ok)
	}
	if _, ok := s.Observe("a", "/lists/2"); ok {
		t.Error("reload delivered twice")
	}
}

func TestClientSet_TakeReload(t *testing.T) {
	s := NewClientSet(0)
	if _, ok := s.TakeReload("ghost"); ok {
		t.Error("TakeReload() for unknown client reported a reload")
	}

	s.Observe("a", "/lists/1")
	if _, ok := s.TakeReload("a"); ok {
		t.Error("TakeReload() before NavigateAll reported a reload")
	}

	s.NavigateAll()
	target, ok := s.TakeReload("a")
	if !ok || target != "/lists/1" {
		t.Errorf("TakeReload() = %q, %v; want /lists/1, true", target, ok)
	}
	if _, ok := s.TakeReload("a"); ok {
		t.Error("reload delivered twice")
	}
	if got := s.List()[0].URL; got != "/lists/1" {
		t.Errorf("URL = %q, want /lists/1 kept", got)
	}
}

func TestClientSet_Evicts(t *testing.T) {
	s := NewClientSet(2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	s.Observe("old", "/")
	s.Observe("mid", "/")
	s.Observe("new", "/")

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	for _, c := range s.List() {
		if c.ID == "old" {
			t.Error("least recently seen client was not evicted")
		}
	}
}

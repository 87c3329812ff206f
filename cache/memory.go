package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage is an in-memory Storage implementation.
type MemoryStorage struct {
	mu          sync.RWMutex
	generations map[string]*memoryGeneration
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		generations: make(map[string]*memoryGeneration),
	}
}

// Open returns the named generation, creating it on first use.
func (s *MemoryStorage) Open(_ context.Context, name string) (Generation, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.generations[name]; ok {
		return g, nil
	}
	g := &memoryGeneration{
		name:    name,
		entries: make(map[string]*Entry),
	}
	s.generations[name] = g
	return g, nil
}

// Has reports whether the named generation exists.
func (s *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	_, ok := s.generations[name]
	s.mu.RUnlock()
	return ok, nil
}

// Names lists generation names in sorted order.
func (s *MemoryStorage) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.generations))
	for name := range s.generations {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names, nil
}

// Delete removes a generation and all of its entries.
func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	g, ok := s.generations[name]
	delete(s.generations, name)
	s.mu.Unlock()

	if ok {
		g.mu.Lock()
		g.deleted = true
		g.entries = nil
		g.mu.Unlock()
	}
	return ok, nil
}

type memoryGeneration struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Entry
	deleted bool
}

func (g *memoryGeneration) Name() string {
	return g.name
}

func (g *memoryGeneration) Match(_ context.Context, key string) (*Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := g.entries[key]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

func (g *memoryGeneration) Put(ctx context.Context, entry *Entry) error {
	return g.PutAll(ctx, []*Entry{entry})
}

func (g *memoryGeneration) PutAll(_ context.Context, entries []*Entry) error {
	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.deleted {
		return ErrGenerationDeleted
	}
	for _, entry := range entries {
		g.entries[entry.URL] = entry.Clone()
	}
	return nil
}

func (g *memoryGeneration) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.entries, key)
	g.mu.Unlock()
	return nil
}

func (g *memoryGeneration) Keys(_ context.Context) ([]string, error) {
	g.mu.RLock()
	keys := make([]string, 0, len(g.entries))
	for key := range g.entries {
		keys = append(keys, key)
	}
	g.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// Ensure MemoryStorage implements Storage
var _ Storage = (*MemoryStorage)(nil)

package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Mapping is one learned key to section association.
type Mapping struct {
	Key       string `json:"key"`
	SectionID string `json:"section"`
}

// MappingStore persists the learned table.
//
// Contract:
// - Load returns mappings in insertion order; a store with nothing saved
// returns an empty slice and no error.
// - Save replaces the stored table. ErrQuotaExceeded signals saturation.
type MappingStore interface {
	Load(ctx context.Context) ([]Mapping, error)
	Save(ctx context.Context, mappings []Mapping) error
}

// MemoryStore keeps the table in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	mappings []Mapping
	saves    int
}

// NewMemoryStore creates a store pre-loaded with mappings.
func NewMemoryStore(mappings ...Mapping) *MemoryStore {
	return &MemoryStore{mappings: append([]Mapping(nil), mappings...)}
}

// Load returns a copy of the stored table.
func (s *MemoryStore) Load(context.Context) ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mapping(nil), s.mappings...), nil
}

// Save replaces the stored table.
func (s *MemoryStore) Save(_ context.Context, mappings []Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = append([]Mapping(nil), mappings...)
	s.saves++
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// DefaultQuota is the browser localStorage budget.
const DefaultQuota = 5 * 1024 * 1024

const fileVersion = 1

type mappingFile struct {
	Version  int       `json:"version"`
	Mappings []Mapping `json:"mappings"`
}

// FileStore persists the table as a JSON document.
type FileStore struct {
	path  string
	quota int

	mu sync.Mutex
}

// NewFileStore creates a store at path. Documents larger than quota bytes
// are refused with ErrQuotaExceeded; quota <= 0 selects DefaultQuota.
func NewFileStore(path string, quota int) *FileStore {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &FileStore{path: path, quota: quota}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing file is an empty table.
func (s *FileStore) Load(context.Context) ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}

	var doc mappingFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode mappings %s: %w", s.path, err)
	}
	if doc.Version != fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	return doc.Mappings, nil
}

// Save writes the document atomically through a temp file and rename.
func (s *FileStore) Save(_ context.Context, mappings []Mapping) error {
	if mappings == nil {
		mappings = []Mapping{}
	}
	data, err := json.Marshal(mappingFile{Version: fileVersion, Mappings: mappings})
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}
	if len(data) > s.quota {
		return fmt.Errorf("%w: document is %d bytes, quota is %d", ErrQuotaExceeded, len(data), s.quota)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mappings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".mappings-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write mappings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close mappings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace mappings: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 2048

// Sentinel errors for cache operations.
var (
	ErrNilEntry           = errors.New("cache: entry is nil")
	ErrInvalidKey         = errors.New("cache: key is invalid")
	ErrKeyTooLong         = errors.New("cache: key exceeds max length")
	ErrInvalidName        = errors.New("cache: generation name is invalid")
	ErrGenerationNotFound = errors.New("cache: generation not found")
	ErrGenerationDeleted  = errors.New("cache: generation was deleted")
)

// Entry is a stored response.
type Entry struct {
	// URL is the cache key: the absolute request URL without fragment.
	URL string

	// Status is the HTTP status code of the stored response.
	Status int

	// Header holds the response headers as received from the network.
	Header http.Header

	// Body is the full response body.
	Body []byte

	// StoredAt is when the entry was written.
	StoredAt time.Time
}

// Clone returns a deep copy so callers may not mutate stored state.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Header = e.Header.Clone()
	if e.Body != nil {
		c.Body = append([]byte(nil), e.Body...)
	}
	return &c
}

// Generation is one versioned snapshot of the offline cache.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Match never errors; it returns (nil, false) on miss.
// - Writes into a generation deleted from its Storage fail with
// ErrGenerationDeleted.
type Generation interface {
	// Name returns the generation name (the app version string).
	Name() string

	// Match returns a copy of the entry stored under key.
	Match(ctx context.Context, key string) (*Entry, bool)

	// Put stores an entry, overwriting any previous entry with the same URL.
	Put(ctx context.Context, entry *Entry) error

	// PutAll stores every entry or none of them.
	PutAll(ctx context.Context, entries []*Entry) error

	// Delete removes an entry. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Keys lists stored URLs in sorted order.
	Keys(ctx context.Context) ([]string, error)
}

// Storage holds every generation.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Open creates the generation when it does not exist.
// - Delete reports whether a generation was removed.
type Storage interface {
	Open(ctx context.Context, name string) (Generation, error)
	Has(ctx context.Context, name string) (bool, error)
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// ValidateName checks a generation name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "\n\r") {
		return ErrInvalidName
	}
	return nil
}

func validateEntry(entry *Entry) error {
	if entry == nil {
		return ErrNilEntry
	}
	return ValidateKey(entry.URL)
}

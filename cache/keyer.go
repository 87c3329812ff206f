package cache

import (
	"fmt"
	"net/url"

	"github.com/cespare/xxhash/v2"
)

// Key returns the cache key for a request URL: the absolute URL with its
// fragment removed. Query strings are significant.
func Key(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// Digest returns the XXHash of a response body.
func Digest(body []byte) uint64 {
	return xxhash.Sum64(body)
}

// WeakETag returns a weak entity tag derived from the body digest.
// Format: W/"<16 hex chars>"
func WeakETag(body []byte) string {
	return fmt.Sprintf("W/\"%016x\"", Digest(body))
}

// ETag returns the entry's origin ETag, or a weak tag computed from its body
// when the origin sent none.
func (e *Entry) ETag() string {
	if tag := e.Header.Get("ETag"); tag != "" {
		return tag
	}
	return WeakETag(e.Body)
}

package offline

import (
	"context"
	"net/http"

	"github.com/jonwraymond/mercaflow/cache"
)

// Source records where a response came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
	SourceShell   Source = "shell"
)

// Response is a fully buffered HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Source Source
}

// Network fetches a request from the origin.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a non-nil error means the origin could not be reached. Any
// HTTP status, including 5xx, is a successful fetch.
type Network interface {
	Do(ctx context.Context, r *http.Request) (*Response, error)
}

// NetworkFunc adapts a function to Network.
type NetworkFunc func(ctx context.Context, r *http.Request) (*Response, error)

// Do calls f.
func (f NetworkFunc) Do(ctx context.Context, r *http.Request) (*Response, error) {
	return f(ctx, r)
}

func responseFromEntry(e *cache.Entry, src Source) *Response {
	return &Response{
		Status: e.Status,
		Header: e.Header.Clone(),
		Body:   e.Body,
		Source: src,
	}
}

func entryFromResponse(key string, resp *Response) *cache.Entry {
	return &cache.Entry{
		URL:    key,
		Status: resp.Status,
		Header: resp.Header.Clone(),
		Body:   append([]byte(nil), resp.Body...),
	}
}

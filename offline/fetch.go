package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/mercaflow/cache"
	"github.com/jonwraymond/mercaflow/observe"
)

// Fetch outcomes recorded in metrics.
const (
	outcomePassthrough = "passthrough"
	outcomeNetwork     = "network"
	outcomeCache       = "cache"
	outcomeShell       = "shell"
	outcomeMiss        = "miss"
	outcomeError       = "error"
)

// SourceHeader tells the page where a response came from.
const SourceHeader = "X-Offline-Source"

const offlineBody = `<!doctype html>
<html lang="es"><meta charset="utf-8"><title>Sin conexión</title>
<p>No hay conexión y esta página no está guardada.</p></html>
`

// Handle answers r network first. Requests that are not GET, are excluded,
// or arrive while the controller is not active go straight to the network
// and their errors are returned as is. Otherwise a network failure falls
// back to the cached entry, then for navigations to the cached shell, then
// to ErrNoResponse. A body over the size limit is not a network failure and
// is returned as is.
func (c *Controller) Handle(ctx context.Context, r *http.Request) (resp *Response, err error) {
	start := time.Now()
	phase, gen := c.state()

	route := c.policy.Classify(r)
	outcome := outcomeError
	ctx, span := c.obs.Tracer().StartSpan(ctx, observe.SpanFetch,
		attribute.String("http.method", r.Method),
		attribute.String("offline.route", route.String()),
	)
	defer func() {
		span.SetAttributes(attribute.String("offline.outcome", outcome))
		c.obs.Tracer().EndSpan(span, err)
		c.obs.Metrics().RecordFetch(ctx, route.String(), outcome, time.Since(start))
	}()

	if r.Method != http.MethodGet || phase != PhaseActive || route == RouteExcluded {
		resp, err = c.network.Do(ctx, r)
		if err == nil {
			outcome = outcomePassthrough
		}
		return resp, err
	}

	key := c.keyFor(r.URL)
	resp, err = c.network.Do(ctx, r)
	if err == nil {
		outcome = outcomeNetwork
		if c.policy.Cacheable(r, resp) {
			c.store(ctx, gen, key, resp)
		}
		return resp, nil
	}
	if errors.Is(err, ErrRequestTooLarge) || errors.Is(err, ErrResponseTooLarge) {
		return nil, err
	}
	netErr := err

	if entry, ok := gen.Match(ctx, key); ok {
		outcome = outcomeCache
		c.log.Debug(ctx, "served from cache", observe.F("url", key), observe.F("error", netErr))
		return responseFromEntry(entry, SourceCache), nil
	}

	if IsNavigation(r) {
		for _, shellKey := range c.shellKeys {
			if entry, ok := gen.Match(ctx, shellKey); ok {
				outcome = outcomeShell
				return responseFromEntry(entry, SourceShell), nil
			}
		}
	}

	outcome = outcomeMiss
	return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, r.URL.Path, netErr)
}

// store writes a copy of resp in the background. Failures are logged and
// counted only.
func (c *Controller) store(ctx context.Context, gen cache.Generation, key string, resp *Response) {
	entry := entryFromResponse(key, resp)
	ctx = context.WithoutCancel(ctx)

	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		entry.StoredAt = time.Now()
		err := gen.Put(ctx, entry)
		c.obs.Metrics().RecordCacheWrite(ctx, err)
		if err != nil {
			c.log.Warn(ctx, "cache write failed", observe.F("url", key), observe.F("error", err))
		}
	}()
}

// ServeHTTP makes the controller the HTTP front of the app. ErrNoResponse
// renders 504 with an offline page, an oversized request body 413, and
// other network failures 502.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if id := ClientID(r); id != "" {
		if IsNavigation(r) {
			// The navigation reaches the network itself, so it is the reload.
			c.clients.Observe(id, r.URL.RequestURI())
		} else if target, ok := c.clients.TakeReload(id); ok {
			w.Header().Set("Refresh", "0; url="+target)
		}
	}

	resp, err := c.Handle(r.Context(), r)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, ErrNoResponse):
			status = http.StatusGatewayTimeout
		case errors.Is(err, ErrRequestTooLarge):
			status = http.StatusRequestEntityTooLarge
		}
		if !errors.Is(err, context.Canceled) {
			c.log.Warn(r.Context(), "fetch failed", observe.F("path", r.URL.Path), observe.F("status", status), observe.F("error", err))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(offlineBody))
		return
	}

	h := w.Header()
	for k, v := range resp.Header {
		h[k] = append([]string(nil), v...)
	}

	if resp.Source != SourceNetwork {
		h.Set(SourceHeader, string(resp.Source))
		etag := (&cache.Entry{Header: resp.Header, Body: resp.Body}).ETag()
		h.Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	// A HEAD or bodiless pass-through keeps the length the origin declared.
	keepLength := resp.Source == SourceNetwork && len(resp.Body) == 0 && h.Get("Content-Length") != ""
	if !keepLength && r.Method != http.MethodHead {
		h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

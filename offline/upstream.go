package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jonwraymond/mercaflow/resilience"
)

// UpstreamConfig configures the origin client.
type UpstreamConfig struct {
	// BaseURL is the origin, e.g. http://127.0.0.1:5173.
	BaseURL string

	// Timeout bounds a single fetch. Default: 10 seconds
	Timeout time.Duration

	// MaxBodyBytes bounds request and response bodies held in memory.
	// Default: 32 MiB
	MaxBodyBytes int64

	// Breaker configures the circuit that fails fast while the origin is
	// down.
	Breaker resilience.CircuitBreakerConfig
}

// Upstream is the Network that proxies to the app's origin.
type Upstream struct {
	base    *url.URL
	client  *resty.Client
	guard   *resilience.Executor
	maxBody int64
}

const defaultMaxBodyBytes = 32 << 20

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// proxyAuthHeaders are credentials for this hop. They are dropped from
// requests but kept on responses, where they reach the browser and keep the
// response out of the cache.
var proxyAuthHeaders = []string{
	"Proxy-Authenticate",
	"Proxy-Authorization",
}

// NewUpstream creates an origin client.
func NewUpstream(cfg UpstreamConfig) (*Upstream, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: upstream url: %w", ErrInvalidConfig, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("%w: upstream url %q must be absolute http(s)", ErrInvalidConfig, cfg.BaseURL)
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	client := resty.New().SetResponseBodyLimit(int(maxBody))
	// Redirects go back to the browser untouched.
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))

	return &Upstream{
		base:   base,
		client: client,
		guard: resilience.NewExecutor(
			resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(cfg.Breaker)),
			resilience.WithTimeout(cfg.Timeout),
		),
		maxBody: maxBody,
	}, nil
}

// Breaker returns the circuit guarding the origin.
func (u *Upstream) Breaker() *resilience.CircuitBreaker {
	return u.guard.CircuitBreaker()
}

// Do forwards r to the origin. Transport errors, timeouts and an open
// circuit are returned as errors; every HTTP status is a response. Bodies
// over the limit fail with ErrRequestTooLarge or ErrResponseTooLarge, which
// do not count against the circuit.
func (u *Upstream) Do(ctx context.Context, r *http.Request) (*Response, error) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		b, err := io.ReadAll(io.LimitReader(r.Body, u.maxBody+1))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if int64(len(b)) > u.maxBody {
			return nil, fmt.Errorf("%w: %s over %d bytes", ErrRequestTooLarge, r.URL.Path, u.maxBody)
		}
		body = b
	}

	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	stripHopHeaders(header)
	for _, name := range proxyAuthHeaders {
		header.Del(name)
	}
	forwardedFor(header, r)

	target := u.target(r.URL)
	var out *Response
	err := u.guard.Execute(ctx, func(ctx context.Context) error {
		req := u.client.R().
			SetContext(ctx).
			SetHeaderMultiValues(header)
		if body != nil {
			req.SetBody(body)
		}
		res, err := req.Execute(r.Method, target)
		if errors.Is(err, resty.ErrResponseBodyTooLarge) {
			return resilience.Permanent(fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, u.maxBody))
		}
		if err != nil {
			return err
		}
		h := res.Header().Clone()
		stripHopHeaders(h)
		out = &Response{
			Status: res.StatusCode(),
			Header: h,
			Body:   res.Body(),
			Source: SourceNetwork,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", r.Method, r.URL.Path, err)
	}
	return out, nil
}

func (u *Upstream) target(reqURL *url.URL) string {
	t := *u.base
	t.Path = strings.TrimSuffix(u.base.Path, "/") + reqURL.Path
	if reqURL.RawPath != "" {
		t.RawPath = strings.TrimSuffix(u.base.EscapedPath(), "/") + reqURL.RawPath
	}
	t.RawQuery = reqURL.RawQuery
	t.Fragment = ""
	return t.String()
}

func stripHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

func forwardedFor(h http.Header, r *http.Request) {
	if r.Host != "" {
		h.Set("X-Forwarded-Host", r.Host)
	}
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	h.Set("X-Forwarded-Proto", proto)

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return
	}
	if prior := h.Get("X-Forwarded-For"); prior != "" {
		host = prior + ", " + host
	}
	h.Set("X-Forwarded-For", host)
}

package offline

import (
	"net/http"
	"path"
	"strings"
)

// Route is the cache classification of a request.
type Route int

const (
	// RouteUncacheable is a GET the controller intercepts but never stores.
	RouteUncacheable Route = iota
	// RouteExcluded bypasses the controller entirely.
	RouteExcluded
	// RouteAsset has a cacheable extension or is the root path.
	RouteAsset
	// RouteNavigation is a full-page load without a cacheable extension.
	RouteNavigation
)

// String returns the route name used in logs and metrics.
func (r Route) String() string {
	switch r {
	case RouteUncacheable:
		return "uncacheable"
	case RouteExcluded:
		return "excluded"
	case RouteAsset:
		return "asset"
	case RouteNavigation:
		return "navigation"
	default:
		return "unknown"
	}
}

// Default policy lists.
var (
	DefaultExcludedPrefixes = []string{
		"/api/",
		"/auth/",
		"/admin/",
		"/_next/",
		"/@vite/",
		"/rest/v1/",
		"/graphql",
		"/.well-known/",
	}

	DefaultExcludedSubstrings = []string{
		"supabase",
		"__webpack_hmr",
	}

	DefaultExtensions = []string{
		"html", "htm", "css", "js", "mjs",
		"png", "jpg", "jpeg", "gif", "svg", "webp", "ico", "avif",
		"woff", "woff2", "ttf", "otf", "eot",
		"mp3", "mp4", "webm", "ogg", "wav",
		"json", "webmanifest", "xml", "txt",
	}

	// DefaultMaxEntryBytes keeps large media out of the cache.
	DefaultMaxEntryBytes = 8 << 20

	DefaultSensitiveHeaders = []string{
		"Set-Cookie",
		"Authorization",
		"WWW-Authenticate",
		"Proxy-Authenticate",
		"Proxy-Authorization",
	}
)

// Policy decides which requests are intercepted and which responses are
// stored. The zero value excludes nothing and caches nothing but the root
// and navigations; use DefaultPolicy for the standard lists.
type Policy struct {
	// ExcludedPrefixes are matched against the start of the URL path.
	ExcludedPrefixes []string

	// ExcludedSubstrings are matched anywhere in the host, path or query.
	ExcludedSubstrings []string

	// Extensions are cacheable file extensions without the leading dot.
	Extensions []string

	// SensitiveHeaders block caching when present on a response.
	SensitiveHeaders []string

	// MaxEntryBytes is the largest body stored; 0 disables the limit.
	MaxEntryBytes int

	extensions map[string]struct{}
}

// DefaultPolicy returns a Policy populated with the default lists.
func DefaultPolicy() Policy {
	p := Policy{
		ExcludedPrefixes:   append([]string(nil), DefaultExcludedPrefixes...),
		ExcludedSubstrings: append([]string(nil), DefaultExcludedSubstrings...),
		Extensions:         append([]string(nil), DefaultExtensions...),
		SensitiveHeaders:   append([]string(nil), DefaultSensitiveHeaders...),
		MaxEntryBytes:      DefaultMaxEntryBytes,
	}
	p.compile()
	return p
}

// compile builds the extension lookup. A Policy whose Extensions were
// edited after construction must be recompiled before concurrent use.
func (p *Policy) compile() {
	p.extensions = make(map[string]struct{}, len(p.Extensions))
	for _, ext := range p.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			p.extensions[ext] = struct{}{}
		}
	}
}

// Excluded reports whether the request must bypass the controller.
func (p *Policy) Excluded(r *http.Request) bool {
	urlPath := r.URL.Path
	for _, prefix := range p.ExcludedPrefixes {
		if prefix != "" && strings.HasPrefix(urlPath, prefix) {
			return true
		}
	}

	if len(p.ExcludedSubstrings) == 0 {
		return false
	}
	target := strings.ToLower(r.Host + r.URL.Host + r.URL.RequestURI())
	for _, sub := range p.ExcludedSubstrings {
		if sub != "" && strings.Contains(target, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Classify returns the route of a request. Method is not considered.
func (p *Policy) Classify(r *http.Request) Route {
	switch {
	case p.Excluded(r):
		return RouteExcluded
	case r.URL.Path == "/" || r.URL.Path == "" || p.hasExtension(r.URL.Path):
		return RouteAsset
	case IsNavigation(r):
		return RouteNavigation
	default:
		return RouteUncacheable
	}
}

// Cacheable reports whether a network response to r may be stored.
func (p *Policy) Cacheable(r *http.Request, resp *Response) bool {
	if r.Method != http.MethodGet || resp == nil || resp.Status != http.StatusOK {
		return false
	}
	if p.MaxEntryBytes > 0 && len(resp.Body) > p.MaxEntryBytes {
		return false
	}
	for _, name := range p.SensitiveHeaders {
		if _, ok := resp.Header[http.CanonicalHeaderKey(name)]; ok {
			return false
		}
	}
	switch p.Classify(r) {
	case RouteAsset, RouteNavigation:
		return true
	default:
		return false
	}
}

func (p *Policy) hasExtension(urlPath string) bool {
	if p.extensions == nil {
		p.compile()
	}
	ext := path.Ext(urlPath)
	if len(ext) < 2 {
		return false
	}
	_, ok := p.extensions[strings.ToLower(ext[1:])]
	return ok
}

// IsNavigation reports whether the browser declared r a full-page load.
func IsNavigation(r *http.Request) bool {
	return r.Header.Get("Sec-Fetch-Mode") == "navigate" ||
		r.Header.Get("Sec-Fetch-Dest") == "document"
}

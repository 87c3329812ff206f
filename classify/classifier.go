package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/mercaflow/observe"
)

// Source records which table decided a classification.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceLearned  Source = "learned"
	SourceKeyword  Source = "keyword"
	SourceFallback Source = "fallback"
)

// Result is a classification with its provenance.
type Result struct {
	SectionID string `json:"section"`
	Source    Source `json:"source"`
	// Key is the matched learned key or keyword, empty otherwise.
	Key string `json:"key,omitempty"`
}

// Item is one classified line of a bulk import.
type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SectionID string `json:"section"`
	Source    Source `json:"source"`
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCatalog replaces the section catalog.
func WithCatalog(c *Catalog) Option {
	return func(cl *Classifier) {
		if c != nil {
			cl.catalog = c
		}
	}
}

// WithKeywords replaces the built-in keyword table. Order is significant.
func WithKeywords(k []Keyword) Option {
	return func(cl *Classifier) {
		if k != nil {
			cl.keywords = append([]Keyword(nil), k...)
		}
	}
}

// WithLimits overrides table and import bounds. Zero fields keep defaults.
func WithLimits(l Limits) Option {
	return func(cl *Classifier) {
		cl.limits = l.withDefaults()
	}
}

// WithObserver sets logging, tracing and metrics. Default: observe.Nop()
func WithObserver(obs observe.Observer) Option {
	return func(cl *Classifier) {
		if obs != nil {
			cl.obs = obs
		}
	}
}

// Classifier assigns sections to item names. It is safe for concurrent use;
// Learn is serialized and covers its save.
type Classifier struct {
	catalog  *Catalog
	keywords []Keyword
	limits   Limits
	store    MappingStore
	obs      observe.Observer
	log      observe.Logger

	mu       sync.RWMutex
	learned  []Mapping
	index    map[string]int
	degraded bool
	quotaHit bool
}

// New creates a classifier and loads the learned table from store. Stored
// keys are normalized again; mappings to sections missing from the catalog
// are dropped and the table is cut to Limits.MaxMappings.
func New(ctx context.Context, store MappingStore, opts ...Option) (*Classifier, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Classifier{
		catalog: DefaultCatalog(),
		limits:  DefaultLimits(),
		store:   store,
		obs:     observe.Nop(),
		index:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.keywords == nil {
		c.keywords = DefaultKeywords()
	}

	keywords, err := validateKeywords(c.keywords, c.catalog)
	if err != nil {
		return nil, err
	}
	c.keywords = keywords
	c.log = c.obs.Logger().With(observe.F("component", "classify"))

	stored, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}
	dropped := 0
	for _, m := range stored {
		key := NormalizeKey(m.Key, c.limits.MaxKeyLength)
		if key == "" || !c.catalog.Has(m.SectionID) {
			dropped++
			continue
		}
		if i, ok := c.index[key]; ok {
			c.learned[i].SectionID = m.SectionID
			continue
		}
		if len(c.learned) == c.limits.MaxMappings {
			dropped++
			continue
		}
		c.index[key] = len(c.learned)
		c.learned = append(c.learned, Mapping{Key: key, SectionID: m.SectionID})
	}
	if dropped > 0 {
		c.log.Warn(ctx, "dropped invalid learned mappings", observe.F("dropped", dropped))
	}
	return c, nil
}

// Catalog returns the section catalog.
func (c *Classifier) Catalog() *Catalog { return c.catalog }

// Limits returns the configured bounds.
func (c *Classifier) Limits() Limits { return c.limits }

// Classify returns the section for name. A non-empty explicit id is returned
// unchanged without any lookup.
func (c *Classifier) Classify(name, explicit string) string {
	return c.ClassifyDetail(name, explicit).SectionID
}

// ClassifyDetail is Classify with the deciding table.
func (c *Classifier) ClassifyDetail(name, explicit string) Result {
	if explicit != "" {
		return Result{SectionID: explicit, Source: SourceExplicit}
	}

	lower := strings.ToLower(name)

	c.mu.RLock()
	for _, m := range c.learned {
		if strings.Contains(lower, m.Key) {
			c.mu.RUnlock()
			return Result{SectionID: m.SectionID, Source: SourceLearned, Key: m.Key}
		}
	}
	c.mu.RUnlock()

	for _, k := range c.keywords {
		if strings.Contains(lower, k.Key) {
			return Result{SectionID: k.SectionID, Source: SourceKeyword, Key: k.Key}
		}
	}
	return Result{SectionID: FallbackSection, Source: SourceFallback}
}

// Learn teaches name -> section. It reports false without error when the
// key is new and the table is full; existing keys always update. Saving
// happens before returning; a failed save is logged and the in-memory table
// stays authoritative.
func (c *Classifier) Learn(ctx context.Context, name, section string) (accepted bool, err error) {
	ctx, span := c.obs.Tracer().StartSpan(ctx, observe.SpanLearn, attribute.String("classify.section", section))
	defer func() {
		span.SetAttributes(attribute.Bool("classify.accepted", accepted))
		c.obs.Tracer().EndSpan(span, err)
	}()

	key := NormalizeKey(name, c.limits.MaxKeyLength)
	if key == "" {
		return false, ErrEmptyName
	}
	if !c.catalog.Has(section) {
		return false, fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[key]; ok {
		c.learned[i].SectionID = section
	} else {
		if len(c.learned) >= c.limits.MaxMappings {
			c.log.Debug(ctx, "learn rejected: table full", observe.F("key", key), observe.F("max", c.limits.MaxMappings))
			return false, nil
		}
		c.index[key] = len(c.learned)
		c.learned = append(c.learned, Mapping{Key: key, SectionID: section})
	}

	c.saveLocked(ctx)
	return true, nil
}

func (c *Classifier) saveLocked(ctx context.Context) {
	snapshot := append([]Mapping(nil), c.learned...)
	err := c.store.Save(ctx, snapshot)
	switch {
	case err == nil:
		if c.degraded {
			c.log.Info(ctx, "learned mappings persisted again")
		}
		c.degraded = false
	case errors.Is(err, ErrQuotaExceeded):
		c.degraded = true
		if !c.quotaHit {
			c.quotaHit = true
			c.log.Warn(ctx, "persistence quota exceeded, keeping learned mappings in memory", observe.F("error", err))
		}
	default:
		c.log.Error(ctx, "save learned mappings", observe.F("error", err))
	}
}

// Import classifies pasted text, one item per line, after bounding it with
// SanitizeImport. It never fails.
func (c *Classifier) Import(ctx context.Context, text string) []Item {
	ctx, span := c.obs.Tracer().StartSpan(ctx, observe.SpanImport, attribute.Int("classify.input_bytes", len(text)))
	lines := SanitizeImport(text, c.limits)
	span.SetAttributes(attribute.Int("classify.items", len(lines)))
	defer c.obs.Tracer().EndSpan(span, nil)

	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		r := c.ClassifyDetail(line, "")
		c.obs.Metrics().RecordClassification(ctx, string(r.Source))
		items = append(items, Item{
			ID:        ulid.Make().String(),
			Name:      line,
			SectionID: r.SectionID,
			Source:    r.Source,
		})
	}
	return items
}

// Mappings returns the learned table in insertion order.
func (c *Classifier) Mappings() []Mapping {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Mapping(nil), c.learned...)
}

// Degraded reports whether the last save failed for lack of quota.
func (c *Classifier) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

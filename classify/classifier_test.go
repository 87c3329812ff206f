package classify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func newTestClassifier(t *testing.T, store MappingStore, opts ...Option) *Classifier {
	t.Helper()
	c, err := New(context.Background(), store, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClassify_Precedence(t *testing.T) {
	c := newTestClassifier(t, nil)

	tests := []struct {
		name     string
		item     string
		explicit string
		want     Result
	}{
		{name: "explicit wins", item: "Leche desnatada", explicit: "sec_pets", want: Result{SectionID: "sec_pets", Source: SourceExplicit}},
		{name: "explicit unknown kept", item: "Leche", explicit: "sec_custom", want: Result{SectionID: "sec_custom", Source: SourceExplicit}},
		{name: "keyword", item: "Leche desnatada", want: Result{SectionID: "sec_dairy", Source: SourceKeyword, Key: "leche"}},
		{name: "declaration order", item: "Pan rallado", want: Result{SectionID: "sec_pantry", Source: SourceKeyword, Key: "pan rallado"}},
		{name: "substring", item: "2 barras de pan", want: Result{SectionID: "sec_bakery", Source: SourceKeyword, Key: "barra"}},
		{name: "case folding", item: "JAMÓN SERRANO", want: Result{SectionID: "sec_deli", Source: SourceKeyword, Key: "jamón"}},
		{name: "fallback", item: "Pilas AA", want: Result{SectionID: FallbackSection, Source: SourceFallback}},
		{name: "empty", item: "", want: Result{SectionID: FallbackSection, Source: SourceFallback}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ClassifyDetail(tt.item, tt.explicit); got != tt.want {
				t.Errorf("ClassifyDetail(%q, %q) = %+v, want %+v", tt.item, tt.explicit, got, tt.want)
			}
		})
	}
}

func TestClassify_LearnedOutranksKeywords(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t, NewMemoryStore())

	if c.Classify("Leche desnatada", "") != "sec_dairy" {
		t.Fatal("expected built-in dairy mapping")
	}
	ok, err := c.Learn(ctx, "leche", "sec_breakfast")
	if err != nil || !ok {
		t.Fatalf("Learn() = %v, %v", ok, err)
	}

	got := c.ClassifyDetail("Leche desnatada", "")
	if got.SectionID != "sec_breakfast" || got.Source != SourceLearned {
		t.Errorf("ClassifyDetail() = %+v, want learned sec_breakfast", got)
	}
}

func TestClassify_LearnedInsertionOrder(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t, nil)
	_, _ = c.Learn(ctx, "yogur", "sec_breakfast")
	_, _ = c.Learn(ctx, "griego", "sec_deli")

	if got := c.Classify("yogur griego", ""); got != "sec_breakfast" {
		t.Errorf("Classify() = %q, want first learned key to win", got)
	}

	// Updating keeps the key's original position.
	_, _ = c.Learn(ctx, "yogur", "sec_pets")
	if got := c.Classify("yogur griego", ""); got != "sec_pets" {
		t.Errorf("Classify() after update = %q, want sec_pets", got)
	}
	want := []Mapping{{Key: "yogur", SectionID: "sec_pets"}, {Key: "griego", SectionID: "sec_deli"}}
	if got := c.Mappings(); !reflect.DeepEqual(got, want) {
		t.Errorf("Mappings() = %v, want %v", got, want)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := newTestClassifier(t, nil)
	for _, name := range []string{"Plátanos de Canarias", "detergente", "algo raro"} {
		if a, b := c.ClassifyDetail(name, ""), c.ClassifyDetail(name, ""); a != b {
			t.Errorf("ClassifyDetail(%q) = %+v then %+v", name, a, b)
		}
	}
}

func TestLearn_Normalizes(t *testing.T) {
	c := newTestClassifier(t, nil)
	long := strings.Repeat("ñ", 150)

	if _, err := c.Learn(context.Background(), "  Queso MANCHEGO  ", "sec_deli"); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}
	if _, err := c.Learn(context.Background(), long, "sec_deli"); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}

	m := c.Mappings()
	if m[0].Key != "queso manchego" {
		t.Errorf("key = %q, want %q", m[0].Key, "queso manchego")
	}
	if n := len([]rune(m[1].Key)); n != 100 {
		t.Errorf("long key = %d runes, want 100", n)
	}
}

func TestLearn_Rejects(t *testing.T) {
	c := newTestClassifier(t, nil)

	if _, err := c.Learn(context.Background(), "   ", "sec_deli"); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Learn(blank) error = %v, want ErrEmptyName", err)
	}
	if _, err := c.Learn(context.Background(), "queso", "sec_nope"); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("Learn(unknown) error = %v, want ErrUnknownSection", err)
	}
	if len(c.Mappings()) != 0 {
		t.Errorf("Mappings() = %v, want empty", c.Mappings())
	}
}

func TestLearn_Saturation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := newTestClassifier(t, store)

	for i := 0; i < 500; i++ {
		ok, err := c.Learn(ctx, fmt.Sprintf("item %03d", i), "sec_pantry")
		if err != nil || !ok {
			t.Fatalf("Learn(%d) = %v, %v", i, ok, err)
		}
	}
	before := c.Mappings()
	saves := store.Saves()

	ok, err := c.Learn(ctx, "brand new", "sec_pantry")
	if err != nil || ok {
		t.Errorf("Learn(new at cap) = %v, %v; want false, nil", ok, err)
	}
	if !reflect.DeepEqual(c.Mappings(), before) {
		t.Error("table changed after rejected learn")
	}
	if store.Saves() != saves {
		t.Error("rejected learn saved the table")
	}

	ok, err = c.Learn(ctx, "item 042", "sec_frozen")
	if err != nil || !ok {
		t.Fatalf("Learn(existing at cap) = %v, %v; want true", ok, err)
	}
	after := c.Mappings()
	if len(after) != 500 || after[42].SectionID != "sec_frozen" {
		t.Errorf("after update: len %d, [42] = %+v", len(after), after[42])
	}
	for i := range after {
		if i != 42 && after[i] != before[i] {
			t.Fatalf("mapping %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestLearn_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mappings.json")

	c := newTestClassifier(t, NewFileStore(path, 0))
	if _, err := c.Learn(ctx, "Leche", "sec_breakfast"); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}

	reloaded := newTestClassifier(t, NewFileStore(path, 0))
	if got := reloaded.Classify("leche entera", ""); got != "sec_breakfast" {
		t.Errorf("Classify() after reload = %q, want sec_breakfast", got)
	}
}

func TestLearn_QuotaDegradesPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mappings.json")
	store := NewFileStore(path, 80)
	c := newTestClassifier(t, store)

	if _, err := c.Learn(ctx, "a", "sec_pets"); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}
	if c.Degraded() {
		t.Fatal("Degraded() = true before quota is hit")
	}

	ok, err := c.Learn(ctx, "a much longer learned key", "sec_pets")
	if err != nil || !ok {
		t.Fatalf("Learn() over quota = %v, %v; want accepted", ok, err)
	}
	if !c.Degraded() {
		t.Error("Degraded() = false after quota exceeded")
	}
	if got := c.Classify("a much longer learned key!", ""); got != "sec_pets" {
		t.Errorf("Classify() = %q, want in-memory mapping", got)
	}

	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(persisted) != 1 {
		t.Errorf("persisted %d mappings, want the pre-quota 1", len(persisted))
	}
}

func TestNew_SanitizesStoredMappings(t *testing.T) {
	store := NewMemoryStore(
		Mapping{Key: " LECHE ", SectionID: "sec_breakfast"},
		Mapping{Key: "queso", SectionID: "sec_gone"},
		Mapping{Key: "", SectionID: "sec_deli"},
		Mapping{Key: "leche", SectionID: "sec_dairy"},
	)
	c := newTestClassifier(t, store, WithLimits(Limits{MaxMappings: 1}))

	want := []Mapping{{Key: "leche", SectionID: "sec_dairy"}}
	if got := c.Mappings(); !reflect.DeepEqual(got, want) {
		t.Errorf("Mappings() = %v, want %v", got, want)
	}
}

type failingStore struct{ err error }

func (s failingStore) Load(context.Context) ([]Mapping, error) { return nil, s.err }

func (s failingStore) Save(context.Context, []Mapping) error { return s.err }

func TestNew_LoadError(t *testing.T) {
	boom := errors.New("disk gone")
	if _, err := New(context.Background(), failingStore{err: boom}); !errors.Is(err, boom) {
		t.Errorf("New() error = %v, want %v", err, boom)
	}
}

func TestNew_InvalidKeywords(t *testing.T) {
	_, err := New(context.Background(), nil, WithKeywords([]Keyword{{Key: "x", SectionID: "sec_missing"}}))
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Errorf("New() error = %v, want ErrInvalidCatalog", err)
	}
}

func TestImport(t *testing.T) {
	c := newTestClassifier(t, nil)
	_, _ = c.Learn(context.Background(), "tomate", "sec_pantry")

	items := c.Import(context.Background(), "Leche\n\n   \n  tomates pera \r\nPilas\n")

	want := []struct {
		name, section string
		source        Source
	}{
		{"Leche", "sec_dairy", SourceKeyword},
		{"tomates pera", "sec_pantry", SourceLearned},
		{"Pilas", FallbackSection, SourceFallback},
	}
	if len(items) != len(want) {
		t.Fatalf("Import() = %d items, want %d: %+v", len(items), len(want), items)
	}
	seen := map[string]bool{}
	for i, w := range want {
		if items[i].Name != w.name || items[i].SectionID != w.section || items[i].Source != w.source {
			t.Errorf("items[%d] = %+v, want %s/%s/%s", i, items[i], w.name, w.section, w.source)
		}
		if len(items[i].ID) != 26 || seen[items[i].ID] {
			t.Errorf("items[%d].ID = %q, want unique ULID", i, items[i].ID)
		}
		seen[items[i].ID] = true
	}
}

func TestImport_Bounds(t *testing.T) {
	c := newTestClassifier(t, nil)

	var b strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&b, "%s %d\n", strings.Repeat("x", 300), i)
		b.WriteString("   \n")
	}
	items := c.Import(context.Background(), b.String())

	if len(items) > 500 {
		t.Errorf("Import() = %d items, want at most 500", len(items))
	}
	for _, it := range items {
		if n := len([]rune(it.Name)); n > 200 || n == 0 {
			t.Fatalf("item name = %d runes", n)
		}
	}
}

func TestClassifier_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t, NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = c.Learn(ctx, fmt.Sprintf("producto %d", i), "sec_pantry")
		}(i)
		go func() {
			defer wg.Done()
			_ = c.Classify("producto 3", "")
			_ = c.Import(ctx, "leche\npan")
		}()
	}
	wg.Wait()

	if got := len(c.Mappings()); got != 8 {
		t.Errorf("Mappings() = %d, want 8", got)
	}
}

package classify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "mappings.json")
	s := NewFileStore(path, 0)

	got, err := s.Load(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("Load() on missing file = %v, %v", got, err)
	}

	want := []Mapping{{Key: "leche", SectionID: "sec_breakfast"}, {Key: "atún", SectionID: "sec_pantry"}}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
}

func TestFileStore_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	s := NewFileStore(path, 0)
	_ = s.Save(context.Background(), []Mapping{{Key: "pan", SectionID: "sec_bakery"}})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := `{"version":1,"mappings":[{"key":"pan","section":"sec_bakery"}]}`
	if string(data) != want {
		t.Errorf("file = %s, want %s", data, want)
	}
}

func TestFileStore_Quota(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mappings.json")
	s := NewFileStore(path, 40)

	err := s.Save(ctx, []Mapping{{Key: "leche desnatada sin lactosa", SectionID: "sec_dairy"}})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Save() error = %v, want ErrQuotaExceeded", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file written despite quota: %v", err)
	}
}

func TestFileStore_BadDocuments(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "version", content: `{"version":2,"mappings":[]}`, wantErr: ErrUnsupportedVersion},
		{name: "garbage", content: `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mappings.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := NewFileStore(path, 0).Load(context.Background())
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryStore_Copies(t *testing.T) {
	ctx := context.Background()
	in := []Mapping{{Key: "pan", SectionID: "sec_bakery"}}
	s := NewMemoryStore()
	_ = s.Save(ctx, in)
	in[0].SectionID = "sec_other"

	got, _ := s.Load(ctx)
	if got[0].SectionID != "sec_bakery" {
		t.Errorf("stored mapping aliased caller slice: %+v", got)
	}
	if s.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1", s.Saves())
	}
}

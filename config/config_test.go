package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:8080" || cfg.Server.Upstream != "http://127.0.0.1:5173" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Offline.Mode != "normal" || cfg.Offline.Storage != "memory" || cfg.Offline.BreakerFailures != 3 {
		t.Errorf("Offline = %+v", cfg.Offline)
	}
	if want := []string{"/", "/index.html", "/manifest.json"}; !reflect.DeepEqual(cfg.Offline.ShellAssets, want) {
		t.Errorf("ShellAssets = %v, want %v", cfg.Offline.ShellAssets, want)
	}
	if cfg.Offline.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v, want 10s", cfg.Offline.FetchTimeout)
	}
	if cfg.Offline.MaxBodyBytes != 32<<20 || cfg.Offline.MaxEntryBytes != 8<<20 {
		t.Errorf("body limits = %d/%d, want 32 MiB/8 MiB", cfg.Offline.MaxBodyBytes, cfg.Offline.MaxEntryBytes)
	}
	if cfg.Classifier.QuotaBytes != 5*1024*1024 || cfg.Classifier.MaxMappings != 500 {
		t.Errorf("Classifier = %+v", cfg.Classifier)
	}
	if cfg.Observe.ServiceName != "mercaflow" || cfg.Observe.LogLevel != "info" {
		t.Errorf("Observe = %+v", cfg.Observe)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `server:
  addr: 0.0.0.0:9000
  upstream: http://app:3000
offline:
  version: mercaflow-v7
  mode: kill
  storage: sqlite
  sqlite_path: /var/lib/mercaflow/cache.db
  fetch_timeout: 2s
  excluded_prefixes:
    - /private/
observe:
  log_level: debug
`)
	t.Setenv("MERCAFLOW_OFFLINE_VERSION", "mercaflow-v8")
	t.Setenv("MERCAFLOW_CLASSIFIER_MAPPINGS_FILE", "/tmp/mappings.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:9000" || cfg.Server.Upstream != "http://app:3000" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Offline.Version != "mercaflow-v8" {
		t.Errorf("Version = %q, want env override", cfg.Offline.Version)
	}
	if cfg.Offline.Mode != "kill" || cfg.Offline.FetchTimeout != 2*time.Second {
		t.Errorf("Offline = %+v", cfg.Offline)
	}
	if !reflect.DeepEqual(cfg.Offline.ExcludedPrefixes, []string{"/private/"}) {
		t.Errorf("ExcludedPrefixes = %v", cfg.Offline.ExcludedPrefixes)
	}
	if cfg.Classifier.MappingsFile != "/tmp/mappings.json" {
		t.Errorf("MappingsFile = %q, want env override", cfg.Classifier.MappingsFile)
	}
	if cfg.Observe.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.Observe.LogLevel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantContains []string
	}{
		{
			name:         "bad mode and storage",
			content:      "offline:\n  mode: panic\n  storage: redis\n",
			wantContains: []string{"mode must be one of [normal kill]", "storage must be one of [memory sqlite]"},
		},
		{
			name:         "sqlite without path",
			content:      "offline:\n  storage: sqlite\n",
			wantContains: []string{"sqlite_path is a required field"},
		},
		{
			name:         "relative shell asset",
			content:      "offline:\n  shell_assets: [index.html]\n",
			wantContains: []string{"shell_assets[0]"},
		},
		{
			name:         "entry limit above body limit",
			content:      "offline:\n  max_body_bytes: 1024\n  max_entry_bytes: 2048\n",
			wantContains: []string{"max_entry_bytes"},
		},
		{
			name:         "upstream not a url",
			content:      "server:\n  upstream: localhost\n",
			wantContains: []string{"upstream"},
		},
		{
			name:         "missing catalog file",
			content:      "classifier:\n  catalog_file: /does/not/exist.yaml\n",
			wantContains: []string{"catalog_file must be an existing and readable file"},
		},
		{
			name:         "sample pct range",
			content:      "observe:\n  sample_pct: 2\n",
			wantContains: []string{"sample_pct"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load() error = %v, want ErrInvalid", err)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not contain %q", err, want)
				}
			}
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [\n"))
	if err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want read error", err)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MF_DATA", dir)
	path := writeConfig(t, `offline:
  storage: sqlite
  sqlite_path: ${MF_DATA}/cache.db
classifier:
  mappings_file: $MF_DATA/price$$list.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := dir + "/cache.db"; cfg.Offline.SQLitePath != want {
		t.Errorf("SQLitePath = %q, want %q", cfg.Offline.SQLitePath, want)
	}
	if want := dir + "/price$list.json"; cfg.Classifier.MappingsFile != want {
		t.Errorf("MappingsFile = %q, want %q", cfg.Classifier.MappingsFile, want)
	}
}

func TestLoad_UnsetEnvRef(t *testing.T) {
	path := writeConfig(t, "classifier:\n  mappings_file: ${MF_SURELY_UNSET_VAR}/m.json\n")
	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "MF_SURELY_UNSET_VAR") {
		t.Errorf("Load() error = %v, want unset variable", err)
	}
}

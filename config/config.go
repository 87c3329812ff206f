// Package config loads mercaflow settings from a YAML file, MERCAFLOW_*
// environment variables and defaults, then validates them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// MERCAFLOW_SERVER_UPSTREAM.
const EnvPrefix = "MERCAFLOW"

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Offline    OfflineConfig    `mapstructure:"offline"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Observe    ObserveConfig    `mapstructure:"observe"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr" validate:"required,hostname_port"`
	Upstream          string        `mapstructure:"upstream" validate:"required,http_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type OfflineConfig struct {
	Version            string        `mapstructure:"version" validate:"required,printascii"`
	Mode               string        `mapstructure:"mode" validate:"oneof=normal kill"`
	Origin             string        `mapstructure:"origin" validate:"omitempty,http_url"`
	ShellAssets        []string      `mapstructure:"shell_assets" validate:"min=1,dive,startswith=/"`
	Storage            string        `mapstructure:"storage" validate:"oneof=memory sqlite"`
	SQLitePath         string        `mapstructure:"sqlite_path" validate:"required_if=Storage sqlite"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	BreakerFailures    int           `mapstructure:"breaker_failures" validate:"gte=1"`
	BreakerReset       time.Duration `mapstructure:"breaker_reset" validate:"gt=0"`
	InstallAttempts    int           `mapstructure:"install_attempts" validate:"gte=1,lte=10"`
	ExcludedPrefixes   []string      `mapstructure:"excluded_prefixes" validate:"dive,startswith=/"`
	ExcludedSubstrings []string      `mapstructure:"excluded_substrings" validate:"dive,required"`
	Extensions         []string      `mapstructure:"extensions" validate:"dive,required,excludes=."`
	SensitiveHeaders   []string      `mapstructure:"sensitive_headers" validate:"dive,required"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
	MaxEntryBytes      int64         `mapstructure:"max_entry_bytes" validate:"gte=0,ltefield=MaxBodyBytes"`
}

type ClassifierConfig struct {
	MappingsFile string `mapstructure:"mappings_file"`
	QuotaBytes   int    `mapstructure:"quota_bytes" validate:"gte=0"`
	CatalogFile  string `mapstructure:"catalog_file" validate:"omitempty,file"`
	MaxMappings  int    `mapstructure:"max_mappings" validate:"gte=0"`
}

type ObserveConfig struct {
	ServiceName     string  `mapstructure:"service_name" validate:"required"`
	LogLevel        string  `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	TracingExporter string  `mapstructure:"tracing_exporter" validate:"oneof=none stdout otlp"`
	TracingEndpoint string  `mapstructure:"tracing_endpoint"`
	SamplePct       float64 `mapstructure:"sample_pct" validate:"gte=0,lte=1"`
	MetricsExporter string  `mapstructure:"metrics_exporter" validate:"oneof=none stdout otlp prometheus"`
	MetricsEndpoint string  `mapstructure:"metrics_endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.upstream", "http://127.0.0.1:5173")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("offline.version", "mercaflow-v1")
	v.SetDefault("offline.mode", "normal")
	v.SetDefault("offline.origin", "")
	v.SetDefault("offline.shell_assets", []string{"/", "/index.html", "/manifest.json"})
	v.SetDefault("offline.storage", "memory")
	v.SetDefault("offline.sqlite_path", "")
	v.SetDefault("offline.fetch_timeout", 10*time.Second)
	v.SetDefault("offline.breaker_failures", 3)
	v.SetDefault("offline.breaker_reset", 15*time.Second)
	v.SetDefault("offline.install_attempts", 3)
	v.SetDefault("offline.excluded_prefixes", []string{})
	v.SetDefault("offline.excluded_substrings", []string{})
	v.SetDefault("offline.extensions", []string{})
	v.SetDefault("offline.sensitive_headers", []string{})
	v.SetDefault("offline.max_body_bytes", 32<<20)
	v.SetDefault("offline.max_entry_bytes", 8<<20)

	v.SetDefault("classifier.mappings_file", "")
	v.SetDefault("classifier.quota_bytes", 5*1024*1024)
	v.SetDefault("classifier.catalog_file", "")
	v.SetDefault("classifier.max_mappings", 500)

	v.SetDefault("observe.service_name", "mercaflow")
	v.SetDefault("observe.log_level", "info")
	v.SetDefault("observe.tracing_exporter", "none")
	v.SetDefault("observe.tracing_endpoint", "")
	v.SetDefault("observe.sample_pct", 1.0)
	v.SetDefault("observe.metrics_exporter", "none")
	v.SetDefault("observe.metrics_endpoint", "")
}

// Load reads configFile, or config.yaml from . and $HOME/.config/mercaflow
// when configFile is empty. A missing default file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/mercaflow")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and reports all failures at once.
func (c *Config) Validate() error {
	validate, trans, err := newValidator()
	if err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fe.Translate(trans))
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv expands ${VAR} and $VAR in s. A ${VAR} that is not set is an
// error; $$ is a literal dollar.
func expandEnv(s string) (string, error) {
	const dollar = "\x00MERCAFLOW_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	var missing []string
	for _, m := range envRef.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("unset environment variables: %s", strings.Join(missing, ", "))
	}
	return strings.ReplaceAll(os.ExpandEnv(s), dollar, "$"), nil
}

// expand resolves environment references in the path and URL settings.
func (c *Config) expand() error {
	fields := []struct {
		key string
		val *string
	}{
		{"server.upstream", &c.Server.Upstream},
		{"offline.origin", &c.Offline.Origin},
		{"offline.sqlite_path", &c.Offline.SQLitePath},
		{"classifier.mappings_file", &c.Classifier.MappingsFile},
		{"classifier.catalog_file", &c.Classifier.CatalogFile},
		{"observe.tracing_endpoint", &c.Observe.TracingEndpoint},
		{"observe.metrics_endpoint", &c.Observe.MetricsEndpoint},
	}
	for _, f := range fields {
		v, err := expandEnv(*f.val)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, f.key, err)
		}
		*f.val = v
	}
	return nil
}

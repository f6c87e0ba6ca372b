package telemetry

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"openfilter/internal/logging"
)

// allowlistFile is the shape of OF_SAFE_METRICS_FILE's YAML document: the
// mandatory safe_metrics list plus the optional opentelemetry exporter block
// (see otelsetup.go's ResolveExporterConfig).
type allowlistFile struct {
	SafeMetrics   []string       `yaml:"safe_metrics"`
	OpenTelemetry otelFileConfig `yaml:"opentelemetry"`
}

// ReadAllowlist resolves the set of metric names permitted to leave the
// process: OF_SAFE_METRICS_FILE's safe_metrics list takes priority, then
// OF_SAFE_METRICS's comma-separated names, and an empty set (lock-down
// mode, nothing leaves) if neither is set.
func ReadAllowlist() map[string]struct{} {
	if path := os.Getenv("OF_SAFE_METRICS_FILE"); path != "" {
		if names, err := readAllowlistFile(path); err == nil {
			return names
		} else {
			logging.Root().WithError(err).WithField("path", path).Warn("telemetry: failed to read allowlist file")
		}
	}

	if env := os.Getenv("OF_SAFE_METRICS"); env != "" {
		out := map[string]struct{}{}
		for _, name := range strings.Split(env, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				out[name] = struct{}{}
			}
		}
		return out
	}

	return map[string]struct{}{}
}

// readAllowlistFile parses the safe_metrics list out of an OF_SAFE_METRICS_FILE YAML document.
func readAllowlistFile(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f allowlistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(f.SafeMetrics))
	for _, name := range f.SafeMetrics {
		out[name] = struct{}{}
	}
	return out, nil
}

// Allowed reports whether name may be forwarded to an external exporter.
func Allowed(allowlist map[string]struct{}, name string) bool {
	_, ok := allowlist[name]
	return ok
}

package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Normalize accepts a *FilterConfig, a FilterConfig value, or a duck-typed
// map[string]any keyed exactly like the YAML field names, and returns a
// single defaulted, validated FilterConfig regardless of which shape was
// given.
func Normalize(v any) (*FilterConfig, error) {
	switch cfg := v.(type) {
	case *FilterConfig:
		c := *cfg
		c.setDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return &c, nil
	case FilterConfig:
		cfg.setDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	case map[string]any:
		return normalizeMap(cfg)
	default:
		return nil, fmt.Errorf("config: unsupported config value of type %T", v)
	}
}

// normalizeMap round-trips a duck-typed config map through YAML so its
// snake_case keys land on the same struct fields a YAML file would,
// without hand-writing a field-by-field map walk.
func normalizeMap(m map[string]any) (*FilterConfig, error) {
	raw, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("config: re-encode config map: %w", err)
	}

	var cfg FilterConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode config map: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

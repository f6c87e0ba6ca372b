package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LogMode selects the mq_log output discipline for a filter's logger.
type LogMode string

const (
	// LogPretty is the default human-readable text formatter.
	LogPretty LogMode = "pretty"
	// LogJSON selects structured JSON log lines.
	LogJSON LogMode = "json"
	// LogOff silences this filter's logger entirely.
	LogOff LogMode = "off"
)

// FilterConfig is the complete per-filter configuration surface. All fields
// must have explicit defaults or be required.
type FilterConfig struct {
	ID                string         `yaml:"id"`
	Sources           []string       `yaml:"sources,omitempty"`
	SourcesBalance    bool           `yaml:"sources_balance,omitempty"`
	SourcesTimeoutMS  int            `yaml:"sources_timeout,omitempty"`
	SourcesLowLatency bool           `yaml:"sources_low_latency,omitempty"`
	Outputs           []string       `yaml:"outputs,omitempty"`
	OutputsBalance    bool           `yaml:"outputs_balance,omitempty"`
	OutputsTimeoutMS  int            `yaml:"outputs_timeout,omitempty"`
	OutputsRequired   []string       `yaml:"outputs_required,omitempty"`
	OutputsMetrics    string         `yaml:"outputs_metrics,omitempty"`
	OutputsJPG        bool           `yaml:"outputs_jpg,omitempty"`
	OutputsFilter     *bool          `yaml:"outputs_filter,omitempty"`
	ExitAfter         string         `yaml:"exit_after,omitempty"`
	Environment       map[string]string `yaml:"environment,omitempty"`
	LogPath           string         `yaml:"log_path,omitempty"`
	MetricsIntervalS  int            `yaml:"metrics_interval,omitempty"`
	ExtraMetrics      map[string]any `yaml:"extra_metrics,omitempty"`
	MQLog             LogMode        `yaml:"mq_log,omitempty"`
	MQMsgIDSync       *bool          `yaml:"mq_msgid_sync,omitempty"`
}

// Load reads a filter configuration from a YAML file, rejecting unknown
// fields, applying defaults, and validating the result.
func Load(path string) (*FilterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg FilterConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", path, err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return &cfg, nil
}

// setDefaults applies explicit default values to unset fields.
func (c *FilterConfig) setDefaults() {
	if c.SourcesTimeoutMS == 0 {
		c.SourcesTimeoutMS = 1000
	}
	if c.OutputsTimeoutMS == 0 {
		c.OutputsTimeoutMS = 1000
	}
	if c.MetricsIntervalS == 0 {
		c.MetricsIntervalS = 10
	}
	if c.MQLog == "" {
		c.MQLog = LogPretty
	}
	if c.OutputsFilter == nil {
		t := true
		c.OutputsFilter = &t
	}
	if c.MQMsgIDSync == nil {
		t := true
		c.MQMsgIDSync = &t
	}
}

// BoolOutputsFilter returns the resolved outputs_filter flag (default true).
func (c *FilterConfig) BoolOutputsFilter() bool {
	return c.OutputsFilter == nil || *c.OutputsFilter
}

// BoolMsgIDSync returns the resolved mq_msgid_sync flag (default true).
func (c *FilterConfig) BoolMsgIDSync() bool {
	return c.MQMsgIDSync == nil || *c.MQMsgIDSync
}

// SourcesTimeout returns sources_timeout as a time.Duration.
func (c *FilterConfig) SourcesTimeout() time.Duration {
	return time.Duration(c.SourcesTimeoutMS) * time.Millisecond
}

// OutputsTimeout returns outputs_timeout as a time.Duration.
func (c *FilterConfig) OutputsTimeout() time.Duration {
	return time.Duration(c.OutputsTimeoutMS) * time.Millisecond
}

// MetricsInterval returns metrics_interval as a time.Duration.
func (c *FilterConfig) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalS) * time.Second
}

// ExitAfterTime parses exit_after (an RFC 3339 timestamp) into a time.Time,
// returning the zero value when unset.
func (c *FilterConfig) ExitAfterTime() (time.Time, error) {
	if c.ExitAfter == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.ExitAfter)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: exit_after %q: %w", c.ExitAfter, err)
	}
	return t, nil
}

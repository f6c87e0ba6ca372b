package config

import (
	"errors"
	"fmt"
)

// ErrMissingID is returned when a filter config has no id.
var ErrMissingID = errors.New("config: id is required")

// Validate checks the invariants a filter config must satisfy: an id is
// mandatory, and every string log mode must be one of the three recognized
// values.
func (c *FilterConfig) Validate() error {
	if c.ID == "" {
		return ErrMissingID
	}
	switch c.MQLog {
	case LogPretty, LogJSON, LogOff:
	default:
		return fmt.Errorf("config: invalid mq_log %q", c.MQLog)
	}
	if c.SourcesTimeoutMS < 0 {
		return fmt.Errorf("config: sources_timeout must be non-negative, got %d", c.SourcesTimeoutMS)
	}
	if c.OutputsTimeoutMS < 0 {
		return fmt.Errorf("config: outputs_timeout must be non-negative, got %d", c.OutputsTimeoutMS)
	}
	if c.MetricsIntervalS < 0 {
		return fmt.Errorf("config: metrics_interval must be non-negative, got %d", c.MetricsIntervalS)
	}
	return nil
}

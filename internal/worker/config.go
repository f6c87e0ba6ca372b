package worker

import "time"

// Config is the tick-loop-relevant slice of a filter's normalized configuration.
type Config struct {
	// ID identifies this worker in logs and as a subscriber.
	ID string
	// SourcesTimeout bounds how long the router waits for a releasable tick.
	SourcesTimeout time.Duration
	// ExitAfter, if non-zero, is the wall-clock instant the worker enters DRAINING.
	ExitAfter time.Time
	// MetricsInterval is how often the _metrics frame is sampled and emitted.
	MetricsInterval time.Duration
	// OutputsMetrics, if true, routes _metrics to the dedicated sidecar
	// publisher set via SetMetricsPublisher instead of merging it into the
	// regular tick output.
	OutputsMetrics bool
	// OutputsFilter, if true (the default), emits the _filter frame every tick.
	OutputsFilter bool
	// ExtraMetrics is merged verbatim into every _metrics frame.
	ExtraMetrics map[string]any
	// FailureThreshold is the count of consecutive process() failures on the
	// same frame ID at which the worker transitions to DRAINING.
	FailureThreshold int
}

// DefaultFailureThreshold bounds how many consecutive tick failures on the
// same frame ID a worker tolerates before giving up and draining.
const DefaultFailureThreshold = 5

package worker

import (
	"time"

	"openfilter/internal/fctx"
	"openfilter/internal/frame"
)

// MetricsTopic is the reserved topic carrying periodic runtime telemetry.
const MetricsTopic = "_metrics"

// metricsState accumulates the counters and EMA needed to build one
// _metrics frame every metrics_interval seconds.
type metricsState struct {
	sampler       *resourceSampler
	fpsEMA        float64
	frameCount    uint64
	megapxCount   float64
	uptimeTicks   uint64
	startedAt     time.Time
	lastTickAt    time.Time
	extraMetrics  map[string]any
	emaAlpha      float64
}

// addFilterContext merges the process-local VERSION/VERSION_SHA/
// RESOURCE_BUNDLE_VERSION/models.toml context fctx.Load cached at startup
// into a _metrics frame's data, per the runtime-context fields it describes.
// Fields stay absent when fctx.Load was never called or the source file was
// missing, rather than reporting empty strings.
func addFilterContext(data frame.Data) {
	if v := fctx.Version(); v != "" {
		data["version"] = v
	}
	if v := fctx.VersionSHA(); v != "" {
		data["version_sha"] = v
	}
	if v := fctx.ResourceBundleVersion(); v != "" {
		data["resource_bundle_version"] = v
	}
	if table := fctx.Models(); table != nil {
		models := make(map[string]any, len(table.Models))
		for name, entry := range table.Models {
			models[name] = entry.Version
		}
		data["models"] = models
	}
}

// newMetricsState creates the accumulator for one worker instance.
func newMetricsState(extraMetrics map[string]any) *metricsState {
	now := time.Now()
	return &metricsState{
		sampler:      newResourceSampler(),
		startedAt:    now,
		lastTickAt:   now,
		extraMetrics: extraMetrics,
		emaAlpha:     0.2,
	}
}

// recordTick folds one tick's outcome into the running counters. megapixels
// is the sum of width*height/1e6 across every image-bearing frame this tick.
func (m *metricsState) recordTick(megapixels float64) {
	now := time.Now()
	interval := now.Sub(m.lastTickAt).Seconds()
	if interval > 0 {
		instFPS := 1 / interval
		m.fpsEMA = m.emaAlpha*instFPS + (1-m.emaAlpha)*m.fpsEMA
	}
	m.lastTickAt = now
	m.frameCount++
	m.megapxCount += megapixels
	m.uptimeTicks++
}

// build renders the current counters into a _metrics frame, merging in any
// configured extra_metrics fields and the given in/out tick latencies.
func (m *metricsState) build(inLatency, outLatency time.Duration) *frame.Frame {
	cpuPercent, rss := m.sampler.sample()
	now := float64(time.Now().UnixNano()) / 1e9
	data := frame.Data{
		"ts":           now,
		"fps":          m.fpsEMA,
		"cpu":          cpuPercent,
		"mem":          float64(rss),
		"lat_in":       inLatency.Seconds(),
		"lat_out":      outLatency.Seconds(),
		"uptime_count": float64(m.uptimeTicks),
		"frame_count":  float64(m.frameCount),
		"megapx_count": m.megapxCount,
	}
	for k, v := range m.extraMetrics {
		data[k] = v
	}
	addFilterContext(data)
	return frame.New(nil, frame.Meta{frame.MetaTimestampKey: now}, data)
}

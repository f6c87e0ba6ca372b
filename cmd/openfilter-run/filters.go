package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"openfilter/internal/frame"
	"openfilter/internal/telemetry"
	"openfilter/internal/worker"
)

// filterFactories maps a filter name (selected by OPENFILTER_FILTER_NAME) to
// a constructor, standing in for the external filter-class registry a real
// deployment's config-file loader would consult.
var filterFactories = map[string]func() worker.Filter{
	"passthrough": func() worker.Filter { return &passthroughFilter{} },
	"counter":     func() worker.Filter { return &counterFilter{} },
}

// passthroughFilter republishes every input frame unchanged, demonstrating
// the minimal producer/transform shape the worker loop drives.
type passthroughFilter struct{}

func (*passthroughFilter) Setup(ctx context.Context, cfg any) error { return nil }

func (*passthroughFilter) Process(ctx context.Context, frames frame.Set) worker.Result {
	if len(frames) == 0 {
		// Sources-less: act as a producer emitting one counter tick.
		return worker.Frames(frame.Set{
			"main": frame.New(nil, frame.Meta{frame.MetaTimestampKey: float64(time.Now().UnixNano()) / 1e9}, frame.Data{"tick": time.Now().UnixNano()}),
		})
	}
	out := make(frame.Set, len(frames))
	for topic, f := range frames {
		out[topic] = f.Clone()
	}
	return worker.Frames(out)
}

func (*passthroughFilter) Shutdown(ctx context.Context) error { return nil }

// counterFilter demonstrates component E (internal/telemetry) wired end to
// end: it declares a counter MetricSpec and records one observation per
// tick through a real Registry, the way examples/observability-demo's
// CustomProcessor calls self._telemetry.record(frame.data) from process().
type counterFilter struct {
	registry *telemetry.Registry
	n        int
}

func (c *counterFilter) Setup(ctx context.Context, cfg any) error {
	specs := []telemetry.MetricSpec{
		{
			Name:       "frames_processed_total",
			Instrument: telemetry.InstrumentCounter,
			ValueFn:    func(data map[string]any) (float64, bool) { return 1, true },
			Target:     telemetry.TargetOther,
		},
		{
			Name:       "detection_confidence",
			Instrument: telemetry.InstrumentHistogram,
			ValueFn: func(data map[string]any) (float64, bool) {
				v, ok := data["confidence"].(float64)
				return v, ok
			},
			Target: telemetry.TargetBoth,
		},
		{
			Name:       "detection_confidence_raw",
			Instrument: telemetry.InstrumentGauge,
			ValueFn: func(data map[string]any) (float64, bool) {
				v, ok := data["confidence"].(float64)
				return v, ok
			},
			ExportMode: telemetry.ExportRaw,
			Target:     telemetry.TargetOtel,
		},
	}
	c.registry = telemetry.NewRegistry("counter", specs, defaultPrometheusRegisterer(), resolvedMeter())
	return nil
}

func (c *counterFilter) Process(ctx context.Context, frames frame.Set) worker.Result {
	c.n++
	data := frame.Data{"count": float64(c.n), "confidence": rand.Float64()}
	c.registry.Record(data)
	for name, val := range c.registry.RawMetrics() {
		data[name] = val
	}
	return worker.Frames(frame.Set{
		"main": frame.New(nil, frame.Meta{frame.MetaTimestampKey: float64(time.Now().UnixNano()) / 1e9}, data),
	})
}

func (c *counterFilter) Shutdown(ctx context.Context) error { return nil }

// lookupFilter resolves name to a fresh Filter instance, or an error naming
// every registered filter if name is unknown.
func lookupFilter(name string) (worker.Filter, error) {
	factory, ok := filterFactories[name]
	if !ok {
		return nil, fmt.Errorf("openfilter-run: unknown filter %q (registered: %v)", name, registeredFilterNames())
	}
	return factory(), nil
}

func registeredFilterNames() []string {
	names := make([]string, 0, len(filterFactories))
	for name := range filterFactories {
		names = append(names, name)
	}
	return names
}

package telemetry

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"

	"openfilter/internal/logging"
)

// instrumentPair holds the prometheus ("other") and otel instrument created
// for one spec, mirroring the original's spec._otel_inst = [ol, otel] tuple.
type instrumentPair struct {
	spec MetricSpec

	promCounter   prometheus.Counter
	promHistogram prometheus.Histogram
	promGauge     prometheus.Gauge

	otelCounter   otelmetric.Float64Counter
	otelHistogram otelmetric.Float64Histogram
	otelGauge     *otelGaugeState
}

// Registry owns the instruments backing a list of MetricSpecs and records
// one tick's frame data into every spec's value_fn/instrument pair.
type Registry struct {
	mu        sync.Mutex
	pairs     []*instrumentPair
	raw       map[string]float64
	allowlist map[string]struct{}
	promReg   prometheus.Registerer
	otelMeter otelmetric.Meter
}

// NewRegistry builds instruments for every spec, skipping (and logging) any
// spec whose instrument creation fails rather than aborting construction.
func NewRegistry(filterID string, specs []MetricSpec, promReg prometheus.Registerer, otelMeter otelmetric.Meter) *Registry {
	r := &Registry{
		raw:       make(map[string]float64),
		allowlist: ReadAllowlist(),
		promReg:   promReg,
		otelMeter: otelMeter,
	}
	log := logging.ForFilter(filterID)
	for _, spec := range specs {
		spec = spec.withDefaults()
		pair, err := r.createInstruments(spec)
		if err != nil {
			log.WithError(err).WithField("metric", spec.Name).Error("telemetry: failed to create instruments")
			continue
		}
		r.pairs = append(r.pairs, pair)
	}
	return r
}

// Record extracts and records every spec's metric value from one tick's data.
func (r *Registry) Record(data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pairs {
		val, ok := p.spec.ValueFn(data)
		if !ok {
			continue
		}
		if p.spec.ExportMode == ExportRaw || p.spec.ExportMode == ExportBoth {
			r.raw[p.spec.Name] = val
		}
		r.recordOne(p, val)
	}
}

// RawMetrics returns the most recent unaggregated value recorded for every
// spec declared with ExportMode raw or both, restricted to names permitted
// by the safe-metrics allowlist — the raw-forwarding counterpart to the
// aggregated counter/histogram/gauge instruments, intended for a caller to
// ship alongside or instead of the aggregated export.
func (r *Registry) RawMetrics() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.raw))
	for name, val := range r.raw {
		if r.Allowed(name) {
			out[name] = val
		}
	}
	return out
}

// recordOne applies val to whichever instruments this pair owns.
func (r *Registry) recordOne(p *instrumentPair, val float64) {
	switch p.spec.Instrument {
	case InstrumentCounter:
		if p.promCounter != nil {
			p.promCounter.Add(val)
		}
		if p.otelCounter != nil {
			p.otelCounter.Add(context.Background(), val)
		}
	case InstrumentHistogram:
		if p.promHistogram != nil {
			p.promHistogram.Observe(val)
		}
		if p.otelHistogram != nil {
			p.otelHistogram.Record(context.Background(), val)
		}
	case InstrumentGauge:
		if p.promGauge != nil {
			p.promGauge.Set(val)
		}
		if p.otelGauge != nil {
			p.otelGauge.set(val)
		}
	}
}

// Allowed reports whether name is permitted to leave the process under this
// registry's resolved allowlist.
func (r *Registry) Allowed(name string) bool {
	return Allowed(r.allowlist, name)
}

package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// otelGaugeState backs an otel observable gauge with the last value Record saw.
type otelGaugeState struct {
	mu  sync.Mutex
	val float64
}

func (g *otelGaugeState) set(v float64) {
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *otelGaugeState) get() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.val
}

// createInstruments builds the prometheus and/or otel instrument(s) a spec's
// target selects, matching the original's target in ["otel","other","both"] branches.
//
// A spec in pure ExportRaw mode gets no aggregated instrument at all: its
// values are only exposed through RawMetrics, never fed into a running
// counter/histogram/gauge. The otel target is additionally gated on the
// safe-metrics allowlist, since it is the external-exporter path the
// allowlist exists to lock down by default; the prometheus ("other") target
// is a local scrape endpoint, not something this process forwards anywhere,
// so it is unaffected by the allowlist.
func (r *Registry) createInstruments(spec MetricSpec) (*instrumentPair, error) {
	pair := &instrumentPair{spec: spec}
	if spec.ExportMode == ExportRaw {
		return pair, nil
	}

	if spec.Target == TargetOther || spec.Target == TargetBoth {
		if err := r.createPromInstrument(spec, pair); err != nil {
			return nil, fmt.Errorf("telemetry: prometheus instrument for %q: %w", spec.Name, err)
		}
	}
	if (spec.Target == TargetOtel || spec.Target == TargetBoth) && r.Allowed(spec.Name) {
		if err := r.createOtelInstrument(spec, pair); err != nil {
			return nil, fmt.Errorf("telemetry: otel instrument for %q: %w", spec.Name, err)
		}
	}
	return pair, nil
}

// createPromInstrument registers one prometheus instrument for spec into r.promReg.
func (r *Registry) createPromInstrument(spec MetricSpec, pair *instrumentPair) error {
	if r.promReg == nil {
		return nil
	}
	switch spec.Instrument {
	case InstrumentCounter:
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: spec.Name, Help: spec.Name})
		if err := r.promReg.Register(c); err != nil {
			return err
		}
		pair.promCounter = c
	case InstrumentHistogram:
		h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: spec.Name, Help: spec.Name, Buckets: resolveBoundaries(spec)})
		if err := r.promReg.Register(h); err != nil {
			return err
		}
		pair.promHistogram = h
	case InstrumentGauge:
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: spec.Name, Help: spec.Name})
		if err := r.promReg.Register(g); err != nil {
			return err
		}
		pair.promGauge = g
	default:
		return fmt.Errorf("unknown instrument %q", spec.Instrument)
	}
	return nil
}

// createOtelInstrument creates one otel instrument for spec against r.otelMeter.
func (r *Registry) createOtelInstrument(spec MetricSpec, pair *instrumentPair) error {
	if r.otelMeter == nil {
		return nil
	}
	switch spec.Instrument {
	case InstrumentCounter:
		c, err := r.otelMeter.Float64Counter(spec.Name)
		if err != nil {
			return err
		}
		pair.otelCounter = c
	case InstrumentHistogram:
		h, err := r.otelMeter.Float64Histogram(spec.Name,
			otelmetric.WithExplicitBucketBoundaries(resolveBoundaries(spec)...))
		if err != nil {
			return err
		}
		pair.otelHistogram = h
	case InstrumentGauge:
		state := &otelGaugeState{}
		g, err := r.otelMeter.Float64ObservableGauge(spec.Name,
			otelmetric.WithFloat64Callback(func(_ context.Context, o otelmetric.Float64Observer) error {
				o.Observe(state.get())
				return nil
			}))
		if err != nil {
			return err
		}
		_ = g
		pair.otelGauge = state
	default:
		return fmt.Errorf("unknown instrument %q", spec.Instrument)
	}
	return nil
}

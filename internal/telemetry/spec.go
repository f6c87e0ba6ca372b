package telemetry

// Instrument selects which OpenTelemetry/Prometheus instrument kind backs a MetricSpec.
type Instrument string

const (
	// InstrumentCounter is a monotonically increasing accumulator.
	InstrumentCounter Instrument = "counter"
	// InstrumentHistogram records a distribution of observed values.
	InstrumentHistogram Instrument = "histogram"
	// InstrumentGauge tracks the most recently observed value.
	InstrumentGauge Instrument = "gauge"
)

// ExportMode tags whether a metric's raw or aggregated form (or both) is
// exported. A raw-only spec gets no aggregated instrument and is reported
// only through Registry.RawMetrics; "both" feeds the instruments and
// RawMetrics; "aggregated" feeds only the instruments.
type ExportMode string

const (
	// ExportRaw indicates unaggregated per-event values are of interest.
	ExportRaw ExportMode = "raw"
	// ExportAggregated is the default: only the aggregated instrument matters.
	ExportAggregated ExportMode = "aggregated"
	// ExportBoth requests both forms.
	ExportBoth ExportMode = "both"
)

// Target selects which external system(s) a metric is exported to.
type Target string

const (
	// TargetOtel exports to the OpenTelemetry OTLP pipeline.
	TargetOtel Target = "otel"
	// TargetOther exports to the Prometheus client_golang registry.
	TargetOther Target = "other"
	// TargetBoth exports to both.
	TargetBoth Target = "both"
)

// ValueFn extracts the metric's value from a tick's data mapping, returning
// ok=false to skip recording this tick.
type ValueFn func(data map[string]any) (value float64, ok bool)

// MetricSpec is one filter-declared telemetry record.
type MetricSpec struct {
	Name       string
	Instrument Instrument
	ValueFn    ValueFn
	ExportMode ExportMode
	Target     Target
	Boundaries []float64
	NumBuckets int
}

// withDefaults returns a copy of the spec with ExportMode/Target/NumBuckets defaulted.
func (s MetricSpec) withDefaults() MetricSpec {
	if s.ExportMode == "" {
		s.ExportMode = ExportAggregated
	}
	if s.Target == "" {
		s.Target = TargetBoth
	}
	if s.NumBuckets == 0 {
		s.NumBuckets = 10
	}
	return s
}

package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"

	"openfilter/internal/telemetry"
)

// defaultPrometheusRegisterer returns the global prometheus registry used as
// the "other" (non-otel) export target.
func defaultPrometheusRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// resolvedMeter resolves the process's OTel exporter configuration and returns a
// Meter named "openfilter-run": a real OTLP meter if enabled, otherwise a noop one.
func resolvedMeter() otelmetric.Meter {
	cfg := telemetry.ResolveExporterConfig()
	provider, _, err := telemetry.NewMeterProvider(context.Background(), cfg)
	if err != nil {
		provider = nil
	}
	return telemetry.MeterFor(provider, "openfilter-run")
}

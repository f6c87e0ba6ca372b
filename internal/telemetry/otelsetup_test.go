package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveExporterConfigFromEnvFallback(t *testing.T) {
	t.Setenv("OF_SAFE_METRICS_FILE", "")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_EXPORT_INTERVAL", "5")

	cfg := ResolveExporterConfig()
	if !cfg.Enabled {
		t.Error("expected OTEL_ENABLED=true to enable the exporter")
	}
	if cfg.Endpoint != "http://collector:4318" {
		t.Errorf("unexpected endpoint: %q", cfg.Endpoint)
	}
	if cfg.ExportInterval.Seconds() != 5 {
		t.Errorf("expected 5s export interval, got %v", cfg.ExportInterval)
	}
}

func TestResolveExporterConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "safe_metrics.yaml")
	doc := "safe_metrics: [fps]\nopentelemetry:\n  enabled: true\n  endpoint: http://localhost:4318\n  export_interval: 30\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OF_SAFE_METRICS_FILE", path)

	cfg := ResolveExporterConfig()
	if !cfg.Enabled || cfg.Endpoint != "http://localhost:4318" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.ExportInterval.Seconds() != 30 {
		t.Errorf("expected 30s interval, got %v", cfg.ExportInterval)
	}
}

func TestNewMeterProviderDisabledIsNoop(t *testing.T) {
	provider, shutdown, err := NewMeterProvider(context.Background(), ExporterConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMeterProvider: %v", err)
	}
	if provider != nil {
		t.Error("expected nil provider when exporter is disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected no-op shutdown to succeed, got %v", err)
	}
	if m := MeterFor(provider, "f1"); m == nil {
		t.Error("expected a usable noop meter when provider is nil")
	}
}

package telemetry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ExporterConfig describes where (and whether) to ship otel metrics, sourced
// from the OF_SAFE_METRICS_FILE `opentelemetry:` block and OTEL_* env vars.
type ExporterConfig struct {
	Enabled        bool
	Endpoint       string
	Headers        map[string]string
	Protocol       string
	ExportInterval time.Duration
}

// otelFileConfig is the `opentelemetry:` sub-document of OF_SAFE_METRICS_FILE.
type otelFileConfig struct {
	Endpoint       string            `yaml:"endpoint"`
	Headers        map[string]string `yaml:"headers"`
	Protocol       string            `yaml:"protocol"`
	ExportInterval int               `yaml:"export_interval"`
	Enabled        *bool             `yaml:"enabled"`
}

// ResolveExporterConfig resolves the exporter configuration: OF_SAFE_METRICS_FILE's
// opentelemetry block takes priority over the individual OTEL_* environment
// variables, matching ReadAllowlist's own file-then-env precedence.
func ResolveExporterConfig() ExporterConfig {
	if path := os.Getenv("OF_SAFE_METRICS_FILE"); path != "" {
		if cfg, ok := readExporterConfigFile(path); ok {
			return cfg
		}
	}
	return exporterConfigFromEnv()
}

func readExporterConfigFile(path string) (ExporterConfig, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExporterConfig{}, false
	}
	var full allowlistFile
	if err := yaml.Unmarshal(data, &full); err != nil {
		return ExporterConfig{}, false
	}
	oc := full.OpenTelemetry
	if oc.Endpoint == "" && oc.Protocol == "" && oc.Enabled == nil {
		return ExporterConfig{}, false
	}
	enabled := oc.Enabled != nil && *oc.Enabled
	interval := time.Duration(oc.ExportInterval) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return ExporterConfig{
		Enabled:        enabled,
		Endpoint:       oc.Endpoint,
		Headers:        oc.Headers,
		Protocol:       oc.Protocol,
		ExportInterval: interval,
	}, true
}

// exporterConfigFromEnv builds an ExporterConfig from the OTEL_EXPORTER_OTLP_*
// fallback environment variables.
func exporterConfigFromEnv() ExporterConfig {
	cfg := ExporterConfig{
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:       os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
		ExportInterval: 60 * time.Second,
	}
	if enabled, err := strconv.ParseBool(os.Getenv("OTEL_ENABLED")); err == nil {
		cfg.Enabled = enabled
	}
	if raw := os.Getenv("OTEL_EXPORT_INTERVAL"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cfg.ExportInterval = time.Duration(secs) * time.Second
		}
	}
	if raw := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); raw != "" {
		cfg.Headers = parseHeaderList(raw)
	}
	return cfg
}

// parseHeaderList parses the comma-separated key=value pairs OTEL_EXPORTER_OTLP_HEADERS uses.
func parseHeaderList(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			out[k] = v
		}
	}
	return out
}

// NewMeterProvider builds a real OTLP-over-HTTP metric pipeline from cfg, or
// returns (nil, no-op shutdown, nil) when cfg.Enabled is false, in which case
// callers should fall back to a noop meter rather than erroring when no
// collector is configured.
func NewMeterProvider(ctx context.Context, cfg ExporterConfig) (*sdkmetric.MeterProvider, func(context.Context) error, error) {
	if !cfg.Enabled {
		return nil, func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetrichttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
	}
	if cfg.Protocol == "http/insecure" {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: build otlp exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return provider, provider.Shutdown, nil
}

// MeterFor returns an otel Meter for filterID from provider, or a noop Meter
// if provider is nil (cfg.Enabled was false).
func MeterFor(provider *sdkmetric.MeterProvider, filterID string) otelmetric.Meter {
	if provider == nil {
		return noop.NewMeterProvider().Meter(filterID)
	}
	return provider.Meter(filterID)
}

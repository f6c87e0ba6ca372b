package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetDefaults(t *testing.T) {
	c := &FilterConfig{ID: "f1"}
	c.setDefaults()

	if c.SourcesTimeoutMS != 1000 {
		t.Errorf("expected default sources_timeout 1000, got %d", c.SourcesTimeoutMS)
	}
	if c.MQLog != LogPretty {
		t.Errorf("expected default mq_log pretty, got %q", c.MQLog)
	}
	if !c.BoolOutputsFilter() {
		t.Error("expected outputs_filter to default true")
	}
	if !c.BoolMsgIDSync() {
		t.Error("expected mq_msgid_sync to default true")
	}
}

func TestValidateRejectsMissingID(t *testing.T) {
	c := &FilterConfig{}
	c.setDefaults()
	if err := c.Validate(); err != ErrMissingID {
		t.Errorf("expected ErrMissingID, got %v", err)
	}
}

func TestValidateRejectsBadMQLog(t *testing.T) {
	c := &FilterConfig{ID: "f1", MQLog: "loud"}
	if err := c.Validate(); err == nil {
		t.Error("expected error for invalid mq_log")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("id: f1\nnonexistent_field: true\n"), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error decoding config with unknown field")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(path, []byte("id: f1\nsources:\n  - tcp://localhost:5550\n"), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SourcesTimeoutMS != 1000 {
		t.Errorf("expected default applied, got %d", cfg.SourcesTimeoutMS)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0] != "tcp://localhost:5550" {
		t.Errorf("unexpected sources: %+v", cfg.Sources)
	}
}

func TestNormalizeAcceptsDuckTypedMap(t *testing.T) {
	m := map[string]any{
		"id":              "f1",
		"sources_timeout": 500,
		"mq_log":          "json",
	}
	cfg, err := Normalize(m)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.ID != "f1" || cfg.SourcesTimeoutMS != 500 || cfg.MQLog != LogJSON {
		t.Errorf("unexpected normalized config: %+v", cfg)
	}
}

func TestNormalizeAcceptsTypedValue(t *testing.T) {
	cfg, err := Normalize(FilterConfig{ID: "f2"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.ID != "f2" || cfg.SourcesTimeoutMS != 1000 {
		t.Errorf("unexpected normalized config: %+v", cfg)
	}
}

func TestNormalizeRejectsUnsupportedType(t *testing.T) {
	if _, err := Normalize(42); err == nil {
		t.Error("expected error for unsupported config type")
	}
}

func TestExitAfterTimeParsesRFC3339(t *testing.T) {
	c := &FilterConfig{ID: "f1", ExitAfter: "2026-07-31T12:00:00Z"}
	got, err := c.ExitAfterTime()
	if err != nil {
		t.Fatalf("ExitAfterTime: %v", err)
	}
	if got.IsZero() {
		t.Fatal("expected a non-zero parsed time")
	}
}

func TestExitAfterTimeEmptyIsZero(t *testing.T) {
	c := &FilterConfig{ID: "f1"}
	got, err := c.ExitAfterTime()
	if err != nil {
		t.Fatalf("ExitAfterTime: %v", err)
	}
	if !got.IsZero() {
		t.Error("expected zero time when exit_after unset")
	}
}

func TestExitAfterTimeRejectsBadFormat(t *testing.T) {
	c := &FilterConfig{ID: "f1", ExitAfter: "not-a-time"}
	if _, err := c.ExitAfterTime(); err == nil {
		t.Error("expected error for malformed exit_after")
	}
}

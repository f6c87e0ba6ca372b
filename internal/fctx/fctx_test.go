package fctx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReadsTextFiles(t *testing.T) {
	reset()
	dir := t.TempDir()
	write(t, dir, "VERSION", "1.2.3\n")
	write(t, dir, "VERSION_SHA", "abc123\n")

	Load(dir)

	if Version() != "1.2.3" {
		t.Errorf("expected Version 1.2.3, got %q", Version())
	}
	if VersionSHA() != "abc123" {
		t.Errorf("expected VersionSHA abc123, got %q", VersionSHA())
	}
	if ResourceBundleVersion() != "" {
		t.Errorf("expected empty RESOURCE_BUNDLE_VERSION when absent, got %q", ResourceBundleVersion())
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	reset()
	dir := t.TempDir()
	write(t, dir, "VERSION", "1.0.0")
	Load(dir)
	Load(dir) // second call must not reload or panic
	if Version() != "1.0.0" {
		t.Errorf("expected cached Version 1.0.0, got %q", Version())
	}
}

func TestLoadParsesModelsToml(t *testing.T) {
	reset()
	dir := t.TempDir()
	write(t, dir, "models.toml", "[models.detector]\nversion = \"2.1\"\npath = \"/opt/models/detector.onnx\"\n")

	Load(dir)

	models := Models()
	if models == nil {
		t.Fatal("expected models table to be parsed")
	}
	entry, ok := models.Models["detector"]
	if !ok {
		t.Fatal("expected a detector model entry")
	}
	if entry.Version != "2.1" || entry.Path != "/opt/models/detector.onnx" {
		t.Errorf("unexpected model entry: %+v", entry)
	}
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

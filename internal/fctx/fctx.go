package fctx

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu          sync.Mutex
	loaded      bool
	version     string
	versionSHA  string
	bundleVer   string
	modelsTable *ModelsTable
)

// Load reads VERSION, VERSION_SHA, RESOURCE_BUNDLE_VERSION, and models.toml
// from dir, caching the result for subsequent calls. A missing file leaves
// its field empty rather than erroring, matching "filter-local reads" being
// best-effort context rather than required configuration.
func Load(dir string) {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return
	}
	version = readTextFile(dir, "VERSION")
	versionSHA = readTextFile(dir, "VERSION_SHA")
	bundleVer = readTextFile(dir, "RESOURCE_BUNDLE_VERSION")
	modelsTable, _ = loadModelsTable(dir)
	loaded = true
}

// Version returns the cached VERSION file contents, or empty if absent/unloaded.
func Version() string { mu.Lock(); defer mu.Unlock(); return version }

// VersionSHA returns the cached VERSION_SHA file contents.
func VersionSHA() string { mu.Lock(); defer mu.Unlock(); return versionSHA }

// ResourceBundleVersion returns the cached RESOURCE_BUNDLE_VERSION file contents.
func ResourceBundleVersion() string { mu.Lock(); defer mu.Unlock(); return bundleVer }

// Models returns the cached models.toml table, or nil if it was absent or unreadable.
func Models() *ModelsTable { mu.Lock(); defer mu.Unlock(); return modelsTable }

// readTextFile reads dir/name, trims trailing whitespace, and returns ""
// (not an error) when the file is missing.
func readTextFile(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// reset clears cached state; used only by tests to force a fresh Load.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	loaded = false
	version, versionSHA, bundleVer = "", "", ""
	modelsTable = nil
}

package fctx

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ModelEntry describes one staged model artifact.
type ModelEntry struct {
	Version string `toml:"version"`
	Path    string `toml:"path"`
}

// ModelsTable is the parsed contents of models.toml, keyed by model name.
type ModelsTable struct {
	Models map[string]ModelEntry `toml:"models"`
}

// loadModelsTable reads dir/models.toml, returning (nil, nil) if it is absent.
func loadModelsTable(dir string) (*ModelsTable, error) {
	path := filepath.Join(dir, "models.toml")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	var table ModelsTable
	if _, err := toml.DecodeFile(path, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

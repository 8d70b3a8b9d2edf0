// Package config handles configuration loading and shared defaults.
package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration file structure.
type Config struct {
	// CatalogURL is the base URL of the document library's spatial API.
	CatalogURL string `yaml:"catalog_url,omitempty"`
	// ExportDir receives exported documents and bundle archives.
	ExportDir string `yaml:"export_dir,omitempty"`
	// DataDir is the file explorer's starting directory.
	DataDir string `yaml:"data_dir,omitempty"`
}

// Load reads and parses the YAML configuration file from the specified
// path. A missing file yields the defaults rather than an error.
func Load(path string) (*Config, error) {
	cfg := &Config{ExportDir: "."}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "."
	}
	return cfg, nil
}

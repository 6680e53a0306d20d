package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type configFile struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// overlayFile merges the YAML file at path onto cfg. Only keys present in the
// file replace the environment-derived values.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	file := configFile{Pipeline: cfg.Pipeline}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg.Pipeline = file.Pipeline

	return nil
}

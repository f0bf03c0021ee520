package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadFromFile reads a JSON configuration. Relative paths in it are resolved
// against the directory holding the file.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.resolve(filepath.Dir(abs)); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given: a project at
// projectPath with a single $MAIN mount on its assets directory.
func Default(projectPath string) (*Config, error) {
	cfg := Config{ProjectPath: projectPath}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := cfg.resolve(wd); err != nil {
		return nil, err
	}
	return &cfg, nil
}

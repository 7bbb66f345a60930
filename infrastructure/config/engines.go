package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadEngineConfig loads the engine enablement configuration from
// config/engines.yaml.
func LoadEngineConfig() (*EngineConfig, error) {
	return LoadEngineConfigFromPath(filepath.Join("config", "engines.yaml"))
}

// LoadEngineConfigFromPath loads the engine enablement configuration from a
// specific path.
func LoadEngineConfigFromPath(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse engine config: %w", err)
	}
	return &cfg, nil
}

// LoadEngineConfigOrDefault loads the engine config or returns the default
// (every known engine enabled) if the file is absent.
func LoadEngineConfigOrDefault() *EngineConfig {
	cfg, err := LoadEngineConfig()
	if err != nil {
		return DefaultEngineConfig()
	}
	return cfg
}

// DefaultEngineConfig enables every engine the orchestrator knows about.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Engines: map[string]*EngineSettings{
			"resolver": {
				Enabled:     true,
				Description: "Resolves mortality, lapse, and expense tables from the Assumptions Manager",
			},
			"valuation": {
				Enabled:     true,
				Description: "Projects policy cash flows across scenarios and aggregates the NPV distribution",
			},
		},
	}
}

package config

// EngineSettings holds configuration for a single orchestrator engine from
// engines.yaml.
type EngineSettings struct {
	// Enabled determines whether the orchestrator dispatches this engine.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Description is a human-readable description.
	Description string `yaml:"description" json:"description"`

	// Extra holds any additional engine-specific configuration parsed from
	// engines.yaml; it is not passed to any engine.
	Extra map[string]any `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// EngineConfig holds the enablement configuration for every named engine in
// an orchestrator pipeline.
type EngineConfig struct {
	Engines map[string]*EngineSettings `yaml:"engines" json:"engines"`
}

// IsEnabled reports whether a named engine is enabled. An engine absent from
// the configuration is treated as disabled.
func (c *EngineConfig) IsEnabled(name string) bool {
	if c == nil || c.Engines == nil {
		return false
	}
	settings, ok := c.Engines[name]
	if !ok {
		return false
	}
	return settings.Enabled
}

// Settings returns the settings for a named engine, or nil if absent.
func (c *EngineConfig) Settings(name string) *EngineSettings {
	if c == nil || c.Engines == nil {
		return nil
	}
	return c.Engines[name]
}

// EnabledEngines returns the names of every enabled engine.
func (c *EngineConfig) EnabledEngines() []string {
	if c == nil || c.Engines == nil {
		return nil
	}
	var enabled []string
	for name, settings := range c.Engines {
		if settings.Enabled {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

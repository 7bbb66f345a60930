package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	if cfg == nil {
		t.Fatal("DefaultEngineConfig() returned nil")
	}

	for _, name := range []string{"resolver", "valuation"} {
		settings, ok := cfg.Engines[name]
		if !ok {
			t.Errorf("missing engine %q in default config", name)
			continue
		}
		if !settings.Enabled {
			t.Errorf("engine %q should be enabled by default", name)
		}
		if settings.Description == "" {
			t.Errorf("engine %q has no description", name)
		}
	}
}

func TestEngineConfigIsEnabled(t *testing.T) {
	cfg := &EngineConfig{Engines: map[string]*EngineSettings{
		"resolver": {Enabled: true},
		"udf":      {Enabled: false},
	}}

	if !cfg.IsEnabled("resolver") {
		t.Error("IsEnabled(resolver) = false, want true")
	}
	if cfg.IsEnabled("udf") {
		t.Error("IsEnabled(udf) = true, want false")
	}
	if cfg.IsEnabled("nonexistent") {
		t.Error("IsEnabled(nonexistent) = true, want false")
	}
}

func TestEngineConfigIsEnabledNilSafe(t *testing.T) {
	var cfg *EngineConfig
	if cfg.IsEnabled("resolver") {
		t.Error("nil *EngineConfig.IsEnabled() should return false")
	}
}

func TestEngineConfigEnabledEngines(t *testing.T) {
	cfg := &EngineConfig{Engines: map[string]*EngineSettings{
		"resolver":  {Enabled: true},
		"valuation": {Enabled: true},
		"udf":       {Enabled: false},
	}}

	enabled := cfg.EnabledEngines()
	if len(enabled) != 2 {
		t.Errorf("EnabledEngines() = %v, want 2 entries", enabled)
	}
}

func TestLoadEngineConfigFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engines.yaml")
	yaml := []byte(`
engines:
  resolver:
    enabled: true
    description: test resolver
  valuation:
    enabled: false
    description: test valuation
`)
	if err := os.WriteFile(path, yaml, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadEngineConfigFromPath(path)
	if err != nil {
		t.Fatalf("LoadEngineConfigFromPath() error = %v", err)
	}
	if !cfg.IsEnabled("resolver") {
		t.Error("expected resolver enabled")
	}
	if cfg.IsEnabled("valuation") {
		t.Error("expected valuation disabled")
	}
}

func TestLoadEngineConfigOrDefaultFallsBackOnMissingFile(t *testing.T) {
	cfg := LoadEngineConfigOrDefault()
	if cfg == nil || len(cfg.Engines) == 0 {
		t.Fatal("expected a non-empty default config when no file is present")
	}
}

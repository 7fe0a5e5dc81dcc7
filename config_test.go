package georef

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.MaxAreaKm2 != 3050 || cfg.TargetResolution != 1 || cfg.JPEGQuality != 85 || cfg.RatioThreshold != 0.75 || cfg.FailOnEmptyWarp {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"area":    func(c *Config) { c.MaxAreaKm2 = 0 },
		"matches": func(c *Config) { c.MinMatches = 3 },
		"ratio":   func(c *Config) { c.RatioThreshold = 1 },
		"quality": func(c *Config) { c.JPEGQuality = 101 },
		"warper":  func(c *Config) { c.Warper = "cuda" },
		"suffix":  func(c *Config) { c.OutputSuffix = "" },
		"blank":   func(c *Config) { c.OutputSuffix = "  " },
	}
	for name, mod := range cases {
		cfg := DefaultConfig()
		mod(&cfg)
		if err := cfg.Validate(); KindOf(err) != ErrInvalidConfig {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "missing.json"))
	if err != nil || cfg.RenderWidth != DefaultRenderWidth {
		t.Fatalf("missing file should give defaults: %v", err)
	}

	path := filepath.Join(dir, "georef.json")
	if err = os.WriteFile(path, []byte(`{"target_resolution": 0.5, "warper": "go"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if cfg, err = LoadConfig(path); err != nil {
		t.Fatal(err)
	}
	if cfg.TargetResolution != 0.5 || cfg.Warper != WarperGo || cfg.MinInliers != DefaultMinInliers {
		t.Errorf("unexpected config %+v", cfg)
	}

	if err = os.WriteFile(path, []byte(`{"jpeg_quality": 0}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err = LoadConfig(path); KindOf(err) != ErrInvalidConfig {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	out := filepath.Join(dir, "sub", "saved.json")
	if err = SaveConfig(out, DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if cfg, err = LoadConfig(out); err != nil || cfg.OutputSuffix != OUTPUT_SUFFIX {
		t.Errorf("round trip: %v", err)
	}
}

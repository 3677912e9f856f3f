package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]func(*Config){
		"zero grid":     func(c *Config) { c.Grid.Size = 0 },
		"zero frames":   func(c *Config) { c.Grid.TotalFrames = 0 },
		"bad fft":       func(c *Config) { c.Audio.FFTSize = 1000 },
		"bad smoothing": func(c *Config) { c.Audio.Smoothing = 1.5 },
		"short palette": func(c *Config) { c.Visual.Palette = []string{"#000000"} },
		"bad color":     func(c *Config) { c.Visual.Palette[2] = "pink" },
		"zero fps":      func(c *Config) { c.Render.TargetFPS = 0 },
		"zero size":     func(c *Config) { c.Render.Width = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
grid:
  size: 8
  total_frames: 64
  order: spiral
  loop_mode: bounce
visual:
  transition_ms: 120
  palette: ["#000000", "#333333", "#999999", "#ffffff"]
audio:
  fft_size: 1024
  smoothing: 0.7
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Grid.Size != 8 || cfg.Grid.Order != "spiral" {
		t.Fatalf("grid not overridden: %+v", cfg.Grid)
	}
	if cfg.Visual.TransitionMs != 120 {
		t.Fatalf("transition=%d want 120", cfg.Visual.TransitionMs)
	}
	// untouched sections keep defaults
	if cfg.Beat.KickThreshold != DefaultKickThreshold {
		t.Fatalf("kick threshold=%f want default", cfg.Beat.KickThreshold)
	}
	if cfg.Render.TargetFPS != DefaultFPS {
		t.Fatalf("fps=%f want default", cfg.Render.TargetFPS)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPaletteColors(t *testing.T) {
	cfg := Default()
	cfg.Visual.Palette = []string{"#102030", "#405060", "#708090", "#a0b0c0"}
	colors, err := cfg.PaletteColors()
	if err != nil {
		t.Fatal(err)
	}
	if colors[0].R != 0x10 || colors[0].G != 0x20 || colors[0].B != 0x30 {
		t.Fatalf("colors[0]=%+v want 10/20/30", colors[0])
	}
	if colors[3].A != 0xff {
		t.Fatal("alpha not forced opaque")
	}
}

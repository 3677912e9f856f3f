package config

import (
	"fmt"
	"image/color"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the engine configuration.
const (
	DefaultGridSize       = 21
	DefaultTotalFrames    = 441
	DefaultOrder          = "sequential"
	DefaultLoopMode       = "loop"
	DefaultTransitionMs   = 80
	DefaultChromatic      = 0.6
	DefaultFeedback       = 0.35
	DefaultNoise          = 0.04
	DefaultBloom          = 0.4
	DefaultKickThreshold  = 0.1
	DefaultSnareThreshold = 0.08
	DefaultMinBeatMs      = 100
	DefaultFFTSize        = 2048
	DefaultSmoothing      = 0.8
	DefaultBufferSize     = 4096
	DefaultWidth          = 960
	DefaultHeight         = 960
	DefaultFPS            = 60
	DefaultWebPort        = 8473
)

// Config is the full engine configuration, loaded once at startup from YAML
// and/or flags.
type Config struct {
	Image string `yaml:"image"` // source bitmap path

	Grid   GridConfig   `yaml:"grid"`
	Visual VisualConfig `yaml:"visual"`
	Beat   BeatConfig   `yaml:"beat"`
	Audio  AudioConfig  `yaml:"audio"`
	Render RenderConfig `yaml:"render"`
	Web    WebConfig    `yaml:"web"`
}

// GridConfig drives the frame sequencer.
type GridConfig struct {
	Size        int    `yaml:"size"`         // cells per side
	TotalFrames int    `yaml:"total_frames"` // sequence length before the loop policy applies
	Order       string `yaml:"order"`        // sequential|spiral|diagonal|random
	LoopMode    string `yaml:"loop_mode"`    // loop|bounce|once
}

// VisualConfig drives the enhanced compositor.
type VisualConfig struct {
	TransitionMs        int      `yaml:"transition_ms"`
	ChromaticAberration float64  `yaml:"chromatic_aberration"`
	FeedbackAmount      float64  `yaml:"feedback_amount"`
	NoiseAmount         float64  `yaml:"noise_amount"`
	BloomStrength       float64  `yaml:"bloom_strength"`
	Palette             []string `yaml:"palette"` // exactly four #rrggbb colors
}

// BeatConfig drives onset detection.
type BeatConfig struct {
	KickThreshold  float64 `yaml:"kick_threshold"`
	SnareThreshold float64 `yaml:"snare_threshold"`
	MinIntervalMs  int     `yaml:"min_beat_interval_ms"`
}

// AudioConfig drives capture and spectral analysis.
type AudioConfig struct {
	Device     string  `yaml:"device"`      // substring match, empty for auto
	BufferSize int     `yaml:"buffer_size"` // capture ring size in samples
	FFTSize    int     `yaml:"fft_size"`    // power of two
	Smoothing  float64 `yaml:"smoothing"`   // band level smoothing factor
	Disabled   bool    `yaml:"disabled"`    // run on the synthetic source
}

// RenderConfig drives the output surface and pacing.
type RenderConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	TargetFPS  float64 `yaml:"target_fps"`
	Compositor string  `yaml:"compositor"` // enhanced|faithful, empty for auto
	Static     bool    `yaml:"static"`     // reduced motion: center cell only
}

// WebConfig drives the websocket readout server.
type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			Size:        DefaultGridSize,
			TotalFrames: DefaultTotalFrames,
			Order:       DefaultOrder,
			LoopMode:    DefaultLoopMode,
		},
		Visual: VisualConfig{
			TransitionMs:        DefaultTransitionMs,
			ChromaticAberration: DefaultChromatic,
			FeedbackAmount:      DefaultFeedback,
			NoiseAmount:         DefaultNoise,
			BloomStrength:       DefaultBloom,
			Palette:             []string{"#10142e", "#4a2e5c", "#c26b4a", "#f2e3c4"},
		},
		Beat: BeatConfig{
			KickThreshold:  DefaultKickThreshold,
			SnareThreshold: DefaultSnareThreshold,
			MinIntervalMs:  DefaultMinBeatMs,
		},
		Audio: AudioConfig{
			BufferSize: DefaultBufferSize,
			FFTSize:    DefaultFFTSize,
			Smoothing:  DefaultSmoothing,
		},
		Render: RenderConfig{
			Width:     DefaultWidth,
			Height:    DefaultHeight,
			TargetFPS: DefaultFPS,
		},
		Web: WebConfig{
			Port: DefaultWebPort,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged; a missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot construct from. Called
// before any component is built so bad values surface immediately.
func (c *Config) Validate() error {
	if c.Grid.Size <= 0 {
		return fmt.Errorf("grid size must be positive, got %d", c.Grid.Size)
	}
	if c.Grid.TotalFrames <= 0 {
		return fmt.Errorf("total frames must be positive, got %d", c.Grid.TotalFrames)
	}
	if c.Audio.FFTSize < 32 || c.Audio.FFTSize&(c.Audio.FFTSize-1) != 0 {
		return fmt.Errorf("fft size must be a power of two >= 32, got %d", c.Audio.FFTSize)
	}
	if c.Audio.Smoothing <= 0 || c.Audio.Smoothing >= 1 {
		return fmt.Errorf("smoothing must be in (0,1), got %f", c.Audio.Smoothing)
	}
	if len(c.Visual.Palette) != 4 {
		return fmt.Errorf("palette needs exactly 4 colors, got %d", len(c.Visual.Palette))
	}
	if _, err := c.PaletteColors(); err != nil {
		return err
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("invalid render size %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Render.TargetFPS <= 0 {
		return fmt.Errorf("target fps must be positive, got %f", c.Render.TargetFPS)
	}
	return nil
}

// TransitionDuration returns the cell transition time.
func (c *Config) TransitionDuration() time.Duration {
	return time.Duration(c.Visual.TransitionMs) * time.Millisecond
}

// MinBeatInterval returns the detector refractory window.
func (c *Config) MinBeatInterval() time.Duration {
	return time.Duration(c.Beat.MinIntervalMs) * time.Millisecond
}

// PaletteColors parses the four grading colors.
func (c *Config) PaletteColors() ([4]color.RGBA, error) {
	var out [4]color.RGBA
	for i, s := range c.Visual.Palette {
		if i >= 4 {
			break
		}
		col, err := parseHexColor(s)
		if err != nil {
			return out, fmt.Errorf("palette[%d]: %w", i, err)
		}
		out[i] = col
	}
	return out, nil
}

func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("want #rrggbb, got %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("bad hex color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

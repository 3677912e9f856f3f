package compositor

import (
	"fmt"
	"image/color"
	"strings"
	"time"
)

// Type identifiers reported by the two implementations.
const (
	TypeFaithful = "faithful"
	TypeEnhanced = "enhanced"
)

// Compositor renders one grid cell of the source bitmap per call into an
// RGBA framebuffer owned by the implementation. Both implementations share
// this contract so callers can swap them freely.
type Compositor interface {
	// SetImage installs the source bitmap. A nil image renders black.
	SetImage(img *Bitmap)
	// Render composites the requested cell into the framebuffer.
	Render(col, row int)
	// RenderStatic composites the grid's center cell, used as the
	// reduced-motion fallback.
	RenderStatic()
	// Resize adjusts every internal buffer to the new output size.
	Resize(width, height int)
	// Framebuffer exposes the RGBA output pixels, row-major, 4 bytes per
	// pixel. Valid until the next Render or Resize.
	Framebuffer() []byte
	// Size returns the current output dimensions.
	Size() (width, height int)
	// Dispose releases every buffer. Safe to call more than once.
	Dispose()
	// Type identifies the implementation.
	Type() string
}

// Modulation carries the per-frame audio readouts the enhanced compositor
// consumes as shader inputs. The zero value means silence.
type Modulation struct {
	Energy  float64
	Mid     float64
	Treble  float64
	KickHit float64
	BeatHit float64
}

// Config is shared by both implementations; the effect amounts only matter
// to the enhanced one.
type Config struct {
	GridSize int
	Width    int
	Height   int

	TransitionDuration  time.Duration
	ChromaticAberration float64
	FeedbackAmount      float64
	NoiseAmount         float64
	BloomStrength       float64
	Palette             [4]color.RGBA

	// Accelerated reports whether the presenter offers an accelerated
	// surface. The enhanced compositor refuses to construct without one.
	Accelerated bool
}

// ResourceError signals that the enhanced compositor could not acquire its
// render resources. Callers should fall back to the faithful implementation.
type ResourceError struct {
	Reason string
}

func (e *ResourceError) Error() string {
	return "compositor resources unavailable: " + e.Reason
}

// DefaultPalette is the grading palette used when the config leaves it empty:
// deep blue shadows through warm highlights.
func DefaultPalette() [4]color.RGBA {
	return [4]color.RGBA{
		{R: 0x10, G: 0x14, B: 0x2e, A: 0xff},
		{R: 0x4a, G: 0x2e, B: 0x5c, A: 0xff},
		{R: 0xc2, G: 0x6b, B: 0x4a, A: 0xff},
		{R: 0xf2, G: 0xe3, B: 0xc4, A: 0xff},
	}
}

func (c *Config) validate() error {
	if c.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %d", c.GridSize)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", c.Width, c.Height)
	}
	if c.TransitionDuration <= 0 {
		c.TransitionDuration = 80 * time.Millisecond
	}
	var zero [4]color.RGBA
	if c.Palette == zero {
		c.Palette = DefaultPalette()
	}
	return nil
}

// New builds a compositor of the requested kind. An enhanced request without
// acceleration support returns a *ResourceError so the caller can substitute
// the faithful implementation.
func New(kind string, cfg Config) (Compositor, error) {
	switch strings.ToLower(kind) {
	case TypeEnhanced:
		return NewEnhanced(cfg)
	case TypeFaithful, "":
		return NewBlit(cfg)
	default:
		return nil, fmt.Errorf("unknown compositor type %q", kind)
	}
}

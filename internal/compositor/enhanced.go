package compositor

import (
	"math"
	"time"
)

const (
	paletteInfluence = 0.15
	bloomLumaKnee    = 0.6
)

// transition tracks the smooth cross-fade between the previously shown cell
// and the requested one.
type transition struct {
	current  cellRef
	target   cellRef
	started  time.Time
	hasFrame bool
}

type cellRef struct {
	col, row int
}

// Enhanced is the shader-style implementation. Every effect is evaluated per
// pixel into a streamed framebuffer, with a feedback buffer holding the
// previous composited frame for trailing.
type Enhanced struct {
	cfg      Config
	src      *Bitmap
	fb       []byte
	feedback []byte
	trans    transition
	mod      Modulation
	disposed bool

	now func() time.Time
}

// NewEnhanced constructs the shader-based compositor. Without an accelerated
// presenter it returns a *ResourceError so callers can fall back to Blit.
func NewEnhanced(cfg Config) (*Enhanced, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !cfg.Accelerated {
		return nil, &ResourceError{Reason: "no accelerated surface"}
	}
	center := cfg.GridSize / 2
	return &Enhanced{
		cfg:      cfg,
		fb:       make([]byte, cfg.Width*cfg.Height*4),
		feedback: make([]byte, cfg.Width*cfg.Height*4),
		trans: transition{
			current: cellRef{center, center},
			target:  cellRef{center, center},
		},
		now: time.Now,
	}, nil
}

func (e *Enhanced) Type() string { return TypeEnhanced }

func (e *Enhanced) SetImage(img *Bitmap) { e.src = img }

func (e *Enhanced) Size() (int, int) { return e.cfg.Width, e.cfg.Height }

func (e *Enhanced) Framebuffer() []byte { return e.fb }

// SetModulation installs the audio readouts consumed by the next Render.
func (e *Enhanced) SetModulation(mod Modulation) {
	e.mod = mod
}

// Render composites the requested cell with transition, aberration, feedback,
// noise, palette grading and bloom. Requesting the coordinate already being
// shown never restarts the transition.
func (e *Enhanced) Render(col, row int) {
	if e.disposed {
		return
	}
	col = clampInt(col, 0, e.cfg.GridSize-1)
	row = clampInt(row, 0, e.cfg.GridSize-1)

	now := e.now()
	req := cellRef{col, row}
	if req != e.trans.target {
		e.trans.current = e.trans.target
		e.trans.target = req
		e.trans.started = now
	}
	e.composite(now)
}

// RenderStatic snaps to the grid's center cell with no transition, for the
// reduced-motion fallback path.
func (e *Enhanced) RenderStatic() {
	if e.disposed {
		return
	}
	center := cellRef{e.cfg.GridSize / 2, e.cfg.GridSize / 2}
	e.trans.current = center
	e.trans.target = center
	e.trans.started = time.Time{}
	e.composite(e.now())
}

// Progress returns the eased transition progress in [0,1].
func (e *Enhanced) Progress() float64 {
	return e.progressAt(e.now())
}

// Resize reallocates the framebuffer and feedback target and drops the stale
// trailing frame.
func (e *Enhanced) Resize(width, height int) {
	if e.disposed || width <= 0 || height <= 0 {
		return
	}
	e.cfg.Width = width
	e.cfg.Height = height
	e.fb = make([]byte, width*height*4)
	e.feedback = make([]byte, width*height*4)
	e.trans.hasFrame = false
}

// Dispose releases both render targets. Safe to call more than once.
func (e *Enhanced) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.fb = nil
	e.feedback = nil
	e.src = nil
}

func (e *Enhanced) progressAt(now time.Time) float64 {
	if e.trans.started.IsZero() {
		return 1
	}
	p := float64(now.Sub(e.trans.started)) / float64(e.cfg.TransitionDuration)
	if p >= 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

func (e *Enhanced) composite(now time.Time) {
	eased := smoothstep(e.progressAt(now))

	outW, outH := e.cfg.Width, e.cfg.Height
	treble := e.mod.Treble
	chromaPx := e.cfg.ChromaticAberration * (1 + 0.5*treble + 0.4*e.mod.KickHit) * 3
	feedbackAmt := clamp01f(e.cfg.FeedbackAmount * (1 + 0.5*e.mod.Energy))
	if !e.trans.hasFrame {
		feedbackAmt = 0
	}
	noiseAmt := e.cfg.NoiseAmount * (1 + e.mod.Mid)
	bloom := e.cfg.BloomStrength * (1 + 0.3*e.mod.BeatHit)

	for y := 0; y < outH; y++ {
		rowOffset := y * outW * 4
		for x := 0; x < outW; x++ {
			r := e.mixCell(float64(x)+chromaPx, y, 0, eased)
			g := e.mixCell(float64(x), y, 1, eased)
			b := e.mixCell(float64(x)-chromaPx, y, 2, eased)

			i := rowOffset + x*4
			if feedbackAmt > 0 {
				r = r*(1-feedbackAmt) + float64(e.feedback[i])/255*feedbackAmt
				g = g*(1-feedbackAmt) + float64(e.feedback[i+1])/255*feedbackAmt
				b = b*(1-feedbackAmt) + float64(e.feedback[i+2])/255*feedbackAmt
			}

			if noiseAmt > 0 {
				n := (hash2(float64(x), float64(y)+float64(now.UnixNano()%1000)) - 0.5) * noiseAmt
				r += n
				g += n
				b += n
			}

			luma := 0.299*r + 0.587*g + 0.114*b
			pal := e.cfg.Palette[lumaBucket(luma)]
			r = mix(r, float64(pal.R)/255, paletteInfluence)
			g = mix(g, float64(pal.G)/255, paletteInfluence)
			b = mix(b, float64(pal.B)/255, paletteInfluence)

			if bloom > 0 {
				mask := smoothstep(clamp01f((luma - bloomLumaKnee) / (1 - bloomLumaKnee)))
				r += r * mask * bloom
				g += g * mask * bloom
				b += b * mask * bloom
			}

			e.fb[i] = toByte(r)
			e.fb[i+1] = toByte(g)
			e.fb[i+2] = toByte(b)
			e.fb[i+3] = 0xff
		}
	}

	copy(e.feedback, e.fb)
	e.trans.hasFrame = true
}

// mixCell cross-fades one channel between the current and target cell at the
// given output position.
func (e *Enhanced) mixCell(x float64, y int, ch int, eased float64) float64 {
	if e.src == nil {
		return 0
	}
	cur := e.sampleCell(e.trans.current, x, y, ch)
	if eased >= 1 {
		return e.sampleCell(e.trans.target, x, y, ch)
	}
	tgt := e.sampleCell(e.trans.target, x, y, ch)
	return mix(cur, tgt, eased)
}

func (e *Enhanced) sampleCell(c cellRef, x float64, y int, ch int) float64 {
	cellW := e.src.Width / e.cfg.GridSize
	cellH := e.src.Height / e.cfg.GridSize
	if cellW <= 0 || cellH <= 0 {
		return 0
	}
	srcX := c.col*cellW + int(x*float64(cellW)/float64(e.cfg.Width))
	srcY := c.row*cellH + y*cellH/e.cfg.Height
	r, g, b, _ := e.src.at(srcX, srcY)
	switch ch {
	case 0:
		return float64(r) / 255
	case 1:
		return float64(g) / 255
	default:
		return float64(b) / 255
	}
}

func lumaBucket(luma float64) int {
	b := int(luma * 4)
	if b < 0 {
		return 0
	}
	if b > 3 {
		return 3
	}
	return b
}

// hash2 is the cheap grid noise used for per-pixel perturbation.
func hash2(x, y float64) float64 {
	v := math.Sin(x*127.1+y*311.7) * 43758.5453123
	return v - math.Floor(v)
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

func mix(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func clamp01f(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return byte(v*255 + 0.5)
}

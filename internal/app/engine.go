package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"
	"golang.org/x/term"

	"github.com/emaruz/gridpulse/internal/audio"
	"github.com/emaruz/gridpulse/internal/beat"
	"github.com/emaruz/gridpulse/internal/compositor"
	"github.com/emaruz/gridpulse/internal/config"
	"github.com/emaruz/gridpulse/internal/render"
	"github.com/emaruz/gridpulse/internal/sequence"
	"github.com/emaruz/gridpulse/internal/spectrum"
	"github.com/emaruz/gridpulse/internal/web"
)

// idleAdvanceFrames paces the sequencer when no onset fires for a while, so
// the traversal keeps moving through quiet material.
const idleAdvanceFrames = 90

type inputEvent int

const (
	inputEventQuit inputEvent = iota
	inputEventShuffleOrder
	inputEventToggleStatic
)

// Options carries everything the engine needs beyond the file config.
type Options struct {
	Config      *config.Config
	Log         *log.Logger
	ProfilePath string
}

// Engine owns the analysis, detection, sequencing and compositing chain and
// runs it once per display-refresh tick on a single goroutine.
type Engine struct {
	cfg *config.Config
	log *log.Logger

	analyzer  *spectrum.Analyzer
	detector  *beat.Detector
	sequencer *sequence.Sequencer
	comp      compositor.Compositor
	enhanced  *compositor.Enhanced // nil when running the faithful fallback
	window    *render.Window
	webServer *web.Server
	capture   *audio.Capture
	kickSub   *beat.Subscription
	profiler  *profiler

	inputEvents chan inputEvent
	last        time.Time
	fps         float64
	static      bool
	frameCount  int
	sinceBeat   int
	advance     bool
	bandNames   [6]string
	bands       map[string]float64
}

// New wires the full chain from configuration. Audio and window resources
// are acquired here; Close releases them.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Log
	if logger == nil {
		logger = log.New(os.Stderr, "[gridpulse] ", log.LstdFlags)
	}

	analyzer, err := spectrum.New(spectrum.Config{
		FFTSize:   cfg.Audio.FFTSize,
		Smoothing: cfg.Audio.Smoothing,
	})
	if err != nil {
		return nil, fmt.Errorf("spectrum analyzer: %w", err)
	}

	detector := beat.New(beat.Config{
		KickFloor:       cfg.Beat.KickThreshold,
		SnareFloor:      cfg.Beat.SnareThreshold,
		MinBeatInterval: cfg.MinBeatInterval(),
		Logger:          logger,
	})
	detector.SetAnalyzer(analyzer)

	sequencer, err := sequence.New(sequence.Config{
		GridSize:    cfg.Grid.Size,
		TotalFrames: cfg.Grid.TotalFrames,
		Order:       sequence.ParseOrder(cfg.Grid.Order),
		LoopMode:    sequence.ParseLoopMode(cfg.Grid.LoopMode),
	})
	if err != nil {
		return nil, fmt.Errorf("frame sequencer: %w", err)
	}

	window, err := render.NewWindow(render.Config{
		Title:  "gridpulse",
		Width:  cfg.Render.Width,
		Height: cfg.Render.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("render window: %w", err)
	}

	palette, err := cfg.PaletteColors()
	if err != nil {
		window.Close()
		return nil, err
	}
	comp, enhanced, err := buildCompositor(cfg, palette, logger)
	if err != nil {
		window.Close()
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		log:       logger,
		analyzer:  analyzer,
		detector:  detector,
		sequencer: sequencer,
		comp:      comp,
		enhanced:  enhanced,
		window:    window,
		static:    cfg.Render.Static,
		profiler:  newProfiler(opts.ProfilePath, logger),
		bands:     make(map[string]float64, 6),
	}
	for b := spectrum.Band(0); b < 6; b++ {
		e.bandNames[b] = b.String()
	}
	window.OnResize(func(w, h int) {
		e.comp.Resize(w, h)
	})

	if cfg.Image != "" {
		if err := e.loadImage(cfg.Image); err != nil {
			e.Close()
			return nil, err
		}
	}

	if err := e.attachAudio(); err != nil {
		e.Close()
		return nil, err
	}

	e.kickSub = detector.OnKick(func(beat.State) {
		e.advance = true
	})

	if cfg.Web.Enabled {
		e.webServer = web.NewServer(logger)
		e.webServer.Start(cfg.Web.Port)
	}

	e.last = time.Now()
	return e, nil
}

// buildCompositor prefers the enhanced implementation and substitutes the
// faithful one when render resources are unavailable.
func buildCompositor(cfg *config.Config, palette [4]color.RGBA, logger *log.Logger) (compositor.Compositor, *compositor.Enhanced, error) {
	ccfg := compositor.Config{
		GridSize:            cfg.Grid.Size,
		Width:               cfg.Render.Width,
		Height:              cfg.Render.Height,
		TransitionDuration:  cfg.TransitionDuration(),
		ChromaticAberration: cfg.Visual.ChromaticAberration,
		FeedbackAmount:      cfg.Visual.FeedbackAmount,
		NoiseAmount:         cfg.Visual.NoiseAmount,
		BloomStrength:       cfg.Visual.BloomStrength,
		Palette:             palette,
		Accelerated:         render.Supported(),
	}

	kind := cfg.Render.Compositor
	if kind == "" {
		kind = compositor.TypeEnhanced
	}
	comp, err := compositor.New(kind, ccfg)
	var resErr *compositor.ResourceError
	if errors.As(err, &resErr) {
		logger.Printf("enhanced compositor unavailable (%v), falling back to faithful", resErr)
		comp, err = compositor.NewBlit(ccfg)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("compositor: %w", err)
	}
	enhanced, _ := comp.(*compositor.Enhanced)
	return comp, enhanced, nil
}

func (e *Engine) loadImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open source bitmap: %w", err)
	}
	defer f.Close()
	bmp, err := compositor.Decode(f)
	if err != nil {
		return err
	}
	e.comp.SetImage(bmp)
	e.log.Printf("source bitmap %s (%dx%d, %d cells)",
		path, bmp.Width, bmp.Height, e.cfg.Grid.Size*e.cfg.Grid.Size)
	return nil
}

func (e *Engine) attachAudio() error {
	if e.cfg.Audio.Disabled {
		synth := audio.NewSynth(44_100, e.cfg.Audio.BufferSize)
		e.analyzer.Connect(synth)
		e.log.Println("audio disabled, using synthetic source")
		return nil
	}
	capture, err := audio.NewCapture(audio.CaptureConfig{
		DeviceName: e.cfg.Audio.Device,
		RingSize:   e.cfg.Audio.BufferSize,
		Channels:   2,
	})
	if err != nil {
		return fmt.Errorf("audio capture: %w", err)
	}
	e.capture = capture
	e.analyzer.Connect(capture)
	e.log.Printf("audio capture on %q @ %.0f Hz", capture.DeviceName(), capture.SampleRate())
	return nil
}

// Run drives the loop until context cancellation, window close or quit key.
func (e *Engine) Run(ctx context.Context) error {
	frameDuration := time.Duration(float64(time.Second) / e.cfg.Render.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	e.startInputListener(inputCtx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-e.inputEvents:
			if !ok {
				e.inputEvents = nil
				continue
			}
			switch evt {
			case inputEventQuit:
				return nil
			case inputEventShuffleOrder:
				e.sequencer.SetOrder(sequence.OrderRandom)
				e.log.Println("traversal order -> random")
			case inputEventToggleStatic:
				e.static = !e.static
			}
		case <-ticker.C:
			if err := e.Step(); err != nil {
				if errors.Is(err, render.ErrWindowClosed) {
					return nil
				}
				return err
			}
		}
	}
}

// Step runs one analysis+render cycle. Exported so the loop stays testable
// without a ticker.
func (e *Engine) Step() error {
	e.profiler.beginFrame()

	now := time.Now()
	if delta := now.Sub(e.last).Seconds(); delta > 0 {
		e.fps = 1 / delta
	}
	e.last = now

	snap := e.analyzer.Update()
	e.profiler.markSection("analyze")

	state := e.detector.Update()
	e.profiler.markSection("detect")

	e.pace()
	cell := e.sequencer.Current()

	if e.enhanced != nil {
		e.enhanced.SetModulation(compositor.Modulation{
			Energy:  snap.Energy,
			Mid:     snap.Levels[spectrum.BandMid],
			Treble:  snap.Levels[spectrum.BandTreble],
			KickHit: state.KickHit,
			BeatHit: state.BeatHit,
		})
	}
	if e.static {
		e.comp.RenderStatic()
	} else {
		e.comp.Render(cell.Col, cell.Row)
	}
	e.profiler.markSection("composite")

	w, h := e.comp.Size()
	err := e.window.Present(e.comp.Framebuffer(), w, h)
	e.profiler.markSection("present")

	e.publish(snap, state, cell)
	e.frameCount++
	if e.frameCount%30 == 0 {
		line := e.statusLine(state)
		e.window.SetTitle(line)
		e.printStatus(line)
	}
	e.profiler.endFrame()
	return err
}

// pace advances the sequencer on each detected kick, with a timer fallback
// so quiet material still moves.
func (e *Engine) pace() {
	if e.static {
		return
	}
	e.sinceBeat++
	if e.advance || e.sinceBeat >= idleAdvanceFrames {
		e.sequencer.Advance()
		e.advance = false
		e.sinceBeat = 0
	}
}

func (e *Engine) publish(snap spectrum.Snapshot, state beat.State, cell sequence.Cell) {
	if e.webServer == nil {
		return
	}
	for i, name := range e.bandNames {
		e.bands[name] = snap.Levels[i]
	}
	e.webServer.Publish(web.Status{
		FPS:           e.fps,
		Bands:         e.bands,
		Energy:        snap.Energy,
		AverageEnergy: snap.AverageEnergy,
		Beat:          state,
		Cell:          cell,
		Compositor:    e.comp.Type(),
	})
}

func (e *Engine) statusLine(state beat.State) string {
	return fmt.Sprintf("gridpulse | fps=%.0f bpm=%.0f frame=%d order=%s",
		e.fps, state.BPM, e.sequencer.Frame(), e.sequencer.Order())
}

// printStatus overwrites a single terminal line with the current status,
// sized to the terminal width.
func (e *Engine) printStatus(line string) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return
	}
	fmt.Print("\r" + statusBar(line, w))
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}

// Close releases audio, compositor and window resources. Idempotent.
func (e *Engine) Close() error {
	if e.kickSub != nil {
		e.kickSub.Unsubscribe()
		e.kickSub = nil
	}
	var first error
	if e.webServer != nil {
		if err := e.webServer.Stop(); err != nil {
			first = err
		}
		e.webServer = nil
	}
	if e.capture != nil {
		if err := e.capture.Close(); err != nil {
			first = err
		}
		e.capture = nil
	}
	e.analyzer.Dispose()
	e.comp.Dispose()
	if err := e.window.Close(); err != nil && first == nil {
		first = err
	}
	e.profiler.Close()
	return first
}

func (e *Engine) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		e.log.Printf("keyboard input disabled: %v", err)
		e.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	e.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			switch {
			case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC:
				events <- inputEventQuit
				return
			case char == 'q' || char == 'Q':
				events <- inputEventQuit
				return
			case char == 'r' || char == 'R':
				select {
				case events <- inputEventShuffleOrder:
				default:
				}
			case char == 's' || char == 'S':
				select {
				case events <- inputEventToggleStatic:
				default:
				}
			}
		}
	}()
}

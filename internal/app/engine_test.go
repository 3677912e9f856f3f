package app

import (
	"io"
	"log"
	"testing"

	"github.com/emaruz/gridpulse/internal/config"
)

func testOptions() Options {
	cfg := config.Default()
	cfg.Audio.Disabled = true
	cfg.Render.Width = 32
	cfg.Render.Height = 32
	cfg.Grid.Size = 4
	cfg.Grid.TotalFrames = 16
	return Options{
		Config: cfg,
		Log:    log.New(io.Discard, "", 0),
	}
}

func TestNewWiresFullChain(t *testing.T) {
	e, err := New(testOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if !e.analyzer.Connected() {
		t.Fatal("analyzer not connected to synthetic source")
	}
	// Without the SDL build tag acceleration is absent, so the engine must
	// have substituted the faithful compositor.
	if e.comp.Type() != "faithful" {
		t.Fatalf("compositor=%q want faithful fallback", e.comp.Type())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	opts := testOptions()
	opts.Config.Grid.Size = 0
	if _, err := New(opts); err == nil {
		t.Fatal("expected construction error for zero grid size")
	}
}

func TestStepAdvancesWithoutError(t *testing.T) {
	e, err := New(testOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	for i := 0; i < 5; i++ {
		if err := e.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	fb := e.comp.Framebuffer()
	if len(fb) != 32*32*4 {
		t.Fatalf("framebuffer length=%d", len(fb))
	}
}

func TestIdlePacingAdvancesEventually(t *testing.T) {
	e, err := New(testOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	start := e.sequencer.Frame()
	for i := 0; i < idleAdvanceFrames+1; i++ {
		e.pace()
	}
	if e.sequencer.Frame() == start {
		t.Fatal("idle pacing never advanced the sequencer")
	}
}

func TestStaticModeFreezesSequencer(t *testing.T) {
	e, err := New(testOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.static = true
	before := e.sequencer.Frame()
	for i := 0; i < 200; i++ {
		e.pace()
	}
	if e.sequencer.Frame() != before {
		t.Fatal("static mode advanced the sequencer")
	}
}

func TestStatusBarSizesToWidth(t *testing.T) {
	cases := []struct {
		text  string
		width int
		want  string
	}{
		{"fps=60", 10, "fps=60    "},
		{"fps=60 bpm=124", 6, "fps=60"},
		{"fps=60", 0, "fps=60"},
		{"", 3, "   "},
	}
	for _, c := range cases {
		if got := statusBar(c.text, c.width); got != c.want {
			t.Fatalf("statusBar(%q, %d)=%q want %q", c.text, c.width, got, c.want)
		}
	}
}

func TestCloseStopsWebServer(t *testing.T) {
	opts := testOptions()
	opts.Config.Web.Enabled = true
	opts.Config.Web.Port = 0
	e, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	if e.webServer == nil {
		t.Fatal("web server not started")
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if e.webServer != nil {
		t.Fatal("web server handle not cleared on close")
	}
}

func TestCloseIsIdempotentEnough(t *testing.T) {
	e, err := New(testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

package compositor

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"
)

// gridBitmap builds a gridSize x gridSize checker where every cell is filled
// with a unique solid color.
func gridBitmap(gridSize, cellW, cellH int) *Bitmap {
	img := image.NewRGBA(image.Rect(0, 0, gridSize*cellW, gridSize*cellH))
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			c := color.RGBA{R: byte(40 * col), G: byte(40 * row), B: 128, A: 255}
			for y := row * cellH; y < (row+1)*cellH; y++ {
				for x := col * cellW; x < (col+1)*cellW; x++ {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
	return FromImage(img)
}

func testConfig() Config {
	return Config{
		GridSize:    4,
		Width:       16,
		Height:      16,
		Accelerated: true,
	}
}

func TestFactorySelectsImplementations(t *testing.T) {
	c, err := New(TypeFaithful, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if c.Type() != TypeFaithful {
		t.Fatalf("type=%q want faithful", c.Type())
	}
	c, err = New(TypeEnhanced, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if c.Type() != TypeEnhanced {
		t.Fatalf("type=%q want enhanced", c.Type())
	}
	if _, err := New("bogus", testConfig()); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestEnhancedRequiresAcceleration(t *testing.T) {
	cfg := testConfig()
	cfg.Accelerated = false
	_, err := NewEnhanced(cfg)
	var resErr *ResourceError
	if !errors.As(err, &resErr) {
		t.Fatalf("err=%v want *ResourceError", err)
	}
}

func TestConfigValidation(t *testing.T) {
	for _, cfg := range []Config{
		{GridSize: 0, Width: 16, Height: 16},
		{GridSize: 4, Width: 0, Height: 16},
		{GridSize: 4, Width: 16, Height: -1},
	} {
		if _, err := NewBlit(cfg); err == nil {
			t.Fatalf("expected construction error for %+v", cfg)
		}
	}
}

func TestBlitCopiesExactCell(t *testing.T) {
	b, err := NewBlit(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	b.SetImage(gridBitmap(4, 8, 8))

	check := func(col, row int) {
		b.Render(col, row)
		fb := b.Framebuffer()
		wantR, wantG := byte(40*col), byte(40*row)
		for i := 0; i < len(fb); i += 4 {
			if fb[i] != wantR || fb[i+1] != wantG || fb[i+2] != 128 {
				t.Fatalf("cell (%d,%d) pixel %d = (%d,%d,%d) want (%d,%d,128)",
					col, row, i/4, fb[i], fb[i+1], fb[i+2], wantR, wantG)
			}
		}
	}

	check(1, 2)
	check(3, 0)
	check(1, 2) // stateless: identical regardless of call history
}

func TestBlitClampsCoordinates(t *testing.T) {
	b, err := NewBlit(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	b.SetImage(gridBitmap(4, 8, 8))
	b.Render(99, -5)
	fb := b.Framebuffer()
	if fb[0] != byte(40*3) || fb[1] != 0 {
		t.Fatalf("clamped render got (%d,%d) want (%d,0)", fb[0], fb[1], 40*3)
	}
}

func TestBlitWithoutImageRendersBlack(t *testing.T) {
	b, err := NewBlit(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	b.Render(0, 0)
	fb := b.Framebuffer()
	for i := 0; i < len(fb); i += 4 {
		if fb[i] != 0 || fb[i+1] != 0 || fb[i+2] != 0 || fb[i+3] != 0xff {
			t.Fatalf("pixel %d not opaque black", i/4)
		}
	}
}

func newTestEnhanced(t *testing.T) (*Enhanced, *time.Time) {
	t.Helper()
	cfg := testConfig()
	cfg.TransitionDuration = 80 * time.Millisecond
	e, err := NewEnhanced(cfg)
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Unix(100, 0)
	e.now = func() time.Time { return clock }
	e.SetImage(gridBitmap(4, 8, 8))
	return e, &clock
}

func TestEnhancedSameCellDoesNotRestartTransition(t *testing.T) {
	e, clock := newTestEnhanced(t)

	e.Render(1, 1)
	*clock = clock.Add(200 * time.Millisecond)
	e.Render(1, 1)
	if got := e.Progress(); got != 1 {
		t.Fatalf("progress=%f after settling, want 1", got)
	}
	started := e.trans.started
	e.Render(1, 1)
	if e.trans.started != started {
		t.Fatal("repeated request restarted the transition")
	}
}

func TestEnhancedNewCellResetsProgressAndShiftsTarget(t *testing.T) {
	e, clock := newTestEnhanced(t)

	e.Render(1, 1)
	*clock = clock.Add(200 * time.Millisecond)
	e.Render(3, 2)
	if got := e.Progress(); got != 0 {
		t.Fatalf("progress=%f right after coordinate change, want 0", got)
	}
	if e.trans.current != (cellRef{1, 1}) {
		t.Fatalf("current=%+v want previous target (1,1)", e.trans.current)
	}
	if e.trans.target != (cellRef{3, 2}) {
		t.Fatalf("target=%+v want (3,2)", e.trans.target)
	}
}

func TestEnhancedTransitionConverges(t *testing.T) {
	e, clock := newTestEnhanced(t)

	e.Render(0, 0)
	*clock = clock.Add(time.Second)
	e.Render(0, 0)
	before := make([]byte, len(e.Framebuffer()))
	copy(before, e.Framebuffer())

	e.Render(3, 3)
	*clock = clock.Add(time.Second)
	e.Render(3, 3)

	same := true
	for i, v := range e.Framebuffer() {
		if before[i] != v {
			same = false
			break
		}
	}
	if same {
		t.Fatal("settled transition produced identical frame for a different cell")
	}
}

func TestEnhancedFeedbackLeavesTrail(t *testing.T) {
	cfg := testConfig()
	cfg.FeedbackAmount = 0.9
	e, err := NewEnhanced(cfg)
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Unix(100, 0)
	e.now = func() time.Time { return clock }
	e.SetImage(gridBitmap(4, 8, 8))

	e.Render(0, 0)
	clock = clock.Add(time.Second)
	e.Render(0, 0) // settle on a dark cell
	dark := e.Framebuffer()[0]

	e.Render(3, 3)
	clock = clock.Add(time.Second)
	e.Render(3, 3)
	withTrail := e.Framebuffer()[0]

	want := byte(40 * 3)
	if withTrail >= want {
		t.Fatalf("red=%d with heavy feedback, expected ghosting below %d (dark frame was %d)",
			withTrail, want, dark)
	}
}

func TestEnhancedResizeReallocatesTargets(t *testing.T) {
	e, _ := newTestEnhanced(t)
	e.Resize(32, 24)
	if w, h := e.Size(); w != 32 || h != 24 {
		t.Fatalf("size=%dx%d want 32x24", w, h)
	}
	if len(e.Framebuffer()) != 32*24*4 {
		t.Fatalf("framebuffer length=%d want %d", len(e.Framebuffer()), 32*24*4)
	}
	e.Render(2, 2) // must not panic against the new buffers
}

func TestDisposeIsIdempotent(t *testing.T) {
	e, _ := newTestEnhanced(t)
	e.Dispose()
	e.Dispose()
	e.Render(1, 1) // no-op, must not panic

	b, err := NewBlit(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	b.Dispose()
	b.Dispose()
	b.Render(1, 1)
}

func TestRenderStaticUsesCenterCell(t *testing.T) {
	b, err := NewBlit(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	b.SetImage(gridBitmap(4, 8, 8))
	b.RenderStatic()
	fb := b.Framebuffer()
	if fb[0] != byte(40*2) || fb[1] != byte(40*2) {
		t.Fatalf("static render got (%d,%d) want center cell (2,2)", fb[0], fb[1])
	}
}

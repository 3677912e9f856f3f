package sequence

import (
	"math/rand"
	"testing"
)

func mustNew(t *testing.T, cfg Config) *Sequencer {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewRejectsZeroSizes(t *testing.T) {
	if _, err := New(Config{GridSize: 0, TotalFrames: 10}); err == nil {
		t.Fatal("expected error for zero grid size")
	}
	if _, err := New(Config{GridSize: 4, TotalFrames: 0}); err == nil {
		t.Fatal("expected error for zero frame count")
	}
}

func TestSequentialRaster(t *testing.T) {
	s := mustNew(t, Config{GridSize: 4, TotalFrames: 16})
	for frame := 0; frame < 16; frame++ {
		c := s.Current()
		if c.Col != frame%4 || c.Row != frame/4 {
			t.Fatalf("frame %d: got (%d,%d) want (%d,%d)", frame, c.Col, c.Row, frame%4, frame/4)
		}
		s.Advance()
	}
}

func TestLoopWrapsAfterExactlyTotalFrames(t *testing.T) {
	s := mustNew(t, Config{GridSize: 21, TotalFrames: 410, LoopMode: LoopWrap})
	for i := 0; i < 410; i++ {
		s.Advance()
	}
	if got := s.Current().Frame; got != 0 {
		t.Fatalf("frame=%d after full wrap, want 0", got)
	}
}

func TestOnceClampsAndCompletes(t *testing.T) {
	s := mustNew(t, Config{GridSize: 3, TotalFrames: 5, LoopMode: LoopOnce})
	for i := 0; i < 10; i++ {
		s.Advance()
	}
	if !s.IsComplete() {
		t.Fatal("expected completion")
	}
	last := s.Current()
	if last.Frame != 4 {
		t.Fatalf("frame=%d want 4", last.Frame)
	}
	if got := s.Advance(); got != last {
		t.Fatalf("advance after completion moved to %+v", got)
	}
	s.Reset()
	if s.IsComplete() || s.Current().Frame != 0 {
		t.Fatal("reset did not clear completion")
	}
}

func TestBounceReversesWithoutRepeatingEdge(t *testing.T) {
	s := mustNew(t, Config{GridSize: 3, TotalFrames: 4, LoopMode: LoopBounce})
	want := []int{1, 2, 3, 2, 1, 0, 1, 2, 3, 2}
	for i, w := range want {
		if got := s.Advance().Frame; got != w {
			t.Fatalf("step %d: frame=%d want=%d", i, got, w)
		}
	}
}

func TestSeekToClamps(t *testing.T) {
	s := mustNew(t, Config{GridSize: 3, TotalFrames: 9})
	if got := s.SeekTo(100).Frame; got != 8 {
		t.Fatalf("seek past end landed on %d", got)
	}
	if got := s.SeekTo(-5).Frame; got != 0 {
		t.Fatalf("seek before start landed on %d", got)
	}
}

func TestTraversalsArePermutations(t *testing.T) {
	const gridSize = 7
	rng := rand.New(rand.NewSource(1))
	builders := map[string][]Cell{
		"spiral":   spiralCells(gridSize),
		"diagonal": diagonalCells(gridSize),
		"random":   shuffledCells(gridSize, rng),
	}
	for name, cells := range builders {
		if len(cells) != gridSize*gridSize {
			t.Fatalf("%s: %d cells, want %d", name, len(cells), gridSize*gridSize)
		}
		seen := make(map[[2]int]bool, len(cells))
		for _, c := range cells {
			if c.Col < 0 || c.Col >= gridSize || c.Row < 0 || c.Row >= gridSize {
				t.Fatalf("%s: cell (%d,%d) out of grid", name, c.Col, c.Row)
			}
			key := [2]int{c.Col, c.Row}
			if seen[key] {
				t.Fatalf("%s: cell (%d,%d) visited twice", name, c.Col, c.Row)
			}
			seen[key] = true
		}
	}
}

func TestShortTableIsCyclicallyPadded(t *testing.T) {
	s := mustNew(t, Config{GridSize: 2, TotalFrames: 11, Order: OrderSpiral})
	if len(s.table) != 11 {
		t.Fatalf("table length=%d want 11", len(s.table))
	}
	for i, c := range s.table {
		base := s.table[i%4]
		if c.Col != base.Col || c.Row != base.Row {
			t.Fatalf("entry %d not a cyclic repeat: %+v vs %+v", i, c, base)
		}
		if c.Frame != i {
			t.Fatalf("entry %d carries frame %d", i, c.Frame)
		}
	}
}

func TestSetOrderRebuildsTable(t *testing.T) {
	s := mustNew(t, Config{GridSize: 4, TotalFrames: 16, Order: OrderSpiral})
	if s.table == nil {
		t.Fatal("spiral order should tabulate")
	}
	s.SetOrder(OrderSequential)
	if s.table != nil {
		t.Fatal("sequential order should drop the table")
	}
	c := s.SeekTo(5)
	if c.Col != 1 || c.Row != 1 {
		t.Fatalf("frame 5 -> (%d,%d) want (1,1)", c.Col, c.Row)
	}
}

func TestSpiralStartsOnOuterRing(t *testing.T) {
	cells := spiralCells(5)
	for i := 0; i < 5; i++ {
		if cells[i].Row != 0 || cells[i].Col != i {
			t.Fatalf("spiral entry %d = (%d,%d), want top row left to right",
				i, cells[i].Col, cells[i].Row)
		}
	}
	center := cells[len(cells)-1]
	if center.Col != 2 || center.Row != 2 {
		t.Fatalf("spiral ends at (%d,%d), want center (2,2)", center.Col, center.Row)
	}
}

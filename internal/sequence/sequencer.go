package sequence

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Order selects the algorithm mapping step index to grid coordinate.
type Order string

const (
	OrderSequential Order = "sequential"
	OrderSpiral     Order = "spiral"
	OrderDiagonal   Order = "diagonal"
	OrderRandom     Order = "random"
)

// ParseOrder normalizes an order name, defaulting to sequential.
func ParseOrder(name string) Order {
	switch strings.ToLower(name) {
	case "spiral":
		return OrderSpiral
	case "diagonal":
		return OrderDiagonal
	case "random", "shuffle":
		return OrderRandom
	default:
		return OrderSequential
	}
}

// OrderNames returns the supported traversal orders.
func OrderNames() []string {
	return []string{
		string(OrderSequential),
		string(OrderSpiral),
		string(OrderDiagonal),
		string(OrderRandom),
	}
}

// LoopMode selects the boundary policy when the step counter runs past the
// last frame.
type LoopMode string

const (
	LoopWrap   LoopMode = "loop"
	LoopBounce LoopMode = "bounce"
	LoopOnce   LoopMode = "once"
)

// ParseLoopMode normalizes a loop mode name, defaulting to loop.
func ParseLoopMode(name string) LoopMode {
	switch strings.ToLower(name) {
	case "bounce", "pingpong":
		return LoopBounce
	case "once", "clamp":
		return LoopOnce
	default:
		return LoopWrap
	}
}

// Config constructs a Sequencer.
type Config struct {
	GridSize    int
	TotalFrames int
	Order       Order
	LoopMode    LoopMode
	Seed        int64 // random traversal seed, 0 picks a time-based one
}

// Sequencer is a pure state machine mapping a monotonically advancing step
// counter to a grid coordinate. It never touches audio state.
type Sequencer struct {
	gridSize    int
	totalFrames int
	order       Order
	loopMode    LoopMode

	frame     int
	direction int
	complete  bool

	table []Cell // nil for sequential, which is computed analytically
	rng   *rand.Rand
}

// New validates the configuration and builds the traversal table when the
// order needs one.
func New(cfg Config) (*Sequencer, error) {
	if cfg.GridSize <= 0 {
		return nil, fmt.Errorf("grid size must be positive, got %d", cfg.GridSize)
	}
	if cfg.TotalFrames <= 0 {
		return nil, fmt.Errorf("total frames must be positive, got %d", cfg.TotalFrames)
	}
	if cfg.Order == "" {
		cfg.Order = OrderSequential
	}
	if cfg.LoopMode == "" {
		cfg.LoopMode = LoopWrap
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Sequencer{
		gridSize:    cfg.GridSize,
		totalFrames: cfg.TotalFrames,
		order:       cfg.Order,
		loopMode:    cfg.LoopMode,
		direction:   1,
		rng:         rand.New(rand.NewSource(seed)),
	}
	s.table = buildTable(s.order, s.gridSize, s.totalFrames, s.rng)
	return s, nil
}

// Current returns the coordinate for the present frame index.
func (s *Sequencer) Current() Cell {
	return s.cellAt(s.frame)
}

// Frame returns the present frame index.
func (s *Sequencer) Frame() int { return s.frame }

// Order returns the active traversal order.
func (s *Sequencer) Order() Order { return s.order }

// IsComplete reports whether a once-mode sequence has reached its end.
func (s *Sequencer) IsComplete() bool { return s.complete }

// Advance steps the frame index by the current direction and returns the new
// coordinate. Once a once-mode sequence completes it is a no-op until Reset
// or SeekTo.
func (s *Sequencer) Advance() Cell {
	if s.complete {
		return s.Current()
	}

	next := s.frame + s.direction

	if next >= s.totalFrames {
		switch s.loopMode {
		case LoopBounce:
			s.direction = -1
			next = s.totalFrames - 2
			if next < 0 {
				next = 0
			}
		case LoopOnce:
			s.frame = s.totalFrames - 1
			s.complete = true
			return s.Current()
		default:
			next = 0
		}
	} else if next < 0 {
		// Only bounce mode ever drives the index negative.
		s.direction = 1
		next = 1
		if next >= s.totalFrames {
			next = s.totalFrames - 1
		}
	}

	s.frame = next
	return s.Current()
}

// Reset returns to frame 0 moving forward and clears completion.
func (s *Sequencer) Reset() {
	s.frame = 0
	s.direction = 1
	s.complete = false
}

// SeekTo clamps the requested frame into range and jumps to it.
func (s *Sequencer) SeekTo(frame int) Cell {
	if frame < 0 {
		frame = 0
	}
	if frame >= s.totalFrames {
		frame = s.totalFrames - 1
	}
	s.frame = frame
	s.complete = false
	return s.Current()
}

// SetOrder rebuilds the traversal table for the new order. Sequential drops
// the table entirely.
func (s *Sequencer) SetOrder(order Order) {
	s.order = order
	s.table = buildTable(order, s.gridSize, s.totalFrames, s.rng)
}

func (s *Sequencer) cellAt(frame int) Cell {
	if s.table != nil {
		return s.table[frame]
	}
	step := frame % (s.gridSize * s.gridSize)
	return Cell{
		Col:   step % s.gridSize,
		Row:   step / s.gridSize,
		Frame: frame,
	}
}

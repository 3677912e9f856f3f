package audio

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Synth is a deterministic stand-in for live capture: a four-on-the-floor
// kick with an offbeat hat, good enough to exercise the full analysis and
// detection chain without a microphone.
type Synth struct {
	rate float64
	bpm  float64

	mu     sync.Mutex
	window []float32
	phase  float64
	rng    *rand.Rand
	last   time.Time
}

// NewSynth creates a synthetic source at the given sample rate.
func NewSynth(sampleRate float64, windowSize int) *Synth {
	if sampleRate <= 0 {
		sampleRate = 44_100
	}
	if windowSize <= 0 {
		windowSize = defaultRingSize
	}
	return &Synth{
		rate:   sampleRate,
		bpm:    124,
		window: make([]float32, windowSize),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		last:   time.Now(),
	}
}

// SampleRate returns the synthetic stream rate.
func (s *Synth) SampleRate() float64 { return s.rate }

// Samples advances the pattern by wall-clock time and returns the current
// window.
func (s *Synth) Samples() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(s.last).Seconds()
	s.last = now
	if elapsed > 0.25 {
		elapsed = 0.25
	}
	s.phase += elapsed

	beatLen := 60 / s.bpm
	step := 1 / s.rate
	start := s.phase - float64(len(s.window))*step
	for i := range s.window {
		t := start + float64(i)*step
		beatPos := math.Mod(t, beatLen) / beatLen
		if beatPos < 0 {
			beatPos += 1
		}

		// Kick: decaying 55 Hz sine burst at every beat start.
		kick := math.Exp(-beatPos*18) * math.Sin(2*math.Pi*55*beatPos*beatLen)

		// Hat: short noise burst on the offbeat.
		hat := 0.0
		if beatPos > 0.5 {
			hat = math.Exp(-(beatPos-0.5)*40) * (s.rng.Float64()*2 - 1) * 0.3
		}

		s.window[i] = float32(kick*0.8 + hat)
	}
	return s.window
}

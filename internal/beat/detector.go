package beat

import (
	"log"
	"time"

	"github.com/emaruz/gridpulse/internal/spectrum"
)

const (
	defaultHistorySize   = 43 // ~720 ms of frames at 60 Hz
	beatTimeCapacity     = 20
	minValidIntervalMs   = 200  // 300 BPM ceiling
	maxValidIntervalMs   = 2000 // 30 BPM floor
	minIntervalsForBPM   = 3    // four accepted timestamps
	hitEpsilon           = 1e-3
	defaultHitDecay      = 0.85
	defaultThresholdMult = 1.35
	defaultThresholdDec  = 0.95
)

// LevelSource is the readout contract the detector needs from the analyzer.
type LevelSource interface {
	Levels() [6]float64
}

// Config controls Detector behavior. Zero values fall back to defaults.
type Config struct {
	KickFloor       float64       // minimum kick threshold, default 0.1
	SnareFloor      float64       // minimum snare threshold, default 0.08
	ThresholdMult   float64       // adaptive threshold multiplier
	ThresholdDecay  float64       // adaptive threshold decay
	HitDecay        float64       // per-frame envelope decay
	MinBeatInterval time.Duration // refractory window, default 100 ms
	HistorySize     int
	Logger          *log.Logger
}

// State is the per-frame detector readout.
type State struct {
	KickHit  float64 `json:"kickHit"`
	SnareHit float64 `json:"snareHit"`
	BeatHit  float64 `json:"beatHit"`

	KickActive  bool `json:"kickActive"`
	SnareActive bool `json:"snareActive"`
	BeatActive  bool `json:"beatActive"`

	BPM float64 `json:"bpm"`

	SinceKick  time.Duration `json:"-"`
	SinceSnare time.Duration `json:"-"`
	SinceBeat  time.Duration `json:"-"`
}

// Detector performs adaptive onset detection for kick and snare composites
// and estimates tempo from accepted beat intervals. All methods must be
// called from the render-loop goroutine.
type Detector struct {
	cfg    Config
	source LevelSource

	kickHist  []float64
	snareHist []float64
	histIdx   int
	histLen   int

	kickThreshold  float64
	snareThreshold float64

	kickHit  float64
	snareHit float64
	beatHit  float64

	lastKick  time.Time
	lastSnare time.Time
	lastBeat  time.Time

	beatTimes []time.Time
	bpm       float64

	onKick  *dispatcher
	onSnare *dispatcher
	onBeat  *dispatcher

	now func() time.Time
}

// New creates a Detector with pre-allocated history rings.
func New(cfg Config) *Detector {
	if cfg.KickFloor <= 0 {
		cfg.KickFloor = 0.1
	}
	if cfg.SnareFloor <= 0 {
		cfg.SnareFloor = 0.08
	}
	if cfg.ThresholdMult <= 0 {
		cfg.ThresholdMult = defaultThresholdMult
	}
	if cfg.ThresholdDecay <= 0 || cfg.ThresholdDecay >= 1 {
		cfg.ThresholdDecay = defaultThresholdDec
	}
	if cfg.HitDecay <= 0 || cfg.HitDecay >= 1 {
		cfg.HitDecay = defaultHitDecay
	}
	if cfg.MinBeatInterval <= 0 {
		cfg.MinBeatInterval = 100 * time.Millisecond
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	return &Detector{
		cfg:            cfg,
		kickHist:       make([]float64, cfg.HistorySize),
		snareHist:      make([]float64, cfg.HistorySize),
		kickThreshold:  cfg.KickFloor,
		snareThreshold: cfg.SnareFloor,
		beatTimes:      make([]time.Time, 0, beatTimeCapacity),
		onKick:         newDispatcher("kick", cfg.Logger),
		onSnare:        newDispatcher("snare", cfg.Logger),
		onBeat:         newDispatcher("beat", cfg.Logger),
		now:            time.Now,
	}
}

// SetAnalyzer wires the band-level data source.
func (d *Detector) SetAnalyzer(src LevelSource) {
	d.source = src
}

// OnKick registers a kick listener and returns its subscription handle.
func (d *Detector) OnKick(fn func(State)) *Subscription { return d.onKick.subscribe(fn) }

// OnSnare registers a snare listener.
func (d *Detector) OnSnare(fn func(State)) *Subscription { return d.onSnare.subscribe(fn) }

// OnBeat registers a listener fired on either onset kind.
func (d *Detector) OnBeat(fn func(State)) *Subscription { return d.onBeat.subscribe(fn) }

// Update runs one detection step. Call once per render frame.
func (d *Detector) Update() State {
	now := d.now()

	var levels [6]float64
	if d.source != nil {
		levels = d.source.Levels()
	}

	kickEnergy := levels[spectrum.BandBass]*1.5 + levels[spectrum.BandSub]*0.5
	snareEnergy := levels[spectrum.BandMid]*1.2 +
		levels[spectrum.BandHighMid]*0.5 +
		levels[spectrum.BandTreble]*0.3

	d.kickHist[d.histIdx] = kickEnergy
	d.snareHist[d.histIdx] = snareEnergy
	d.histIdx = (d.histIdx + 1) % len(d.kickHist)
	if d.histLen < len(d.kickHist) {
		d.histLen++
	}

	d.kickThreshold = d.adapt(d.kickThreshold, d.kickHist, d.cfg.KickFloor)
	d.snareThreshold = d.adapt(d.snareThreshold, d.snareHist, d.cfg.SnareFloor)

	d.kickHit = decay(d.kickHit, d.cfg.HitDecay)
	d.snareHit = decay(d.snareHit, d.cfg.HitDecay)
	d.beatHit = decay(d.beatHit, d.cfg.HitDecay)

	kickFired := kickEnergy > d.kickThreshold &&
		(d.lastKick.IsZero() || now.Sub(d.lastKick) > d.cfg.MinBeatInterval)
	snareFired := snareEnergy > d.snareThreshold &&
		(d.lastSnare.IsZero() || now.Sub(d.lastSnare) > d.cfg.MinBeatInterval)

	if kickFired {
		d.kickHit = 1
		d.lastKick = now
	}
	if snareFired {
		d.snareHit = 1
		d.lastSnare = now
	}
	if kickFired || snareFired {
		d.beatHit = 1
		d.lastBeat = now
		d.recordBeat(now)
	}

	st := d.state(now, kickFired, snareFired)

	if kickFired {
		d.onKick.emit(st)
	}
	if snareFired {
		d.onSnare.emit(st)
	}
	if kickFired || snareFired {
		d.onBeat.emit(st)
	}
	return st
}

// GetState returns the current readout without running a detection step.
func (d *Detector) GetState() State {
	return d.state(d.now(), false, false)
}

// BPM returns the smoothed tempo estimate, 0 until enough intervals exist.
func (d *Detector) BPM() float64 {
	return d.bpm
}

func (d *Detector) state(now time.Time, kickFired, snareFired bool) State {
	return State{
		KickHit:     d.kickHit,
		SnareHit:    d.snareHit,
		BeatHit:     d.beatHit,
		KickActive:  kickFired,
		SnareActive: snareFired,
		BeatActive:  kickFired || snareFired,
		BPM:         d.bpm,
		SinceKick:   since(now, d.lastKick),
		SinceSnare:  since(now, d.lastSnare),
		SinceBeat:   since(now, d.lastBeat),
	}
}

// adapt blends the running threshold toward the history average, floored so
// silence cannot drag it into false-trigger territory.
func (d *Detector) adapt(threshold float64, hist []float64, floor float64) float64 {
	if d.histLen == 0 {
		return threshold
	}
	sum := 0.0
	for i := 0; i < d.histLen; i++ {
		sum += hist[i]
	}
	avg := sum / float64(d.histLen)
	next := threshold*d.cfg.ThresholdDecay + avg*d.cfg.ThresholdMult*(1-d.cfg.ThresholdDecay)
	if next < floor {
		next = floor
	}
	return next
}

func (d *Detector) recordBeat(now time.Time) {
	if len(d.beatTimes) == beatTimeCapacity {
		copy(d.beatTimes, d.beatTimes[1:])
		d.beatTimes = d.beatTimes[:beatTimeCapacity-1]
	}
	d.beatTimes = append(d.beatTimes, now)
	d.updateBPM()
}

func (d *Detector) updateBPM() {
	if len(d.beatTimes) < 2 {
		return
	}
	sum := 0.0
	valid := 0
	for i := 1; i < len(d.beatTimes); i++ {
		ms := float64(d.beatTimes[i].Sub(d.beatTimes[i-1])) / float64(time.Millisecond)
		if ms < minValidIntervalMs || ms > maxValidIntervalMs {
			continue
		}
		sum += ms
		valid++
	}
	if valid < minIntervalsForBPM {
		return
	}
	estimate := 60_000 / (sum / float64(valid))
	if d.bpm == 0 {
		d.bpm = estimate
		return
	}
	d.bpm = d.bpm*0.9 + estimate*0.1
}

func decay(hit, rate float64) float64 {
	hit *= rate
	if hit < hitEpsilon {
		return 0
	}
	return hit
}

func since(now, last time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	return now.Sub(last)
}

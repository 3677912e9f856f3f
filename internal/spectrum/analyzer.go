package spectrum

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Source is an audio producer the analyzer can tap. It is treated as opaque:
// only the latest sample window and the stream rate are required.
type Source interface {
	Samples() []float32
	SampleRate() float64
}

// Config controls Analyzer behavior.
type Config struct {
	FFTSize     int     // power of two, defaults to 2048
	Smoothing   float64 // 0..1, higher keeps more of the previous level
	HistorySize int     // moving-average window for AverageEnergy
}

// Snapshot is the per-frame readout. The slices alias analyzer-owned buffers
// and are overwritten on the next Update call; copy them if they must outlive
// the frame.
type Snapshot struct {
	FrequencyData []float64 `json:"-"`
	WaveformData  []float32 `json:"-"`
	Levels        [6]float64
	Energy        float64
	AverageEnergy float64
}

// Analyzer converts a connected audio stream into per-frame frequency and
// time-domain readouts plus six smoothed band levels.
type Analyzer struct {
	cfg        Config
	source     Source
	sampleRate float64

	buffer   []complex128
	window   []float64
	freqData []float64 // decibel magnitudes, -100..0
	waveform []float32

	bins   [bandCount][2]int
	levels [6]float64

	energy     float64
	energyHist []float64
	energyIdx  int
	energyLen  int
	dirty      bool
}

// New creates an Analyzer and allocates every per-frame buffer up front.
func New(cfg Config) (*Analyzer, error) {
	if cfg.FFTSize == 0 {
		cfg.FFTSize = 2048
	}
	if cfg.FFTSize < 32 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		return nil, fmt.Errorf("fft size must be a power of two >= 32, got %d", cfg.FFTSize)
	}
	if cfg.Smoothing <= 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = 0.8
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 60
	}

	a := &Analyzer{
		cfg:        cfg,
		buffer:     make([]complex128, cfg.FFTSize),
		window:     make([]float64, cfg.FFTSize),
		freqData:   make([]float64, cfg.FFTSize/2),
		waveform:   make([]float32, cfg.FFTSize),
		energyHist: make([]float64, cfg.HistorySize),
	}
	sizeF := float64(cfg.FFTSize)
	for i := range a.window {
		a.window[i] = hann(float64(i), sizeF)
	}
	for i := range a.freqData {
		a.freqData[i] = -100
	}
	a.mapBands(44_100)
	return a, nil
}

// Connect attaches an audio source and rebuilds the band-to-bin mapping for
// its sample rate. A nil source leaves the analyzer disconnected.
func (a *Analyzer) Connect(src Source) {
	a.source = src
	if src == nil {
		a.levels = [6]float64{}
		a.energy = 0
		return
	}
	if rate := src.SampleRate(); rate > 0 {
		a.sampleRate = rate
		a.mapBands(rate)
	}
}

// Connected reports whether an audio source is attached.
func (a *Analyzer) Connected() bool {
	return a.source != nil
}

// Update pulls fresh audio data and recomputes all readouts. Call once per
// render frame. Before Connect it returns an all-zero snapshot.
func (a *Analyzer) Update() Snapshot {
	if a.source == nil {
		return a.zeroSnapshot()
	}

	samples := a.source.Samples()
	n := len(a.waveform)
	if len(samples) >= n {
		copy(a.waveform, samples[len(samples)-n:])
	} else {
		for i := 0; i < n-len(samples); i++ {
			a.waveform[i] = 0
		}
		copy(a.waveform[n-len(samples):], samples)
	}

	for i := range a.buffer {
		a.buffer[i] = complex(float64(a.waveform[i])*a.window[i], 0)
	}
	res := fft.FFT(a.buffer)
	a.dirty = true

	scale := 2.0 / float64(n)
	for i := range a.freqData {
		mag := cmag(res[i]) * scale
		db := 20 * math.Log10(mag+1e-12)
		if db < -100 {
			db = -100
		} else if db > 0 {
			db = 0
		}
		a.freqData[i] = db
	}

	for b := Band(0); b < bandCount; b++ {
		lo, hi := a.bins[b][0], a.bins[b][1]
		sum := 0.0
		for i := lo; i <= hi; i++ {
			sum += linearScale(a.freqData[i])
		}
		raw := sum / float64(hi-lo+1)
		a.levels[b] += (raw - a.levels[b]) * (1 - a.cfg.Smoothing)
		a.levels[b] = clamp01(a.levels[b])
	}

	a.energy = math.Min(1, rms(a.waveform)*2)
	a.pushEnergy(a.energy)

	return Snapshot{
		FrequencyData: a.freqData,
		WaveformData:  a.waveform,
		Levels:        a.levels,
		Energy:        a.energy,
		AverageEnergy: a.averageEnergy(),
	}
}

// Level returns the current smoothed level for a single band.
func (a *Analyzer) Level(b Band) float64 {
	if b < 0 || b >= bandCount {
		return 0
	}
	return a.levels[b]
}

// Levels returns all six band levels in band order.
func (a *Analyzer) Levels() [6]float64 {
	return a.levels
}

// Energy returns the clamped RMS energy of the latest waveform.
func (a *Analyzer) Energy() float64 {
	return a.energy
}

// Dispose detaches the source and zeroes internal state. Safe to call more
// than once.
func (a *Analyzer) Dispose() {
	a.source = nil
	a.levels = [6]float64{}
	a.energy = 0
	a.energyIdx = 0
	a.energyLen = 0
	a.dirty = false
	for i := range a.freqData {
		a.freqData[i] = -100
	}
	for i := range a.waveform {
		a.waveform[i] = 0
	}
	for i := range a.energyHist {
		a.energyHist[i] = 0
	}
}

func (a *Analyzer) mapBands(sampleRate float64) {
	nyquist := sampleRate / 2
	for b := Band(0); b < bandCount; b++ {
		lo, hi := binRange(bandTable[b], nyquist, len(a.freqData))
		a.bins[b] = [2]int{lo, hi}
	}
}

func (a *Analyzer) zeroSnapshot() Snapshot {
	if a.dirty {
		for i := range a.freqData {
			a.freqData[i] = -100
		}
		for i := range a.waveform {
			a.waveform[i] = 0
		}
		a.dirty = false
	}
	return Snapshot{
		FrequencyData: a.freqData,
		WaveformData:  a.waveform,
	}
}

func (a *Analyzer) pushEnergy(v float64) {
	a.energyHist[a.energyIdx] = v
	a.energyIdx = (a.energyIdx + 1) % len(a.energyHist)
	if a.energyLen < len(a.energyHist) {
		a.energyLen++
	}
}

func (a *Analyzer) averageEnergy() float64 {
	if a.energyLen == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < a.energyLen; i++ {
		sum += a.energyHist[i]
	}
	return sum / float64(a.energyLen)
}

// linearScale maps a decibel magnitude in [-100,0] onto [0,1].
func linearScale(db float64) float64 {
	v := (db + 100) / 100
	if v < 0 {
		return 0
	}
	return v
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func hann(i, size float64) float64 {
	return 0.5 * (1.0 - math.Cos(2.0*math.Pi*i/size))
}

func cmag(c complex128) float64 {
	return math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

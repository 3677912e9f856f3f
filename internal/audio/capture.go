package audio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const defaultRingSize = 4096

// Capture wraps a PortAudio input stream. The callback thread writes mono
// samples into a ring buffer; Samples copies the most recent window out for
// the render-loop thread.
type Capture struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	deviceName string

	mu    sync.RWMutex
	ring  []float32
	index int
}

// CaptureConfig controls stream creation.
type CaptureConfig struct {
	DeviceName string // substring match, empty for auto
	RingSize   int    // samples retained for analysis
	Channels   int    // channels requested from the device
}

// NewCapture opens and starts a PortAudio input stream.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.RingSize <= 0 {
		cfg.RingSize = defaultRingSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	device, err := findInput(cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	if cfg.Channels > device.MaxInputChannels {
		cfg.Channels = device.MaxInputChannels
	}

	c := &Capture{
		sampleRate: device.DefaultSampleRate,
		channels:   cfg.Channels,
		deviceName: device.Name,
		ring:       make([]float32, cfg.RingSize),
	}

	framesPerBuffer := cfg.RingSize / cfg.Channels
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      c.sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, c.process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	c.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return c, nil
}

// SampleRate returns the stream sample rate in Hz.
func (c *Capture) SampleRate() float64 { return c.sampleRate }

// DeviceName returns the name of the opened input device.
func (c *Capture) DeviceName() string { return c.deviceName }

// Samples copies the most recent window out of the ring, oldest first.
func (c *Capture) Samples() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]float32, len(c.ring))
	copy(out, c.ring[c.index:])
	copy(out[len(c.ring)-c.index:], c.ring[:c.index])
	return out
}

// Close stops and closes the stream. Safe when the stream already stopped.
func (c *Capture) Close() error {
	if c.stream == nil {
		return nil
	}
	if err := c.stream.Stop(); err != nil && !isStoppedStreamErr(err) {
		return err
	}
	return c.stream.Close()
}

// process runs on the PortAudio callback thread.
func (c *Capture) process(in []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channels <= 1 {
		c.push(in)
		return
	}
	// Interleaved multi-channel input is averaged down to mono in place of
	// a scratch allocation per callback.
	frames := len(in) / c.channels
	for i := 0; i < frames; i++ {
		sum := float32(0)
		base := i * c.channels
		for ch := 0; ch < c.channels; ch++ {
			sum += in[base+ch]
		}
		c.pushOne(sum / float32(c.channels))
	}
}

func (c *Capture) push(in []float32) {
	if len(in) >= len(c.ring) {
		copy(c.ring, in[len(in)-len(c.ring):])
		c.index = 0
		return
	}
	for _, s := range in {
		c.pushOne(s)
	}
}

func (c *Capture) pushOne(s float32) {
	c.ring[c.index] = s
	c.index++
	if c.index == len(c.ring) {
		c.index = 0
	}
}

func isStoppedStreamErr(err error) bool {
	// PortAudio reports stopping an already stopped stream as -9986.
	return err != nil && strings.Contains(err.Error(), "PaErrorCode -9986")
}

//go:build !sdl

package render

import "errors"

// Window is the headless stand-in used when the SDL backend is not compiled
// in. Present succeeds without displaying anything so the engine loop and
// the web readout keep running.
type Window struct {
	width    int
	height   int
	onResize ResizeFunc
	closed   bool
}

// NewWindow creates a headless window of the requested size.
func NewWindow(cfg Config) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("invalid window size")
	}
	return &Window{width: cfg.Width, height: cfg.Height}, nil
}

func (w *Window) OnResize(fn ResizeFunc) { w.onResize = fn }

func (w *Window) Size() (int, int) { return w.width, w.height }

func (w *Window) SetTitle(string) {}

// Present discards the frame.
func (w *Window) Present(pix []byte, srcW, srcH int) error {
	if w.closed {
		return ErrWindowClosed
	}
	return nil
}

// Close marks the window closed. Safe to call more than once.
func (w *Window) Close() error {
	w.closed = true
	return nil
}

// Supported reports that no accelerated backend is compiled in; the engine
// falls back to the faithful compositor.
func Supported() bool { return false }

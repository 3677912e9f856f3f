//go:build sdl

package render

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"
)

// Window owns the SDL window, accelerated renderer and streaming texture the
// compositor framebuffer is presented through. Every resource is released
// explicitly in Close.
type Window struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	width    int
	height   int
	onResize ResizeFunc
	closed   bool
}

// NewWindow creates the SDL window and an accelerated vsynced renderer.
func NewWindow(cfg Config) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid window size %dx%d", cfg.Width, cfg.Height)
	}
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("init video: %w", err)
	}
	window, err := sdl.CreateWindow(
		cfg.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(cfg.Width), int32(cfg.Height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, fmt.Errorf("create window: %w", err)
	}
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return &Window{
		window:   window,
		renderer: renderer,
		width:    cfg.Width,
		height:   cfg.Height,
	}, nil
}

// OnResize installs the callback invoked when the OS resizes the window.
func (w *Window) OnResize(fn ResizeFunc) {
	w.onResize = fn
}

// Size returns the current drawable size.
func (w *Window) Size() (int, int) {
	return w.width, w.height
}

// SetTitle updates the window title when it changed.
func (w *Window) SetTitle(title string) {
	if w.window != nil {
		w.window.SetTitle(title)
	}
}

// Present uploads an RGBA framebuffer of the given dimensions and flips it to
// the screen, then drains pending window events.
func (w *Window) Present(pix []byte, srcW, srcH int) error {
	if w.closed {
		return ErrWindowClosed
	}
	if err := w.ensureTexture(srcW, srcH); err != nil {
		return err
	}
	if err := w.texture.Update(nil, pix, srcW*4); err != nil {
		return fmt.Errorf("texture update: %w", err)
	}
	if err := w.renderer.Clear(); err != nil {
		return err
	}
	if err := w.renderer.Copy(w.texture, nil, nil); err != nil {
		return err
	}
	w.renderer.Present()
	return w.pollEvents()
}

func (w *Window) ensureTexture(srcW, srcH int) error {
	if w.texture != nil {
		_, _, tw, th, err := w.texture.Query()
		if err == nil && int(tw) == srcW && int(th) == srcH {
			return nil
		}
		w.texture.Destroy()
		w.texture = nil
	}
	tex, err := w.renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(srcW), int32(srcH),
	)
	if err != nil {
		return fmt.Errorf("create texture: %w", err)
	}
	w.texture = tex
	return nil
}

func (w *Window) pollEvents() error {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return ErrWindowClosed
		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED || e.Event == sdl.WINDOWEVENT_RESIZED {
				w.width = int(e.Data1)
				w.height = int(e.Data2)
				if w.onResize != nil && w.width > 0 && w.height > 0 {
					w.onResize(w.width, w.height)
				}
			}
		}
	}
	return nil
}

// Close destroys the texture, renderer and window. Safe to call more than
// once.
func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	if w.renderer != nil {
		w.renderer.Destroy()
		w.renderer = nil
	}
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

// Supported reports that the accelerated SDL backend is compiled in.
func Supported() bool { return true }

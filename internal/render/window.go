package render

import "errors"

// ErrWindowClosed is returned by Present when the user closed the window.
var ErrWindowClosed = errors.New("render window closed")

// Config controls window creation.
type Config struct {
	Title  string
	Width  int
	Height int
}

// ResizeFunc is invoked from Present when the OS resizes the window.
type ResizeFunc func(width, height int)

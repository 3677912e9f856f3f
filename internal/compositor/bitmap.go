package compositor

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
)

// Bitmap is a decoded source image in packed RGBA form. It is read-only once
// handed to a compositor.
type Bitmap struct {
	Pix    []byte
	Width  int
	Height int
}

// FromImage converts any decoded image into a Bitmap.
func FromImage(img image.Image) *Bitmap {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		converted := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(converted, converted.Bounds(), img, bounds.Min, draw.Src)
		rgba = converted
	}
	return &Bitmap{
		Pix:    rgba.Pix,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
}

// Decode reads a PNG or JPEG stream into a Bitmap.
func Decode(r io.Reader) (*Bitmap, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode source bitmap: %w", err)
	}
	return FromImage(img), nil
}

// at returns the RGBA channel values at the clamped pixel position.
func (b *Bitmap) at(x, y int) (r, g, bl, a byte) {
	if x < 0 {
		x = 0
	} else if x >= b.Width {
		x = b.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= b.Height {
		y = b.Height - 1
	}
	i := (y*b.Width + x) * 4
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]
}

package compositor

// Blit is the faithful implementation: a stateless nearest-neighbor copy of
// the requested cell scaled to fill the framebuffer. One clear plus one blit
// per call, pixel-exact and deterministic.
type Blit struct {
	cfg      Config
	src      *Bitmap
	fb       []byte
	disposed bool
}

// NewBlit constructs the direct-blit compositor.
func NewBlit(cfg Config) (*Blit, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Blit{
		cfg: cfg,
		fb:  make([]byte, cfg.Width*cfg.Height*4),
	}, nil
}

func (b *Blit) Type() string { return TypeFaithful }

func (b *Blit) SetImage(img *Bitmap) { b.src = img }

func (b *Blit) Size() (int, int) { return b.cfg.Width, b.cfg.Height }

func (b *Blit) Framebuffer() []byte { return b.fb }

// Render copies the sub-rectangle of cell (col,row) into the framebuffer.
// Out-of-range coordinates are clamped onto the grid.
func (b *Blit) Render(col, row int) {
	if b.disposed {
		return
	}
	col = clampInt(col, 0, b.cfg.GridSize-1)
	row = clampInt(row, 0, b.cfg.GridSize-1)

	if b.src == nil {
		clearRGBA(b.fb)
		return
	}

	cellW := b.src.Width / b.cfg.GridSize
	cellH := b.src.Height / b.cfg.GridSize
	if cellW <= 0 || cellH <= 0 {
		clearRGBA(b.fb)
		return
	}
	originX := col * cellW
	originY := row * cellH

	outW, outH := b.cfg.Width, b.cfg.Height
	for y := 0; y < outH; y++ {
		srcY := originY + y*cellH/outH
		rowOffset := y * outW * 4
		for x := 0; x < outW; x++ {
			srcX := originX + x*cellW/outW
			r, g, bl, a := b.src.at(srcX, srcY)
			i := rowOffset + x*4
			b.fb[i] = r
			b.fb[i+1] = g
			b.fb[i+2] = bl
			b.fb[i+3] = a
		}
	}
}

// RenderStatic draws the grid's center cell.
func (b *Blit) RenderStatic() {
	b.Render(b.cfg.GridSize/2, b.cfg.GridSize/2)
}

// Resize reallocates the framebuffer for the new output size.
func (b *Blit) Resize(width, height int) {
	if b.disposed || width <= 0 || height <= 0 {
		return
	}
	b.cfg.Width = width
	b.cfg.Height = height
	b.fb = make([]byte, width*height*4)
}

// Dispose releases the framebuffer. Further renders are no-ops.
func (b *Blit) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	b.fb = nil
	b.src = nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clearRGBA(pix []byte) {
	for i := range pix {
		if i%4 == 3 {
			pix[i] = 0xff
			continue
		}
		pix[i] = 0
	}
}

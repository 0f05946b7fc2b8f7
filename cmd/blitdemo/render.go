package main

import (
	"fmt"
	"image"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/1broseidon/softblit"
	"github.com/1broseidon/softblit/internal/config"
)

// renderer produces BGRX frames for the demo and tracks what the window
// is currently showing so incremental frames can report tile-level
// damage. The library never detects damage itself; supplying it is the
// caller's job, and this is one way a caller can do it.
type renderer struct {
	kind config.PatternKind

	src    image.Image // decoded source for PatternImage
	scaled *image.RGBA // src scaled to the current buffer size

	cur  []uint32 // frame being built
	prev []uint32 // last frame known to be on screen
}

func newRenderer(cfg *config.Config) (*renderer, error) {
	r := &renderer{kind: cfg.Pattern.Kind}
	if cfg.Pattern.Kind == config.PatternImage {
		f, err := os.Open(cfg.Pattern.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %s: %w", cfg.Pattern.Image, err)
		}
		r.src = img
	}
	return r, nil
}

// invalidate drops the on-screen state, forcing the next frame to treat
// everything as dirty. Called on resize.
func (r *renderer) invalidate() {
	r.prev = r.prev[:0]
	r.scaled = nil
}

// render builds the frame into pix.
func (r *renderer) render(pix []uint32, w, h, frame int) {
	if len(r.cur) != w*h {
		r.cur = make([]uint32, w*h)
	}
	switch r.kind {
	case config.PatternChecker:
		r.renderChecker(w, h, frame)
	case config.PatternImage:
		r.renderImage(w, h)
	default:
		r.renderGradient(w, h, frame)
	}
	copy(pix, r.cur)
}

func (r *renderer) renderGradient(w, h, frame int) {
	red := uint32(frame*2) & 0xff
	for y := 0; y < h; y++ {
		g := uint32(y * 255 / h)
		row := r.cur[y*w : (y+1)*w]
		for x := range row {
			b := uint32(x * 255 / w)
			row[x] = red<<16 | g<<8 | b
		}
	}
}

func (r *renderer) renderChecker(w, h, frame int) {
	const cell = 16
	const dark, light = 0x00202020, 0x00e0e0e0
	off := frame % (2 * cell)
	for y := 0; y < h; y++ {
		row := r.cur[y*w : (y+1)*w]
		for x := range row {
			if ((x+off)/cell+(y+off)/cell)%2 == 0 {
				row[x] = dark
			} else {
				row[x] = light
			}
		}
	}
}

func (r *renderer) renderImage(w, h int) {
	if r.scaled == nil || r.scaled.Rect.Dx() != w || r.scaled.Rect.Dy() != h {
		r.scaled = image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(r.scaled, r.scaled.Rect, r.src, r.src.Bounds(), xdraw.Src, nil)
	}
	for y := 0; y < h; y++ {
		row := r.cur[y*w : (y+1)*w]
		o := r.scaled.PixOffset(0, y)
		for x := range row {
			p := r.scaled.Pix[o+x*4 : o+x*4+4]
			row[x] = uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
		}
	}
}

// dirtyTiles compares the frame being built against the last remembered
// frame and returns one damage rect per changed tile, clipped to the
// buffer. An empty result means the window already shows this frame.
func (r *renderer) dirtyTiles(w, h, tile int) []softblit.Rect {
	if len(r.prev) != len(r.cur) {
		return []softblit.Rect{{Width: uint32(w), Height: uint32(h)}}
	}
	var rects []softblit.Rect
	for ty := 0; ty < h; ty += tile {
		th := min(tile, h-ty)
		for tx := 0; tx < w; tx += tile {
			tw := min(tile, w-tx)
			if r.tileChanged(w, tx, ty, tw, th) {
				rects = append(rects, softblit.Rect{
					X: uint32(tx), Y: uint32(ty),
					Width: uint32(tw), Height: uint32(th),
				})
			}
		}
	}
	return rects
}

func (r *renderer) tileChanged(stride, tx, ty, tw, th int) bool {
	for y := ty; y < ty+th; y++ {
		off := y * stride
		for x := tx; x < tx+tw; x++ {
			if r.cur[off+x] != r.prev[off+x] {
				return true
			}
		}
	}
	return false
}

// remember records the built frame as the on-screen state.
func (r *renderer) remember() {
	if len(r.prev) != len(r.cur) {
		r.prev = make([]uint32, len(r.cur))
	}
	copy(r.prev, r.cur)
}

// lastFrame returns the most recently built frame.
func (r *renderer) lastFrame() []uint32 {
	return r.cur
}

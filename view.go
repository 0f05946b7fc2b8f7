package softblit

// BufferView is an exclusive, short-lived view over a surface's
// off-screen buffer: one is checked out per write-then-present cycle and
// handed back when the cycle ends. Present and PresentWithDamage release
// the view whether or not the copy succeeds; Release abandons it without
// presenting. Using a view after release is a programming error and
// panics.
type BufferView struct {
	surf     *Surface
	released bool
}

// Pixels returns the buffer as width*height 32-bit BGRX values in
// row-major, top-to-bottom order. The slice aliases the pixel store;
// writes to it are what present copies to the window. Indexing outside
// the slice is never valid.
func (v *BufferView) Pixels() []uint32 {
	v.mustLive()
	return v.surf.buf.pix
}

// Age reports whether the buffer's pre-edit contents are already on
// screen: 1 if this buffer instance has been presented before, else 0.
// At 0 the whole buffer must be treated as dirty; at 1 damage-only
// updates are enough. There is exactly one physical buffer, so the value
// is binary rather than a generation counter.
func (v *BufferView) Age() uint8 {
	v.mustLive()
	if v.surf.buf.presented {
		return 1
	}
	return 0
}

// Present copies the entire buffer to the window. Equivalent to
// PresentWithDamage with one rect covering the whole buffer.
func (v *BufferView) Present() error {
	v.mustLive()
	b := v.surf.buf
	return v.PresentWithDamage([]Rect{{Width: b.width, Height: b.height}})
}

// PresentWithDamage copies the given regions of the buffer to the window
// and releases the view.
func (v *BufferView) PresentWithDamage(rects []Rect) error {
	v.mustLive()
	defer v.Release()
	return v.surf.presentWithDamage(rects)
}

// Release hands the buffer back without presenting. Idempotent.
func (v *BufferView) Release() {
	if v.released {
		return
	}
	v.released = true
	v.surf.checkedOut = false
}

func (v *BufferView) mustLive() {
	if v.released {
		panic("softblit: use of released buffer view")
	}
}

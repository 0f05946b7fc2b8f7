package main

import (
	"testing"

	"github.com/1broseidon/softblit"
	"github.com/1broseidon/softblit/internal/config"
)

func TestDirtyTilesFullDamageWithoutHistory(t *testing.T) {
	r := &renderer{kind: config.PatternGradient}
	pix := make([]uint32, 64*64)
	r.render(pix, 64, 64, 0)

	rects := r.dirtyTiles(64, 64, 16)
	want := softblit.Rect{Width: 64, Height: 64}
	if len(rects) != 1 || rects[0] != want {
		t.Fatalf("expected single full-buffer rect, got %v", rects)
	}
}

func TestDirtyTilesEmptyWhenUnchanged(t *testing.T) {
	r := &renderer{kind: config.PatternChecker}
	pix := make([]uint32, 64*64)
	r.render(pix, 64, 64, 0)
	r.remember()

	// Frame 32 has the same scroll offset as frame 0 (cell size 16).
	r.render(pix, 64, 64, 32)
	if rects := r.dirtyTiles(64, 64, 16); len(rects) != 0 {
		t.Fatalf("identical frame reported %d dirty tiles", len(rects))
	}
}

func TestDirtyTilesLocalizedChange(t *testing.T) {
	r := &renderer{kind: config.PatternGradient}
	pix := make([]uint32, 64*64)
	r.render(pix, 64, 64, 0)
	r.remember()

	// Re-render the same frame, then poke one pixel inside a known tile.
	r.render(pix, 64, 64, 0)
	r.cur[33*64+40] ^= 0x00ffffff

	rects := r.dirtyTiles(64, 64, 16)
	want := softblit.Rect{X: 32, Y: 32, Width: 16, Height: 16}
	if len(rects) != 1 || rects[0] != want {
		t.Fatalf("expected %v, got %v", want, rects)
	}
}

func TestDirtyTilesClipToBufferEdge(t *testing.T) {
	r := &renderer{kind: config.PatternGradient}
	pix := make([]uint32, 70*50)
	r.render(pix, 70, 50, 0)
	r.remember()

	r.render(pix, 70, 50, 0)
	r.cur[49*70+69] ^= 0x00ffffff // bottom-right corner, partial tile

	rects := r.dirtyTiles(70, 50, 32)
	want := softblit.Rect{X: 64, Y: 32, Width: 6, Height: 18}
	if len(rects) != 1 || rects[0] != want {
		t.Fatalf("expected %v, got %v", want, rects)
	}
}

func TestRenderKeepsTopByteClear(t *testing.T) {
	for _, kind := range []config.PatternKind{config.PatternGradient, config.PatternChecker} {
		r := &renderer{kind: kind}
		pix := make([]uint32, 32*32)
		r.render(pix, 32, 32, 5)
		for i, p := range pix {
			if p&0xff000000 != 0 {
				t.Fatalf("%s: pixel %d has X channel bits set: %#08x", kind, i, p)
			}
		}
	}
}

package softblit

import (
	"errors"
	"os"
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// newTestWindow maps a small override-redirect window so no window
// manager can reparent or obscure it; the round-trip tests read the
// window contents back and need them undisturbed.
func newTestWindow(t *testing.T, width, height uint16) (*xgb.Conn, xproto.Window) {
	t.Helper()
	if os.Getenv("DISPLAY") == "" {
		t.Skip("DISPLAY not set")
	}
	conn, err := xgb.NewConn()
	if err != nil {
		t.Skipf("cannot connect to X server: %v", err)
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	win, err := xproto.NewWindowId(conn)
	if err != nil {
		conn.Close()
		t.Fatalf("window id: %v", err)
	}
	err = xproto.CreateWindowChecked(conn, screen.RootDepth, win, screen.Root,
		0, 0, width, height, 0, xproto.WindowClassInputOutput, screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect,
		[]uint32{screen.BlackPixel, 1}).Check()
	if err != nil {
		conn.Close()
		t.Fatalf("create window: %v", err)
	}
	if err := xproto.MapWindowChecked(conn, win).Check(); err != nil {
		conn.Close()
		t.Fatalf("map window: %v", err)
	}
	conn.Sync()
	t.Cleanup(func() {
		xproto.DestroyWindow(conn, win)
		conn.Close()
	})
	return conn, win
}

func newTestSurface(t *testing.T, width, height uint32) *Surface {
	t.Helper()
	conn, win := newTestWindow(t, uint16(width), uint16(height))
	s, err := New(conn, win)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Resize(width, height); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	return s
}

func writePattern(pix []uint32, seed uint32) {
	for i := range pix {
		pix[i] = (uint32(i)*2654435761 + seed) &^ 0xff000000 // BGRX: top byte unused
	}
}

func TestPresentFetchRoundTrip(t *testing.T) {
	const w, h = 64, 48
	s := newTestSurface(t, w, h)

	v, err := s.Buffer()
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	if v.Age() != 0 {
		t.Fatalf("Age() before first present = %d, want 0", v.Age())
	}
	want := make([]uint32, w*h)
	writePattern(want, 7)
	copy(v.Pixels(), want)
	if err := v.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}

	got, err := s.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != w*h {
		t.Fatalf("Fetch returned %d pixels, want %d", len(got), w*h)
	}
	for i := range want {
		if got[i]&0x00ffffff != want[i]&0x00ffffff {
			t.Fatalf("pixel %d: got %#08x, want %#08x", i, got[i], want[i])
		}
	}
}

func TestAgeAcrossPresentAndResize(t *testing.T) {
	s := newTestSurface(t, 32, 32)

	v, _ := s.Buffer()
	if err := v.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	v, _ = s.Buffer()
	if v.Age() != 1 {
		t.Fatalf("Age() after present = %d, want 1", v.Age())
	}
	v.Release()

	if err := s.Resize(16, 16); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	v, _ = s.Buffer()
	defer v.Release()
	if v.Age() != 0 {
		t.Fatalf("Age() after resize = %d, want 0", v.Age())
	}
}

func TestIdenticalResizeKeepsBuffer(t *testing.T) {
	s := newTestSurface(t, 40, 30)

	v, _ := s.Buffer()
	p1 := v.Pixels()
	v.Release()

	if err := s.Resize(40, 30); err != nil {
		t.Fatalf("identical Resize: %v", err)
	}
	v, _ = s.Buffer()
	defer v.Release()
	p2 := v.Pixels()
	if &p1[0] != &p2[0] {
		t.Fatal("identical resize reallocated the buffer")
	}
}

func TestResizeReplacesBuffer(t *testing.T) {
	s := newTestSurface(t, 40, 30)

	v, _ := s.Buffer()
	p1 := v.Pixels()
	writePattern(p1, 3)
	v.Release()

	if err := s.Resize(40, 31); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	v, _ = s.Buffer()
	defer v.Release()
	p2 := v.Pixels()
	if len(p2) != 40*31 {
		t.Fatalf("len(Pixels()) = %d, want %d", len(p2), 40*31)
	}
	if len(p1) > 0 && len(p2) > 0 && &p1[0] == &p2[0] {
		t.Fatal("resize to new dimensions kept the old store")
	}
}

func TestPartialDamagePresent(t *testing.T) {
	const w, h = 64, 64
	s := newTestSurface(t, w, h)

	const base, edit = 0x00101010, 0x00c04020
	v, _ := s.Buffer()
	pix := v.Pixels()
	for i := range pix {
		pix[i] = base
	}
	if err := v.Present(); err != nil {
		t.Fatalf("base present: %v", err)
	}

	// Repaint everything client-side but only damage the left half.
	v, _ = s.Buffer()
	pix = v.Pixels()
	for i := range pix {
		pix[i] = edit
	}
	if err := v.PresentWithDamage([]Rect{{Width: w / 2, Height: h}}); err != nil {
		t.Fatalf("damage present: %v", err)
	}

	got, err := s.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := uint32(edit)
			if x >= w/2 {
				want = base
			}
			if got[y*w+x]&0x00ffffff != want {
				t.Fatalf("pixel (%d,%d): got %#08x, want %#08x", x, y, got[y*w+x], want)
			}
		}
	}
}

func TestFailedDamageLeavesEarlierCopies(t *testing.T) {
	const w, h = 32, 32
	s := newTestSurface(t, w, h)

	v, _ := s.Buffer()
	pix := v.Pixels()
	for i := range pix {
		pix[i] = 0x00336699
	}
	err := v.PresentWithDamage([]Rect{
		{Width: w, Height: h},
		{X: 50000, Width: 1, Height: 1},
	})
	var dor *DamageOutOfRangeError
	if !errors.As(err, &dor) {
		t.Fatalf("PresentWithDamage = %v, want DamageOutOfRangeError", err)
	}

	// The first rect was committed before the second failed validation.
	got, err := s.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got[0]&0x00ffffff != 0x00336699 {
		t.Fatalf("first pixel = %#08x, want %#08x", got[0], 0x00336699)
	}

	// But the buffer is still not marked presented.
	v, _ = s.Buffer()
	defer v.Release()
	if v.Age() != 0 {
		t.Fatalf("Age() after failed present = %d, want 0", v.Age())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	conn, win := newTestWindow(t, 16, 16)
	s, err := New(conn, win)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

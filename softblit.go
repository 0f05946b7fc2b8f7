// Package softblit pushes CPU-rendered pixels onto X11 windows without GPU
// involvement. A Surface wraps an existing window, owns one off-screen
// buffer of 32-bit BGRX pixels, and copies damaged regions of that buffer
// onto the window on present. Buffers live in shared memory when the
// server supports MIT-SHM shared pixmaps and fall back to PutImage uploads
// otherwise.
//
// A Surface must be used from a single goroutine. Pixel access goes
// through a checked-out BufferView, which also prevents a resize or a
// second writer while pixels are being edited.
package softblit

import (
	"encoding/binary"
	"unsafe"

	"github.com/BurntSushi/xgb"
	xshm "github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"
)

// Surface binds an off-screen pixel buffer to an on-screen window. The
// window itself is never owned: creating and destroying it stays with the
// caller. A Surface owns the graphics context it creates on the window
// and at most one off-screen buffer at a time.
type Surface struct {
	conn  *xgb.Conn
	win   xproto.Window
	gc    xproto.Gcontext
	depth byte

	shmOK         bool
	maxRequestLen uint32

	buf        *buffer
	checkedOut bool
	closed     bool
}

// New wraps an existing window. The window id is checked before any
// server resource is acquired; a zero id yields ErrIncompleteWindow.
// No buffer exists until the first successful Resize.
func New(conn *xgb.Conn, win xproto.Window) (*Surface, error) {
	if win == 0 {
		return nil, ErrIncompleteWindow
	}

	setup := xproto.Setup(conn)
	if setup.ImageByteOrder != xproto.ImageOrderLSBFirst || !hostLittleEndian() {
		// The []uint32 pixel view relies on u32 BGRX matching the byte
		// stream both sides expect; byte-swapping is out of scope.
		return nil, ErrBufferFormat
	}

	geom, err := xproto.GetGeometry(conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return nil, &PlatformError{Op: "query window geometry", Err: err}
	}
	if !has32BitFormat(setup, geom.Depth) {
		return nil, ErrBufferFormat
	}

	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		return nil, &PlatformError{Op: "allocate gcontext id", Err: err}
	}
	// GraphicsExposures off: copies from partially obscured windows must
	// not generate expose traffic on our behalf.
	err = xproto.CreateGCChecked(conn, gc, xproto.Drawable(win),
		xproto.GcGraphicsExposures, []uint32{0}).Check()
	if err != nil {
		return nil, &PlatformError{Op: "create gcontext", Err: err}
	}

	s := &Surface{
		conn:          conn,
		win:           win,
		gc:            gc,
		depth:         geom.Depth,
		maxRequestLen: uint32(setup.MaximumRequestLength),
	}
	if err := xshm.Init(conn); err == nil {
		if rep, err := xshm.QueryVersion(conn).Reply(); err == nil && rep.SharedPixmaps {
			s.shmOK = true
		}
	}
	return s, nil
}

// Resize establishes or replaces the off-screen buffer. A resize to the
// live buffer's exact dimensions is a no-op that keeps the same buffer
// instance. Any other resize tears the old buffer down immediately and
// allocates a fresh one: prior pixel contents are discarded, never
// migrated, and the new buffer starts out never-presented.
func (s *Surface) Resize(width, height uint32) error {
	if s.checkedOut {
		return ErrBufferInUse
	}
	if !validDims(width, height) {
		return &SizeOutOfRangeError{Width: width, Height: height}
	}
	if s.buf != nil && s.buf.width == width && s.buf.height == height {
		return nil
	}
	if s.buf != nil {
		s.buf.destroy(s)
	}
	s.buf = newBuffer(s, width, height)
	return nil
}

// Size returns the current buffer dimensions, or zeros before the first
// successful Resize.
func (s *Surface) Size() (width, height uint32) {
	if s.buf == nil {
		return 0, 0
	}
	return s.buf.width, s.buf.height
}

// Buffer checks out the off-screen buffer for one edit-then-present
// cycle. Calling it before a successful Resize is a programming error and
// panics. While a view is checked out, Resize, Close, Fetch and a second
// Buffer call are refused with ErrBufferInUse; the view is handed back by
// Present, PresentWithDamage or Release.
func (s *Surface) Buffer() (*BufferView, error) {
	if s.buf == nil {
		panic("softblit: Resize must succeed before Buffer is called")
	}
	if s.checkedOut {
		return nil, ErrBufferInUse
	}
	s.checkedOut = true
	return &BufferView{surf: s}, nil
}

// presentWithDamage copies each damage rect from the off-screen pixmap to
// the window at identical coordinates. Rects are processed in order and
// each copy is committed as it is issued; the first rect outside the wire
// domain fails the call without undoing earlier copies and without
// marking the buffer presented. Rects are not clipped against the buffer.
func (s *Surface) presentWithDamage(rects []Rect) error {
	b := s.buf
	for _, r := range rects {
		if !r.inWireRange() {
			return &DamageOutOfRangeError{Rect: r}
		}
		x, y := int16(r.X), int16(r.Y)
		w, h := uint16(r.Width), uint16(r.Height)
		if !b.shared() {
			if err := b.uploadRect(s, x, y, w, h); err != nil {
				return &PlatformError{Op: "upload damage", Err: err}
			}
		}
		xproto.CopyArea(s.conn, xproto.Drawable(b.pixmap), xproto.Drawable(s.win),
			s.gc, x, y, x, y, w, h)
	}
	if b.shared() {
		// The server reads the segment when it executes the copies; wait
		// them out so the caller's next writes cannot race the scanout.
		s.conn.Sync()
	}
	b.presented = true
	return nil
}

// Fetch reads back the pixels currently displayed by the window, not the
// off-screen buffer. It copies the window into a temporary buffer of
// matching dimensions, forces that copy to complete, and returns a dense
// copy of the result. The presented state and buffer identity are left
// untouched. Calling Fetch before a successful Resize is a programming
// error and panics.
func (s *Surface) Fetch() ([]uint32, error) {
	if s.buf == nil {
		panic("softblit: Resize must succeed before Fetch is called")
	}
	if s.checkedOut {
		return nil, ErrBufferInUse
	}

	b := s.buf
	tmp := newBuffer(s, b.width, b.height)
	defer tmp.destroy(s)

	w, h := uint16(b.width), uint16(b.height)
	xproto.CopyArea(s.conn, xproto.Drawable(s.win), xproto.Drawable(tmp.pixmap),
		s.gc, 0, 0, 0, 0, w, h)

	// The image round-trip both forces the copy to complete and delivers
	// the bytes.
	if tmp.shared() {
		_, err := xshm.GetImage(s.conn, xproto.Drawable(tmp.pixmap), 0, 0, w, h,
			^uint32(0), xproto.ImageFormatZPixmap, tmp.xseg, 0).Reply()
		if err != nil {
			return nil, &PlatformError{Op: "fetch window image", Err: err}
		}
		out := make([]uint32, len(tmp.pix))
		copy(out, tmp.pix)
		return out, nil
	}
	rep, err := xproto.GetImage(s.conn, xproto.ImageFormatZPixmap,
		xproto.Drawable(tmp.pixmap), 0, 0, w, h, ^uint32(0)).Reply()
	if err != nil {
		return nil, &PlatformError{Op: "fetch window image", Err: err}
	}
	// Reply bytes are not guaranteed to be word-aligned; decode instead
	// of aliasing.
	out := make([]uint32, int(b.width)*int(b.height))
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(rep.Data[i*4:])
	}
	return out, nil
}

// Close tears down the buffer and frees the graphics context. The window
// and the connection belong to the caller and are left alone. Idempotent;
// refused while a buffer view is checked out.
func (s *Surface) Close() error {
	if s.closed {
		return nil
	}
	if s.checkedOut {
		return ErrBufferInUse
	}
	s.closed = true
	if s.buf != nil {
		s.buf.destroy(s)
		s.buf = nil
	}
	xproto.FreeGC(s.conn, s.gc)
	return nil
}

func has32BitFormat(setup *xproto.SetupInfo, depth byte) bool {
	for _, f := range setup.PixmapFormats {
		if f.Depth == depth && f.BitsPerPixel == 32 {
			return true
		}
	}
	return false
}

func hostLittleEndian() bool {
	var probe uint16 = 1
	return *(*byte)(unsafe.Pointer(&probe)) == 1
}

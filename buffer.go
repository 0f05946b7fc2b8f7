package softblit

import (
	"fmt"
	"unsafe"

	xshm "github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/softblit/internal/shm"
)

// putImageHeaderLen is the fixed part of a PutImage request, in bytes.
const putImageHeaderLen = 24

// buffer owns one off-screen pixmap and its pixel store. On the shared
// path the store is a SysV segment bound to the pixmap, so writes land in
// the drawable directly; on the plain path the store is heap memory that
// is uploaded with PutImage at present time.
//
// The pixmap and the store are released together in destroy, and the
// []uint32 view is derived from the store rather than owned, so it is
// never freed separately.
type buffer struct {
	pixmap xproto.Pixmap
	seg    *shm.Segment // nil on the plain path
	xseg   xshm.Seg     // server-side segment id, unset on the plain path
	store  []byte       // length exactly 4*width*height
	pix    []uint32     // view over store, length exactly width*height

	width     uint32
	height    uint32
	presented bool
}

// newBuffer allocates an off-screen buffer of the given dimensions.
// Dimensions must already be validated. Allocation failure on the plain
// path is an environment fault and panics; shared-path failures degrade
// to the plain path instead, since a remote or constrained server is a
// normal condition.
func newBuffer(s *Surface, width, height uint32) *buffer {
	if s.shmOK {
		if b, err := newSharedBuffer(s, width, height); err == nil {
			return b
		}
	}
	return newPlainBuffer(s, width, height)
}

func newSharedBuffer(s *Surface, width, height uint32) (*buffer, error) {
	seg, err := shm.Create(int(width) * int(height) * 4)
	if err != nil {
		return nil, err
	}
	xseg, err := xshm.NewSegId(s.conn)
	if err != nil {
		seg.Close()
		return nil, err
	}
	if err := xshm.AttachChecked(s.conn, xseg, uint32(seg.ID()), false).Check(); err != nil {
		seg.Close()
		return nil, err
	}
	pid, err := xproto.NewPixmapId(s.conn)
	if err != nil {
		xshm.Detach(s.conn, xseg)
		seg.Close()
		return nil, err
	}
	err = xshm.CreatePixmapChecked(s.conn, pid, xproto.Drawable(s.win),
		uint16(width), uint16(height), s.depth, xseg, 0).Check()
	if err != nil {
		xshm.Detach(s.conn, xseg)
		seg.Close()
		return nil, err
	}
	store := seg.Bytes()
	return &buffer{
		pixmap: pid,
		seg:    seg,
		xseg:   xseg,
		store:  store,
		pix:    pixelView(store, width, height),
		width:  width,
		height: height,
	}, nil
}

func newPlainBuffer(s *Surface, width, height uint32) *buffer {
	pid, err := xproto.NewPixmapId(s.conn)
	if err != nil {
		panic(fmt.Sprintf("softblit: pixmap id: %v", err))
	}
	err = xproto.CreatePixmapChecked(s.conn, s.depth, pid, xproto.Drawable(s.win),
		uint16(width), uint16(height)).Check()
	if err != nil {
		panic(fmt.Sprintf("softblit: create %dx%d pixmap: %v", width, height, err))
	}
	store := make([]byte, int(width)*int(height)*4)
	return &buffer{
		pixmap: pid,
		store:  store,
		pix:    pixelView(store, width, height),
		width:  width,
		height: height,
	}
}

func pixelView(store []byte, width, height uint32) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&store[0])), int(width)*int(height))
}

func (b *buffer) shared() bool { return b.seg != nil }

// destroy releases the pixmap and the pixel store as one unit. Safe to
// call once per buffer; the buffer must not be used afterwards.
func (b *buffer) destroy(s *Surface) {
	xproto.FreePixmap(s.conn, b.pixmap)
	if b.seg != nil {
		xshm.Detach(s.conn, b.xseg)
		b.seg.Close()
	}
	b.store = nil
	b.pix = nil
}

// uploadRect pushes the store rows covered by the rect into the pixmap,
// banding the transfer to stay under the server's maximum request length.
// Only needed on the plain path; a shared pixmap sees store writes
// directly. The rect is already validated for the wire, but not against
// the buffer: the copy passes out-of-bounds damage through to the server,
// while the upload can only cover what the store actually holds.
func (b *buffer) uploadRect(s *Surface, x, y int16, w, h uint16) error {
	if uint32(x) >= b.width || uint32(y) >= b.height {
		return nil
	}
	if over := uint32(x) + uint32(w); over > b.width {
		w = uint16(b.width - uint32(x))
	}
	if over := uint32(y) + uint32(h); over > b.height {
		h = uint16(b.height - uint32(y))
	}

	stride := int(b.width) * 4
	rowBytes := int(w) * 4
	maxData := int(s.maxRequestLen)*4 - putImageHeaderLen

	maxRows := maxData / rowBytes
	if maxRows < 1 {
		// A single row exceeds the request budget; split it into
		// column strips instead.
		return b.uploadRectStrips(s, x, y, w, h, maxData)
	}

	for row := 0; row < int(h); row += maxRows {
		rows := int(h) - row
		if rows > maxRows {
			rows = maxRows
		}
		data := b.rectBytes(int(x), int(y)+row, int(w), rows, stride, rowBytes)
		cookie := xproto.PutImageChecked(s.conn, xproto.ImageFormatZPixmap,
			xproto.Drawable(b.pixmap), s.gc,
			w, uint16(rows), x, int16(int(y)+row), 0, s.depth, data)
		if err := cookie.Check(); err != nil {
			return err
		}
	}
	return nil
}

func (b *buffer) uploadRectStrips(s *Surface, x, y int16, w, h uint16, maxData int) error {
	stride := int(b.width) * 4
	maxCols := maxData / 4
	if maxCols < 1 {
		maxCols = 1
	}
	for col := 0; col < int(w); col += maxCols {
		cols := int(w) - col
		if cols > maxCols {
			cols = maxCols
		}
		for row := 0; row < int(h); row++ {
			data := b.rectBytes(int(x)+col, int(y)+row, cols, 1, stride, cols*4)
			cookie := xproto.PutImageChecked(s.conn, xproto.ImageFormatZPixmap,
				xproto.Drawable(b.pixmap), s.gc,
				uint16(cols), 1, int16(int(x)+col), int16(int(y)+row), 0, s.depth, data)
			if err := cookie.Check(); err != nil {
				return err
			}
		}
	}
	return nil
}

// rectBytes returns the store bytes for rows*[x, x+cols) starting at row
// y, contiguous and ready for the wire. Full-width spans alias the store;
// partial spans are gathered into a scratch slice.
func (b *buffer) rectBytes(x, y, cols, rows, stride, rowBytes int) []byte {
	off := y*stride + x*4
	if cols == int(b.width) {
		return b.store[off : off+rows*stride]
	}
	out := make([]byte, rows*rowBytes)
	for r := 0; r < rows; r++ {
		src := off + r*stride
		copy(out[r*rowBytes:(r+1)*rowBytes], b.store[src:src+rowBytes])
	}
	return out
}

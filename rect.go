package softblit

// Rect describes a damage region in buffer coordinates: an offset from the
// top-left corner plus a strictly positive extent. A Rect carries no
// inherent validation against any buffer's bounds; damage outside the
// buffer is passed through to the server untouched, and what the server
// does with it is server-defined.
type Rect struct {
	X      uint32
	Y      uint32
	Width  uint32
	Height uint32
}

// X wire limits: offsets travel as int16, extents as uint16.
const (
	maxCoord  = 1<<15 - 1
	maxExtent = 1<<16 - 1
)

// inWireRange reports whether the rect is representable in the X wire
// coordinate domain with a non-zero extent.
func (r Rect) inWireRange() bool {
	return r.X <= maxCoord && r.Y <= maxCoord &&
		r.Width > 0 && r.Width <= maxExtent &&
		r.Height > 0 && r.Height <= maxExtent
}

// validDims reports whether width and height are acceptable buffer
// dimensions: non-zero, representable on the wire, and with a pixel store
// whose byte length fits in an int32 (the slice length limit on 32-bit
// platforms, and the practical limit for a single X request stream).
func validDims(width, height uint32) bool {
	if width == 0 || height == 0 || width > maxExtent || height > maxExtent {
		return false
	}
	return int64(width)*int64(height)*4 <= 1<<31-1
}

package softblit

import (
	"errors"
	"fmt"
)

// ErrIncompleteWindow is returned by New when the window id is zero. It is
// reported before any server resource is touched.
var ErrIncompleteWindow = errors.New("softblit: window id is zero")

// ErrBufferInUse is returned when an operation needs exclusive access to
// the surface while a buffer view is still checked out, or when a second
// view is requested before the first is released.
var ErrBufferInUse = errors.New("softblit: buffer view is checked out")

// ErrBufferFormat is returned by New when the server cannot exchange
// 32-bit BGRX pixels for the window's depth, for example on an MSB-first
// server or a display without a 32 bits-per-pixel pixmap format.
var ErrBufferFormat = errors.New("softblit: server has no usable 32-bit pixel format")

// PlatformError wraps an error reported by the X server or the connection.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("softblit: %s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// SizeOutOfRangeError reports resize dimensions that are zero or not
// representable on the wire. It carries the offending values.
type SizeOutOfRangeError struct {
	Width  uint32
	Height uint32
}

func (e *SizeOutOfRangeError) Error() string {
	return fmt.Sprintf("softblit: size %dx%d out of range", e.Width, e.Height)
}

// DamageOutOfRangeError reports a damage rect whose fields are not
// representable on the wire. It carries the offending rect.
type DamageOutOfRangeError struct {
	Rect Rect
}

func (e *DamageOutOfRangeError) Error() string {
	return fmt.Sprintf("softblit: damage rect %dx%d+%d+%d out of range",
		e.Rect.Width, e.Rect.Height, e.Rect.X, e.Rect.Y)
}

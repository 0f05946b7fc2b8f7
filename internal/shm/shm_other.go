//go:build !linux

package shm

import "errors"

// ErrUnsupported is returned by Create on platforms without SysV shared
// memory support; callers fall back to a heap pixel store.
var ErrUnsupported = errors.New("shm: not supported on this platform")

type Segment struct{}

func Create(size int) (*Segment, error) { return nil, ErrUnsupported }

func (s *Segment) ID() int       { return 0 }
func (s *Segment) Bytes() []byte { return nil }
func (s *Segment) Close() error  { return nil }

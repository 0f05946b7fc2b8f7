//go:build linux

// Package shm wraps a SysV shared memory segment for use as a pixel store
// that both this process and the X server can address.
package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Segment is an attached shared memory segment. The zero value is not
// usable; create one with Create.
type Segment struct {
	id   int
	data []byte
}

// Create allocates and attaches a private segment of the given size. The
// segment is marked for removal immediately, so it disappears once the
// last attachment (ours and the server's) is gone even if the process
// dies without calling Close.
func Create(size int) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: invalid segment size %d", size)
	}
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: shmget: %w", err)
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, fmt.Errorf("shm: shmat: %w", err)
	}
	// On Linux a removed segment stays attachable until the last detach,
	// which is what lets the X server attach after this.
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		unix.SysvShmDetach(data)
		return nil, fmt.Errorf("shm: shmctl rmid: %w", err)
	}
	return &Segment{id: id, data: data}, nil
}

// ID returns the segment id to hand to the server.
func (s *Segment) ID() int { return s.id }

// Bytes returns the attached view. It is valid until Close.
func (s *Segment) Bytes() []byte { return s.data }

// Close detaches the segment. Idempotent.
func (s *Segment) Close() error {
	if s.data == nil {
		return nil
	}
	data := s.data
	s.data = nil
	if err := unix.SysvShmDetach(data); err != nil {
		return fmt.Errorf("shm: shmdt: %w", err)
	}
	return nil
}

//go:build linux

package shm

import (
	"bytes"
	"testing"
)

func TestCreateWriteRead(t *testing.T) {
	seg, err := Create(4096)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer seg.Close()

	if seg.ID() <= 0 {
		t.Fatalf("expected positive segment id, got %d", seg.ID())
	}
	data := seg.Bytes()
	if len(data) != 4096 {
		t.Fatalf("expected 4096 bytes, got %d", len(data))
	}

	for i := range data {
		data[i] = byte(i % 251)
	}
	want := make([]byte, len(data))
	for i := range want {
		want[i] = byte(i % 251)
	}
	if !bytes.Equal(seg.Bytes(), want) {
		t.Fatal("segment contents did not round-trip")
	}
}

func TestCreateInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := Create(size); err == nil {
			t.Fatalf("Create(%d) succeeded, want error", size)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	seg, err := Create(64)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if seg.Bytes() != nil {
		t.Fatal("Bytes should be nil after Close")
	}
}

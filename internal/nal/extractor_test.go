package nal

import (
	"bytes"
	"testing"
)

func TestExtractSkipsVendorPrefix(t *testing.T) {
	vendorPrefix := append([]byte{0, 0, 0, 1, 0xC7}, make([]byte, 17)...) // 22 bytes total
	nal := []byte{0, 0, 0, 1, 0x67, 0xAA, 0xBB} // fake SPS NAL
	payload := append(append([]byte(nil), vendorPrefix...), nal...)

	got := Extract(payload)
	if !bytes.Equal(got, nal) {
		t.Fatalf("expected extraction to start at byte 22: got %x want %x", got, nal)
	}
}

func TestExtractNoQualifyingStartCode(t *testing.T) {
	payload := []byte{0, 0, 0, 1, 0xC6, 1, 2, 3}
	if got := Extract(payload); got != nil {
		t.Fatalf("expected nil for payload with only vendor NALs, got %x", got)
	}
}

func TestExtractNoStartCodeAtAll(t *testing.T) {
	if got := Extract([]byte{1, 2, 3, 4, 5}); got != nil {
		t.Fatalf("expected nil, got %x", got)
	}
}

func TestFindResyncPoint(t *testing.T) {
	buf := []byte{0xDE, 0xAD, 0x05, 0x01, 0x11, 0x50, 0x00}
	if idx := FindResyncPoint(buf); idx != 2 {
		t.Fatalf("expected magic at offset 2, got %d", idx)
	}
	if idx := FindResyncPoint([]byte{1, 2, 3}); idx != -1 {
		t.Fatalf("expected -1 for no match, got %d", idx)
	}
}

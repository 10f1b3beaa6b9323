// Package nal extracts a clean H.264 Annex-B elementary stream from the
// DVR's vendor-framed media payloads.
package nal

import "bytes"

var startCode4 = []byte{0, 0, 0, 1}

// vendorPrefixBytes are the type bytes that mark a vendor NAL immediately
// following a 4-byte start code; these must be skipped to reach the first
// standard H.264 NAL.
var vendorPrefixBytes = map[byte]bool{0xC6: true, 0xC7: true}

// Extract returns the clean H.264 slice of payload, starting at the first
// 4-byte start code whose following byte is not a vendor prefix byte. It
// returns nil if no qualifying start code is found (the caller should drop
// the frame).
func Extract(payload []byte) []byte {
	pos := 0
	for {
		idx := bytes.Index(payload[pos:], startCode4)
		if idx < 0 {
			return nil
		}
		idx += pos

		typeOffset := idx + len(startCode4)
		if typeOffset >= len(payload) {
			return nil
		}
		if !vendorPrefixBytes[payload[typeOffset]] {
			return payload[idx:]
		}
		pos = idx + len(startCode4)
	}
}

// MediaMagicBytes is the big-endian encoding of the media channel's magic
// number, used by resync scanning to find the next frame boundary after a
// desync.
var MediaMagicBytes = []byte{0x05, 0x01, 0x11, 0x50}

// FindResyncPoint scans buf for the next occurrence of the media channel
// magic, returning its offset, or -1 if not found. Callers should discard
// everything before the returned offset and resume header parsing there.
func FindResyncPoint(buf []byte) int {
	return bytes.Index(buf, MediaMagicBytes)
}

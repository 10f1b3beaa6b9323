package nal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"hieasy-dvr-bridge/internal/wire"
)

// SubHeaderSize is the size of the per-frame sub-header that follows the
// 36-byte media channel header.
const SubHeaderSize = 44

// CodecH264 is the sub-header codec tag value for H.264 video frames.
const CodecH264 = 3

// ErrDesync is returned (wrapped) when the reader could not find the media
// channel magic to resynchronize after malformed input.
var ErrDesync = errors.New("nal: could not resynchronize media stream")

// Frame is one decoded media-channel frame.
type Frame struct {
	Codec uint32
	Data  []byte // extracted, clean H.264 bytes; never empty (Next skips frames that yield nothing)
}

// FrameReader reads framed media-channel messages from an underlying
// connection and extracts clean H.264 data, resynchronizing on wire
// desync the way the original implementation's iter_frames does.
type FrameReader struct {
	r   io.Reader
	buf []byte
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Next blocks until the next frame is available, returning it, or an error
// if the underlying reader failed or desync could not be resolved.
func (fr *FrameReader) Next() (*Frame, error) {
	for {
		hdrBuf := make([]byte, wire.HeaderSize)
		if _, err := io.ReadFull(fr.r, hdrBuf); err != nil {
			return nil, err
		}

		hdr, err := wire.UnmarshalHeader(hdrBuf)
		if err != nil {
			return nil, err
		}

		if hdr.Magic != wire.MediaMagic {
			if err := fr.resync(hdrBuf); err != nil {
				return nil, err
			}
			continue
		}

		payloadLen := hdr.Field3
		total := SubHeaderSize + int(payloadLen)
		rest := make([]byte, total)
		if _, err := io.ReadFull(fr.r, rest); err != nil {
			return nil, err
		}

		if len(rest) < SubHeaderSize {
			continue
		}
		subHeader := rest[:SubHeaderSize]
		payload := rest[SubHeaderSize:]

		var codec uint32
		if len(subHeader) >= 32+4 {
			codec = binary.BigEndian.Uint32(subHeader[32:36])
		}
		// Non-H.264 codec values pass through unfiltered; only the codec
		// tag itself is consulted, matching the wire format's own scope.

		if payloadLen == 0 {
			continue
		}

		data := Extract(payload)
		if data == nil {
			continue
		}

		return &Frame{Codec: codec, Data: data}, nil
	}
}

// resync is called when a candidate header didn't carry the media magic.
// It slides a 4-byte window byte-by-byte over the stream (starting from
// the misread header bytes) until the window equals the media magic, then
// reads the remaining bytes to reconstruct a full 36-byte header and
// pushes it back so the next Next() call resumes cleanly.
func (fr *FrameReader) resync(misread []byte) error {
	window := append([]byte(nil), misread[:4]...)
	const maxScan = 1 << 20 // bound the resync scan to 1MiB of garbage

	for scanned := 0; scanned < maxScan; scanned++ {
		if bytes.Equal(window, MediaMagicBytes) {
			need := wire.HeaderSize - 4
			extra := make([]byte, need)
			if _, err := io.ReadFull(fr.r, extra); err != nil {
				return err
			}
			full := append(append([]byte(nil), window...), extra...)
			fr.pushback(full)
			return nil
		}

		b := make([]byte, 1)
		if _, err := io.ReadFull(fr.r, b); err != nil {
			return err
		}
		window = append(window[1:], b...)
	}
	return ErrDesync
}

// pushback re-queues bytes to be returned by the next reads; implemented
// as a small internal reader wrapper so Next()'s io.ReadFull calls see
// them first.
func (fr *FrameReader) pushback(b []byte) {
	fr.r = io.MultiReader(newByteReader(b), fr.r)
}

type byteReaderWrapper struct {
	data []byte
	pos  int
}

func newByteReader(b []byte) *byteReaderWrapper {
	return &byteReaderWrapper{data: b}
}

func (b *byteReaderWrapper) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

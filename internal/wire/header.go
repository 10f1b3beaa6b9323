// Package wire implements the DVR's 36-byte binary header framing and
// null-terminated XML body codec, for both the command channel (port 5050)
// and the media channel (port 6050).
package wire

import "encoding/binary"

// HeaderSize is the fixed size of every message header on both channels.
const HeaderSize = 36

const (
	// CmdMagic identifies command-channel headers.
	CmdMagic uint32 = 0x05011154
	// MediaMagic identifies media-channel headers.
	MediaMagic uint32 = 0x05011150

	// ProtocolVersion is the fixed version field sent by this client.
	ProtocolVersion uint32 = 0x00001001

	// Field5Command is the constant value observed in field 5 of every
	// command-channel header.
	Field5Command uint32 = 3
)

// Header is the 36-byte frame header shared by both channels. Field names
// follow the wire layout rather than any semantic grouping: on the command
// channel Field3 is unused (0) and BodyLen carries the XML body length; on
// inbound media data frames Field3 carries the payload byte count instead.
type Header struct {
	Magic    uint32
	Version  uint32
	TxnID    uint32
	Field3   uint32
	BodyLen  uint32
	Field5   uint32
	Field6   uint32
	Field7   uint32
	Field8   uint32 // 0 for commands; media session id on media handshake
}

// Marshal encodes h as a 36-byte big-endian header.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.TxnID)
	binary.BigEndian.PutUint32(buf[12:16], h.Field3)
	binary.BigEndian.PutUint32(buf[16:20], h.BodyLen)
	binary.BigEndian.PutUint32(buf[20:24], h.Field5)
	binary.BigEndian.PutUint32(buf[24:28], h.Field6)
	binary.BigEndian.PutUint32(buf[28:32], h.Field7)
	binary.BigEndian.PutUint32(buf[32:36], h.Field8)
	return buf
}

// UnmarshalHeader decodes a 36-byte big-endian header.
func UnmarshalHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	return Header{
		Magic:   binary.BigEndian.Uint32(buf[0:4]),
		Version: binary.BigEndian.Uint32(buf[4:8]),
		TxnID:   binary.BigEndian.Uint32(buf[8:12]),
		Field3:  binary.BigEndian.Uint32(buf[12:16]),
		BodyLen: binary.BigEndian.Uint32(buf[16:20]),
		Field5:  binary.BigEndian.Uint32(buf[20:24]),
		Field6:  binary.BigEndian.Uint32(buf[24:28]),
		Field7:  binary.BigEndian.Uint32(buf[28:32]),
		Field8:  binary.BigEndian.Uint32(buf[32:36]),
	}, nil
}

// NewCommandHeader builds a command-channel header for an outbound message
// of the given body length (body length must include the trailing NUL).
func NewCommandHeader(txnID, bodyLen uint32) Header {
	return Header{
		Magic:   CmdMagic,
		Version: ProtocolVersion,
		TxnID:   txnID,
		Field3:  0,
		BodyLen: bodyLen,
		Field5:  Field5Command,
	}
}

// NewMediaHandshakeHeader builds the media-channel handshake header, which
// carries the media session id minted by RealStreamCreateReply in Field8.
// The DVR expects the fixed TxnID/BodyLen pair below rather than a real
// transaction id or body length; there is no XML body on this handshake.
func NewMediaHandshakeHeader(mediaSession uint32) Header {
	return Header{
		Magic:   MediaMagic,
		Version: ProtocolVersion,
		TxnID:   4,
		BodyLen: 3,
		Field8:  mediaSession,
	}
}

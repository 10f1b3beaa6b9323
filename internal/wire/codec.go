package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
)

var (
	// ErrShortHeader is returned when fewer than HeaderSize bytes are
	// available to decode a header.
	ErrShortHeader = errors.New("wire: short header")
	// ErrBadMagic is returned when a decoded header's magic does not match
	// the expected value for the channel.
	ErrBadMagic = errors.New("wire: bad magic")
)

// Message is a single framed protocol message: a header plus its body.
// On the command channel Body is a null-terminated XML document (the NUL
// is stripped by ReadMessage); on the media channel Body is the raw
// payload bytes described by header.Field3.
type Message struct {
	Header Header
	Body   []byte
}

// MakeXML wraps inner XML content in the command envelope and command id,
// returning the body bytes including the trailing NUL required by the
// wire format.
func MakeXML(id int, inner string) []byte {
	body := fmt.Sprintf(`<?xml version="1.0" encoding="GB2312"?><Command ID="%d">%s</Command>`, id, inner)
	return append([]byte(body), 0)
}

// PackCommand builds a full command-channel frame (header + XML body) for
// the given transaction id and inner XML command.
func PackCommand(txnID uint32, id int, inner string) []byte {
	body := MakeXML(id, inner)
	hdr := NewCommandHeader(txnID, uint32(len(body)))
	return append(hdr.Marshal(), body...)
}

// ReadMessage reads one framed message from r. On the command channel the
// trailing NUL is stripped from Body. The length field is chosen by magic:
// Field3 for media channel headers (MediaMagic), BodyLen for every other
// header (command channel).
func ReadMessage(r io.Reader) (*Message, error) {
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return nil, err
	}
	hdr, err := UnmarshalHeader(hdrBuf)
	if err != nil {
		return nil, err
	}

	length := hdr.BodyLen
	if hdr.Magic == MediaMagic {
		length = hdr.Field3
	}

	var body []byte
	if length > 0 {
		body = make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
	}

	if hdr.Magic == CmdMagic && len(body) > 0 && body[len(body)-1] == 0 {
		body = body[:len(body)-1]
	}

	return &Message{Header: hdr, Body: body}, nil
}

var cmdReplyPattern = regexp.MustCompile(`CmdReply="([^"]*)"`)
var attrPattern = func(name string) *regexp.Regexp {
	return regexp.MustCompile(name + `="([^"]*)"`)
}

// CmdReply extracts the CmdReply attribute from a command-reply XML body,
// or "" if absent.
func CmdReply(body []byte) string {
	m := cmdReplyPattern.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// Attr extracts a named XML attribute's value from body, or "" if absent.
func Attr(body []byte, name string) string {
	m := attrPattern(name).FindSubmatch(body)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// Tag returns the reply element tag name of an XML body, e.g.
// "LoginGetFlagReply" for "<LoginGetFlagReply .../>", used to file replies
// into the session mailbox. Real DVR bodies carry the
// `<?xml version="1.0" encoding="GB2312"?>` prolog and wrap the reply in a
// "<Command ID="...">" envelope (see MakeXML); Tag skips the prolog and
// descends into the envelope so callers always get the inner element name.
// Returns "" if no tag is found.
func Tag(body []byte) string {
	tag, rest := firstElement(body)
	if tag == "" {
		return ""
	}
	if tag == "?xml" {
		tag, rest = firstElement(rest)
		if tag == "" {
			return ""
		}
	}
	if tag == "Command" {
		if inner, _ := firstElement(rest); inner != "" {
			return inner
		}
	}
	return tag
}

// firstElement returns the tag name of the first XML element in body and
// the bytes following that element's start tag, so callers can descend
// into it. Returns "", nil if body has no element.
func firstElement(body []byte) (tag string, rest []byte) {
	i := bytes.IndexByte(body, '<')
	if i < 0 {
		return "", nil
	}
	body = body[i+1:]
	end := 0
	for end < len(body) {
		c := body[end]
		if c == ' ' || c == '>' || c == '/' || c == '\t' || c == '\n' {
			break
		}
		end++
	}
	if end == 0 {
		return "", nil
	}
	tag = string(body[:end])
	gt := bytes.IndexByte(body[end:], '>')
	if gt < 0 {
		return tag, nil
	}
	return tag, body[end+gt+1:]
}

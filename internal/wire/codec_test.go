package wire

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewCommandHeader(7, 123)
	buf := h.Marshal()
	if len(buf) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(buf))
	}

	got, err := UnmarshalHeader(buf)
	if err != nil {
		t.Fatalf("UnmarshalHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestUnmarshalHeaderShort(t *testing.T) {
	_, err := UnmarshalHeader(make([]byte, 10))
	if err != ErrShortHeader {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestMakeXMLIncludesTrailingNUL(t *testing.T) {
	body := MakeXML(26, `<LoginGetFlag />`)
	if body[len(body)-1] != 0 {
		t.Fatalf("expected trailing NUL, got %x", body[len(body)-1])
	}
	if !bytes.Contains(body, []byte(`ID="26"`)) {
		t.Fatalf("expected command id in body: %s", body)
	}
}

func TestPackCommandThenReadMessage(t *testing.T) {
	frame := PackCommand(1, 26, `<LoginGetFlag />`)

	msg, err := ReadMessage(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Header.Magic != CmdMagic {
		t.Fatalf("expected CmdMagic, got %x", msg.Header.Magic)
	}
	if msg.Header.TxnID != 1 {
		t.Fatalf("expected txn 1, got %d", msg.Header.TxnID)
	}
	if bytes.Contains(msg.Body, []byte{0}) {
		t.Fatalf("expected trailing NUL stripped from body: %q", msg.Body)
	}
	if Tag(msg.Body) != "LoginGetFlag" {
		t.Fatalf("expected inner tag LoginGetFlag, got %q", Tag(msg.Body))
	}
}

func TestReadMessageMediaFrame(t *testing.T) {
	payload := []byte("payload-bytes")
	hdr := Header{Magic: MediaMagic, Field3: uint32(len(payload))}
	frame := append(hdr.Marshal(), payload...)

	msg, err := ReadMessage(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !bytes.Equal(msg.Body, payload) {
		t.Fatalf("expected payload %q, got %q", payload, msg.Body)
	}
}

func TestCmdReplyAndAttr(t *testing.T) {
	body := []byte(`<UserLoginReply CmdReply="0" Version="1" />`)
	if CmdReply(body) != "0" {
		t.Fatalf("expected CmdReply 0, got %q", CmdReply(body))
	}
	if Attr(body, "Version") != "1" {
		t.Fatalf("expected Version 1, got %q", Attr(body, "Version"))
	}
	if Attr(body, "Missing") != "" {
		t.Fatalf("expected empty for missing attr, got %q", Attr(body, "Missing"))
	}
}

func TestTagVariants(t *testing.T) {
	cases := map[string]string{
		`<LoginGetFlagReply LoginFlag="1" />`: "LoginGetFlagReply",
		`<HeartBeatNotice/>`:                  "HeartBeatNotice",
		`no tag here`:                         "",
		`<?xml version="1.0" encoding="GB2312"?><Command ID="26"><LoginGetFlagReply LoginFlag="1" /></Command>`: "LoginGetFlagReply",
		`<?xml version="1.0" encoding="GB2312"?><Command ID="180"><HeartBeatNotice/></Command>`:                 "HeartBeatNotice",
	}
	for in, want := range cases {
		if got := Tag([]byte(in)); got != want {
			t.Errorf("Tag(%q) = %q, want %q", in, got, want)
		}
	}
}

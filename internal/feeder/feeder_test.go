package feeder

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"strconv"
	"testing"
	"time"

	"hieasy-dvr-bridge/internal/dvrclient"
	"hieasy-dvr-bridge/internal/nal"
	"hieasy-dvr-bridge/internal/wire"
)

func TestClassifyConnectError(t *testing.T) {
	if classifyConnectError(dvrclient.ErrAuthFailed) != ExitProtocolError {
		t.Fatal("expected auth failure to classify as protocol error")
	}
	if classifyConnectError(dvrclient.ErrDialFailed) != ExitNetworkFailure {
		t.Fatal("expected dial failure to classify as network failure")
	}
}

func TestClassifyStreamError(t *testing.T) {
	if classifyStreamError(dvrclient.ErrHeartbeatTimeout) != ExitNetworkFailure {
		t.Fatal("expected heartbeat timeout to classify as network failure")
	}
	if classifyStreamError(dvrclient.ErrProtocolError) != ExitProtocolError {
		t.Fatal("expected protocol error to classify as protocol error")
	}
}

// fakeDVRWithStream serves the full login + stream-open + one-frame
// sequence on two listeners, mimicking a real DVR closely enough to drive
// feeder.Run end to end.
func fakeDVRWithStream(t *testing.T) (cmdAddr, mediaAddr string) {
	t.Helper()
	cmdLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen cmd: %v", err)
	}
	mediaLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen media: %v", err)
	}

	go func() {
		conn, err := cmdLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		if msg, err := wire.ReadMessage(conn); err != nil || wire.Tag(msg.Body) != "LoginGetFlag" {
			return
		}
		conn.Write(wire.PackCommand(1, wire.CmdLoginGetFlagReply, `<LoginGetFlagReply LoginFlag="7" />`))

		if msg, err := wire.ReadMessage(conn); err != nil || wire.Tag(msg.Body) != "UserLogin" {
			return
		}
		conn.Write(wire.PackCommand(2, wire.CmdUserLoginReply, `<UserLoginReply CmdReply="0" />`))

		if msg, err := wire.ReadMessage(conn); err != nil || wire.Tag(msg.Body) != "RealStreamCreateRequest" {
			return
		}
		conn.Write(wire.PackCommand(3, wire.CmdRealStreamCreateReply, `<RealStreamCreateReply MediaSession="99" />`))

		if msg, err := wire.ReadMessage(conn); err != nil || wire.Tag(msg.Body) != "RealStreamStartRequest" {
			return
		}
		conn.Write(wire.PackCommand(4, wire.CmdRealStreamStartReply, `<RealStreamStartReply CmdReply="0" />`))

		buf := make([]byte, 4096)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	go func() {
		conn, err := mediaLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		hdrBuf := make([]byte, wire.HeaderSize)
		if _, err := readFullTest(conn, hdrBuf); err != nil {
			return
		}
		conn.Write(hdrBuf) // echo handshake header

		payload := append([]byte{0, 0, 0, 1, 0xC7}, make([]byte, 17)...)
		payload = append(payload, []byte{0, 0, 0, 1, 0x67, 0xAA}...)

		subHeader := make([]byte, nal.SubHeaderSize)
		binary.BigEndian.PutUint32(subHeader[32:36], nal.CodecH264)

		hdr := wire.Header{Magic: wire.MediaMagic, Field3: uint32(len(payload))}
		conn.Write(hdr.Marshal())
		conn.Write(subHeader)
		conn.Write(payload)

		// hold the connection open briefly, then close to end the stream.
		time.Sleep(50 * time.Millisecond)
	}()

	return cmdLn.Addr().String(), mediaLn.Addr().String()
}

func readFullTest(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestRunStreamsOneFrameThenExitsOnServerClose(t *testing.T) {
	cmdAddr, mediaAddr := fakeDVRWithStream(t)
	cmdHost, cmdPortStr, _ := net.SplitHostPort(cmdAddr)
	_, mediaPortStr, _ := net.SplitHostPort(mediaAddr)
	cmdPort, _ := strconv.Atoi(cmdPortStr)
	mediaPort, _ := strconv.Atoi(mediaPortStr)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var out bytes.Buffer
	code := Run(ctx, &out, Options{
		Host:       cmdHost,
		CmdPort:    cmdPort,
		MediaPort:  mediaPort,
		Username:   "admin",
		Password:   "123456",
		Channel:    0,
		StreamType: 0,
	})

	if code != ExitClean && code != ExitNetworkFailure {
		t.Fatalf("expected clean or network-failure exit after server closes, got %v", code)
	}
	want := []byte{0, 0, 0, 1, 0x67, 0xAA}
	if !bytes.Contains(out.Bytes(), want) {
		t.Fatalf("expected extracted NAL %x in output, got %x", want, out.Bytes())
	}
}

// Package dvrclient implements the command/media channel client for a
// single DVR: login, stream setup, heartbeat handling, and H.264 frame
// delivery.
package dvrclient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"hieasy-dvr-bridge/internal/cipher"
	"hieasy-dvr-bridge/internal/config"
	"hieasy-dvr-bridge/internal/logging"
	"hieasy-dvr-bridge/internal/nal"
	"hieasy-dvr-bridge/internal/wire"
)

// State is a session's position in the connect → stream → close lifecycle.
type State int

const (
	Disconnected State = iota
	CmdOpen
	LoggedIn
	HaveSession
	Streaming
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case CmdOpen:
		return "CmdOpen"
	case LoggedIn:
		return "LoggedIn"
	case HaveSession:
		return "HaveSession"
	case Streaming:
		return "Streaming"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// Frame is one H.264 chunk delivered by Frames, or a terminal error.
type Frame struct {
	Data []byte
	Err  error
}

// Session is one login+stream lifecycle against a single DVR. All methods
// are safe for concurrent use; GetConfig may be called while Streaming.
type Session struct {
	host     string
	cmdPort  int
	username string
	password string

	sendMu  sync.Mutex // serializes txn_id allocation and cmd socket writes
	nextTxn uint32
	cmdConn net.Conn

	stateMu sync.RWMutex
	state   State

	mediaConn    net.Conn
	mediaSession uint32

	box *mailbox

	dead         atomic.Bool
	deadReason   atomic.Value // error; set once alongside dead
	lastActivity atomic.Int64 // unix nanos of last inbound command-channel byte

	closeOnce sync.Once
	readerWg  sync.WaitGroup
}

// Connect dials the command channel, performs the login handshake, and
// starts the background reader and heartbeat watchdog. On any failure the
// command socket is closed and an error wrapping one of ErrDialFailed,
// ErrAuthFailed, ErrTimeout or ErrProtocolError is returned.
func Connect(ctx context.Context, host string, cmdPort int, username, password string) (*Session, error) {
	dialer := net.Dialer{Timeout: config.LoginTimeoutSeconds * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, cmdPort))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tuneKeepalive(tc); err != nil {
			logging.Warn("dvrclient: keepalive tuning failed", "host", host, "err", err)
		}
	}

	s := &Session{
		host:     host,
		cmdPort:  cmdPort,
		username: username,
		password: password,
		cmdConn:  conn,
		nextTxn:  0,
		box:      newMailbox(),
	}
	s.setState(CmdOpen)
	s.touch()

	s.readerWg.Add(1)
	go s.readerLoop()
	go s.heartbeatWatchdog()

	if err := s.login(ctx); err != nil {
		s.teardown()
		return nil, err
	}
	s.setState(LoggedIn)
	return s, nil
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// markDead marks the session dead with reason (idempotent-ish: the first
// caller's reason wins) and wakes any mailbox waiters.
func (s *Session) markDead(reason error) {
	if s.dead.CompareAndSwap(false, true) {
		s.deadReason.Store(reason)
	}
	s.box.closeMailbox()
}

// login performs LoginGetFlag → compute token → UserLogin.
func (s *Session) login(ctx context.Context) error {
	deadline := time.Now().Add(config.LoginTimeoutSeconds * time.Second)
	if err := s.sendCmd(wire.CmdLoginGetFlag, fmt.Sprintf(`<LoginGetFlag UserName="%s" />`, s.username)); err != nil {
		return fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	body, ok := s.box.waitFor("LoginGetFlagReply", time.Until(deadline))
	if !ok {
		return fmt.Errorf("%w: no LoginGetFlagReply", ErrTimeout)
	}
	nonce := wire.Attr(body, "LoginFlag")
	if nonce == "" {
		return fmt.Errorf("%w: LoginGetFlagReply missing LoginFlag", ErrProtocolError)
	}
	logging.Info("dvrclient: login flag received", "host", s.host, "nonce", nonce)

	token := cipher.ComputeHash(nonce, s.password)

	loginXML := fmt.Sprintf(
		`<UserLogin UserName="%s" UserIP="192.168.1.1" UserMAC="00:00:00:00:00:00" LoginFlag="%s" />`,
		s.username, token,
	)
	if err := s.sendCmd(wire.CmdUserLogin, loginXML); err != nil {
		return fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	body, ok = s.box.waitFor("UserLoginReply", time.Until(deadline))
	if !ok {
		return fmt.Errorf("%w: no UserLoginReply", ErrTimeout)
	}
	if wire.CmdReply(body) != "0" {
		return fmt.Errorf("%w: CmdReply=%q", ErrAuthFailed, wire.CmdReply(body))
	}
	logging.Info("dvrclient: login successful", "host", s.host, "user", s.username)
	return nil
}

// OpenStream creates a real-time stream on channel/streamType, connects the
// media channel and starts it. On return the session is Streaming and
// Frames() may be called.
func (s *Session) OpenStream(ctx context.Context, channel, streamType, mediaPort int) error {
	if !config.IsValidChannel(channel) {
		return ErrInvalidChannel
	}
	if s.State() != LoggedIn {
		return ErrNotLoggedIn
	}

	createXML := fmt.Sprintf(`<RealStreamCreateRequest Channel="%d" Mode="%d" Type="1" />`, channel, streamType)
	if err := s.sendCmd(wire.CmdRealStreamCreate, createXML); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamCreateFailed, err)
	}
	body, ok := s.box.waitFor("RealStreamCreateReply", config.CommandReplyTimeoutSeconds*time.Second)
	if !ok {
		return fmt.Errorf("%w: no RealStreamCreateReply", ErrTimeout)
	}
	sessionAttr := wire.Attr(body, "MediaSession")
	if sessionAttr == "" {
		return fmt.Errorf("%w: RealStreamCreateReply missing MediaSession", ErrStreamCreateFailed)
	}
	var mediaSession uint32
	if _, err := fmt.Sscanf(sessionAttr, "%d", &mediaSession); err != nil {
		return fmt.Errorf("%w: bad MediaSession %q", ErrStreamCreateFailed, sessionAttr)
	}
	s.mediaSession = mediaSession
	s.setState(HaveSession)
	logging.Info("dvrclient: media session assigned", "host", s.host, "session", mediaSession)

	dialer := net.Dialer{Timeout: config.MediaHandshakeTimeoutSeconds * time.Second}
	mediaConn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", s.host, mediaPort))
	if err != nil {
		return fmt.Errorf("%w: media dial: %v", ErrStreamCreateFailed, err)
	}
	if tc, ok := mediaConn.(*net.TCPConn); ok {
		if err := tuneKeepalive(tc); err != nil {
			logging.Warn("dvrclient: media keepalive tuning failed", "host", s.host, "err", err)
		}
	}

	handshake := wire.NewMediaHandshakeHeader(mediaSession)
	if _, err := mediaConn.Write(handshake.Marshal()); err != nil {
		mediaConn.Close()
		return fmt.Errorf("%w: media handshake write: %v", ErrStreamCreateFailed, err)
	}
	echo := make([]byte, wire.HeaderSize)
	mediaConn.SetReadDeadline(time.Now().Add(config.MediaHandshakeTimeoutSeconds * time.Second))
	if _, err := readFull(mediaConn, echo); err != nil {
		mediaConn.Close()
		return fmt.Errorf("%w: media handshake reply: %v", ErrStreamCreateFailed, err)
	}
	mediaConn.SetReadDeadline(time.Time{})
	s.mediaConn = mediaConn

	startXML := fmt.Sprintf(`<RealStreamStartRequest MediaSession="%d" />`, mediaSession)
	if err := s.sendCmd(wire.CmdRealStreamStart, startXML); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamStartFailed, err)
	}
	if _, ok := s.box.waitFor("RealStreamStartReply", config.CommandReplyTimeoutSeconds*time.Second); !ok {
		return fmt.Errorf("%w: no RealStreamStartReply", ErrTimeout)
	}

	s.setState(Streaming)
	logging.Info("dvrclient: streaming", "host", s.host, "channel", channel)
	return nil
}

// Frames returns a channel of H.264 byte slices read from the media
// connection. The channel is closed after the final Frame, whose Err is
// non-nil, unless Close was called first (in which case the channel is
// closed without an error Frame).
func (s *Session) Frames() <-chan Frame {
	out := make(chan Frame, 16)
	go func() {
		defer close(out)
		fr := nal.NewFrameReader(s.mediaConn)
		for {
			if s.State() == Closing || s.State() == Disconnected {
				return
			}
			if s.dead.Load() {
				if reason, _ := s.deadReason.Load().(error); reason != nil {
					out <- Frame{Err: reason}
				}
				return
			}
			frame, err := fr.Next()
			if err != nil {
				if s.State() != Closing {
					reason, _ := s.deadReason.Load().(error)
					if reason == nil {
						reason = fmt.Errorf("%w: %v", ErrMediaReadError, err)
					}
					out <- Frame{Err: reason}
				}
				return
			}
			out <- Frame{Data: frame.Data}
		}
	}()
	return out
}

// GetConfig requests the named main-command config type and returns its raw
// XML payload. Safe to call concurrently with an active stream.
func (s *Session) GetConfig(mainCmd int) (string, error) {
	if s.State() == Disconnected || s.State() == Closing {
		return "", ErrNotLoggedIn
	}
	xml := fmt.Sprintf(`<GetCfgRequest MainCmd="%d" />`, mainCmd)
	if err := s.sendCmd(wire.CmdGetCfg, xml); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotLoggedIn, err)
	}
	body, ok := s.box.waitFor("GetCfgReply", config.CommandReplyTimeoutSeconds*time.Second)
	if !ok {
		return "", fmt.Errorf("%w: no GetCfgReply", ErrTimeout)
	}
	return string(body), nil
}

// GetConfigParsed is GetConfig followed by ParseConfigReply, for callers
// that want structured data rather than the raw XML.
func (s *Session) GetConfigParsed(mainCmd int) (ConfigReply, error) {
	raw, err := s.GetConfig(mainCmd)
	if err != nil {
		return ConfigReply{}, err
	}
	return ParseConfigReply([]byte(raw)), nil
}

// Close gracefully tears the session down: stop → destroy → logout, then
// closes both sockets. Best-effort — errors sending the teardown commands
// are logged, not returned, since the sockets are closed regardless.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.setState(Closing)

		if !s.dead.Load() {
			if s.mediaSession != 0 {
				stopXML := fmt.Sprintf(`<RealStreamStopRequest MediaSession="%d" />`, s.mediaSession)
				if err := s.sendCmd(wire.CmdRealStreamStop, stopXML); err != nil {
					logging.Warn("dvrclient: stream stop failed", "host", s.host, "err", err)
				}
				time.Sleep(200 * time.Millisecond)

				destroyXML := fmt.Sprintf(`<RealStreamDestroyRequest MediaSession="%d" />`, s.mediaSession)
				if err := s.sendCmd(wire.CmdRealStreamDestroy, destroyXML); err != nil {
					logging.Warn("dvrclient: stream destroy failed", "host", s.host, "err", err)
				}
				time.Sleep(200 * time.Millisecond)
			}

			logoutXML := fmt.Sprintf(`<Logout UserName="%s" />`, s.username)
			if err := s.sendCmd(wire.CmdLogout, logoutXML); err != nil {
				logging.Warn("dvrclient: logout failed", "host", s.host, "err", err)
			}
		}

		s.teardown()
		logging.Info("dvrclient: closed", "host", s.host)
	})
}

func (s *Session) teardown() {
	s.dead.Store(true)
	s.box.closeMailbox()
	if s.mediaConn != nil {
		s.mediaConn.Close()
	}
	if s.cmdConn != nil {
		s.cmdConn.Close()
	}
	s.readerWg.Wait()
	s.setState(Disconnected)
}

// sendCmd allocates a transaction id and writes a framed command, serialized
// against every other writer.
func (s *Session) sendCmd(id int, inner string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.nextTxn++
	frame := wire.PackCommand(s.nextTxn, id, inner)
	_, err := s.cmdConn.Write(frame)
	return err
}

// sendCmdTxn writes a framed command under an explicit transaction id
// rather than allocating a fresh one. Used for HeartBeatReply, which must
// echo the triggering HeartBeatNotice's TxnID.
func (s *Session) sendCmdTxn(txn uint32, id int, inner string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	frame := wire.PackCommand(txn, id, inner)
	_, err := s.cmdConn.Write(frame)
	return err
}

// readerLoop is the single reader of the command socket: it demultiplexes
// unsolicited HeartBeatNotice messages (replying inline) from everything
// else, which is filed into the mailbox by tag for waitFor callers.
func (s *Session) readerLoop() {
	defer s.readerWg.Done()
	for {
		msg, err := wire.ReadMessage(s.cmdConn)
		if err != nil {
			if !s.dead.Load() {
				logging.Warn("dvrclient: command socket read error", "host", s.host, "err", err)
			}
			s.markDead(fmt.Errorf("%w: %v", ErrProtocolError, err))
			return
		}
		s.touch()

		tag := wire.Tag(msg.Body)
		if tag == "" {
			continue
		}
		if tag == "HeartBeatNotice" {
			if s.State() == CmdOpen {
				continue // no HeartBeatReply before login completes
			}
			reply := `<HeartBeatNoticeReply CmdReply="0" NetDataFlow="0" NetHistoryDataFlow="0" />`
			if err := s.sendCmdTxn(msg.Header.TxnID, wire.CmdHeartBeatReply, reply); err != nil {
				logging.Warn("dvrclient: heartbeat reply failed", "host", s.host, "err", err)
			}
			continue
		}
		s.box.file(tag, msg.Body)
	}
}

// heartbeatWatchdog transitions the session dead if no command-channel
// bytes have arrived within the tolerated gap.
func (s *Session) heartbeatWatchdog() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if s.dead.Load() || s.State() == Disconnected {
			return
		}
		last := time.Unix(0, s.lastActivity.Load())
		if time.Since(last) > time.Duration(config.HeartbeatGapSeconds)*time.Second {
			logging.Warn("dvrclient: heartbeat gap exceeded, marking session dead", "host", s.host)
			s.markDead(ErrHeartbeatTimeout)
			return
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
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

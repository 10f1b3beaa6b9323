package dvrclient

import (
	"net"

	"golang.org/x/sys/unix"

	"hieasy-dvr-bridge/internal/config"
)

// tuneKeepalive enables OS-level TCP keepalive on conn with aggressive
// timers, so a silently-dropped connection (NAT timeout, DVR power cycle)
// is caught by the kernel well before the 60s application heartbeat gap.
// Best-effort: failures are returned but callers may choose to ignore them
// on platforms where these sockopts aren't tunable.
func tuneKeepalive(conn *net.TCPConn) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}

	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, config.KeepaliveIdleSeconds); e != nil {
			sockErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, config.KeepaliveIntervalSeconds); e != nil {
			sockErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, config.KeepaliveProbeCount); e != nil {
			sockErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

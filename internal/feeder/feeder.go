// Package feeder connects to one DVR channel and writes raw H.264 to a
// sink, the way cmd/feeder pipes it to stdout for a downstream transcoder.
package feeder

import (
	"context"
	"errors"
	"io"

	"hieasy-dvr-bridge/internal/dvrclient"
	"hieasy-dvr-bridge/internal/logging"
)

// Options configures one feed run.
type Options struct {
	Host       string
	CmdPort    int
	MediaPort  int
	Username   string
	Password   string
	Channel    int
	StreamType int
}

// ExitCode classifies how Run ended, matching the feeder CLI's exit status
// contract: 0 clean, 1 auth/protocol failure, 2 network failure.
type ExitCode int

const (
	ExitClean          ExitCode = 0
	ExitProtocolError  ExitCode = 1
	ExitNetworkFailure ExitCode = 2
)

// Run connects to the DVR, opens the requested stream, and copies H.264
// frames to w until ctx is cancelled or the session ends. It classifies
// the terminal condition into one of the CLI exit codes.
func Run(ctx context.Context, w io.Writer, opts Options) ExitCode {
	sess, err := dvrclient.Connect(ctx, opts.Host, opts.CmdPort, opts.Username, opts.Password)
	if err != nil {
		logging.Error("feeder: connect failed", "host", opts.Host, "err", err)
		return classifyConnectError(err)
	}
	defer sess.Close()

	if err := sess.OpenStream(ctx, opts.Channel, opts.StreamType, opts.MediaPort); err != nil {
		logging.Error("feeder: open stream failed", "channel", opts.Channel, "err", err)
		return classifyConnectError(err)
	}

	logging.Info("feeder: streaming", "host", opts.Host, "channel", opts.Channel)

	frames := sess.Frames()
	for {
		select {
		case <-ctx.Done():
			return ExitClean
		case frame, ok := <-frames:
			if !ok {
				return ExitClean
			}
			if frame.Err != nil {
				logging.Error("feeder: stream ended", "err", frame.Err)
				return classifyStreamError(frame.Err)
			}
			if _, err := w.Write(frame.Data); err != nil {
				if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) {
					logging.Info("feeder: sink closed, stopping")
					return ExitClean
				}
				logging.Info("feeder: write error, stopping", "err", err)
				return ExitClean
			}
		}
	}
}

func classifyConnectError(err error) ExitCode {
	switch {
	case errors.Is(err, dvrclient.ErrAuthFailed), errors.Is(err, dvrclient.ErrProtocolError):
		return ExitProtocolError
	default:
		return ExitNetworkFailure
	}
}

func classifyStreamError(err error) ExitCode {
	switch {
	case errors.Is(err, dvrclient.ErrHeartbeatTimeout), errors.Is(err, dvrclient.ErrMediaReadError):
		return ExitNetworkFailure
	default:
		return ExitProtocolError
	}
}

// Package ingest supervises the on-demand feeder→transcoder pipeline that
// republishes one DVR channel to the RTSP server, restarting it with
// exponential backoff on unexpected exit.
package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"hieasy-dvr-bridge/internal/logging"
)

// ChannelOptions describes what one channel's pipeline needs to run.
type ChannelOptions struct {
	Channel     int
	StreamType  int
	Host        string
	CmdPort     int
	MediaPort   int
	Username    string
	Password    string
	RTSPBaseURL string
}

// commandBuilder produces the two commands making up one pipeline run. It
// is a field on Supervisor (not a package var) so tests can substitute
// lightweight stand-ins for the real feeder binary and ffmpeg.
type commandBuilder func(ctx context.Context, opts ChannelOptions, runID string) (feederCmd, transcoderCmd *exec.Cmd)

func defaultCommandBuilder(feederPath, transcoderPath string) commandBuilder {
	return func(ctx context.Context, opts ChannelOptions, runID string) (*exec.Cmd, *exec.Cmd) {
		feederCmd := exec.CommandContext(ctx, feederPath,
			"--channel", fmt.Sprint(opts.Channel),
			"--stream-type", fmt.Sprint(opts.StreamType),
			"--host", opts.Host,
			"--cmd-port", fmt.Sprint(opts.CmdPort),
			"--media-port", fmt.Sprint(opts.MediaPort),
			"--username", opts.Username,
			"--password", opts.Password,
		)

		rtspURL := fmt.Sprintf("%s/ch%d", opts.RTSPBaseURL, opts.Channel)
		transcoderCmd := exec.CommandContext(ctx, transcoderPath,
			"-fflags", "+genpts",
			"-r", "25",
			"-f", "h264",
			"-i", "pipe:0",
			"-c", "copy",
			"-f", "rtsp",
			rtspURL,
		)
		return feederCmd, transcoderCmd
	}
}

// pipeline is one channel's supervised feeder→transcoder run loop.
type pipeline struct {
	channel int
	opts    ChannelOptions
	build   commandBuilder

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopped  bool
	wg       sync.WaitGroup
}

func newPipeline(opts ChannelOptions, build commandBuilder) *pipeline {
	return &pipeline{channel: opts.Channel, opts: opts, build: build}
}

// start is idempotent: calling it on an already-running pipeline is a no-op.
func (p *pipeline) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.stopped = false

	p.wg.Add(1)
	go p.runLoop(ctx)
}

// stop is idempotent: calling it on an already-stopped pipeline is a no-op.
// It blocks until the run loop has fully exited.
func (p *pipeline) stop() {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

func (p *pipeline) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *pipeline) runLoop(ctx context.Context) {
	defer p.wg.Done()

	var backoff time.Duration
	for {
		if ctx.Err() != nil {
			return
		}

		runID := uuid.NewString()
		startedAt := time.Now()
		err := p.runOnce(ctx, runID)
		uptime := time.Since(startedAt)

		if p.isStopped() || ctx.Err() != nil {
			return
		}
		if err == nil {
			logging.Info("ingest: pipeline exited cleanly", "channel", p.channel, "run", runID)
		} else {
			logging.Warn("ingest: pipeline exited unexpectedly", "channel", p.channel, "run", runID, "err", err, "uptime", uptime)
		}

		backoff = backoffAfterUptime(backoff, uptime)
		logging.Info("ingest: restarting pipeline", "channel", p.channel, "delay", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// runOnce spawns one feeder+transcoder pair, pipes feeder stdout into the
// transcoder's stdin, and blocks until either exits or ctx is cancelled.
func (p *pipeline) runOnce(ctx context.Context, runID string) error {
	feederCmd, transcoderCmd := p.build(ctx, p.opts, runID)

	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("ingest: create pipe: %w", err)
	}
	feederCmd.Stdout = pipeW
	transcoderCmd.Stdin = pipeR

	logging.Info("ingest: starting pipeline", "channel", p.channel, "run", runID)

	if err := feederCmd.Start(); err != nil {
		pipeR.Close()
		pipeW.Close()
		return fmt.Errorf("ingest: start feeder: %w", err)
	}
	if err := transcoderCmd.Start(); err != nil {
		pipeR.Close()
		pipeW.Close()
		feederCmd.Process.Kill()
		feederCmd.Wait()
		return fmt.Errorf("ingest: start transcoder: %w", err)
	}

	// The write end must be closed in this process once both children hold
	// their own copies, or the transcoder will never see EOF when the
	// feeder exits.
	pipeW.Close()
	pipeR.Close()

	feederErrCh := make(chan error, 1)
	transcoderErrCh := make(chan error, 1)
	go func() { feederErrCh <- feederCmd.Wait() }()
	go func() { transcoderErrCh <- transcoderCmd.Wait() }()

	var resultErr error
	select {
	case err := <-feederErrCh:
		resultErr = err
		transcoderCmd.Process.Kill()
		<-transcoderErrCh
	case err := <-transcoderErrCh:
		resultErr = err
		feederCmd.Process.Kill()
		<-feederErrCh
	case <-ctx.Done():
		feederCmd.Process.Kill()
		transcoderCmd.Process.Kill()
		<-feederErrCh
		<-transcoderErrCh
		return nil
	}
	return resultErr
}

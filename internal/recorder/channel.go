package recorder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"hieasy-dvr-bridge/internal/backoff"
	"hieasy-dvr-bridge/internal/logging"
)

const scheduleCheckInterval = time.Minute

var segmenterRestartPolicy = backoff.Policy{
	Initial:    3 * time.Second,
	Max:        30 * time.Second,
	ResetAfter: 60 * time.Second,
}

// segmentBuilder produces the segmenting transcoder command for one run.
// Injectable so tests can substitute a lightweight stand-in for ffmpeg.
type segmentBuilder func(ctx context.Context, channel int, dir string, opts Options, runID string) *exec.Cmd

func defaultSegmentBuilder(transcoderPath string) segmentBuilder {
	return func(ctx context.Context, channel int, dir string, opts Options, runID string) *exec.Cmd {
		src := fmt.Sprintf("%s/ch%d", opts.RTSPBaseURL, channel)
		pattern := filepath.Join(dir, "%Y-%m-%dT%H-%M-%SZ.mp4")
		segSeconds := opts.SegmentMinutes * 60

		cmd := exec.CommandContext(ctx, transcoderPath,
			"-y",
			"-i", src,
			"-c", "copy",
			"-f", "segment",
			"-segment_time", fmt.Sprint(segSeconds),
			"-segment_format", "mp4",
			"-strftime", "1",
			"-reset_timestamps", "1",
			pattern,
		)
		// File names encode UTC start time regardless of host timezone.
		cmd.Env = append(os.Environ(), "TZ=UTC")
		return cmd
	}
}

// ChannelStatus is a snapshot of one channel's recorder state.
type ChannelStatus struct {
	Channel   int
	Armed     bool
	Recording bool
	State     string
	Segments  int
	StartedAt time.Time
}

// channelRecorder supervises the schedule-gated segmenter for one channel.
type channelRecorder struct {
	channel int
	dir     string
	opts    Options
	build   segmentBuilder
	sink    EventSink
	onSeg   func(path string, channel int)

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup

	armed      atomic.Bool
	cmdMu      sync.Mutex
	currentCmd *exec.Cmd

	statusMu sync.Mutex
	status   ChannelStatus
}

func newChannelRecorder(channel int, opts Options, build segmentBuilder, sink EventSink, onSeg func(string, int)) *channelRecorder {
	if sink == nil {
		sink = discardSink{}
	}
	return &channelRecorder{
		channel: channel,
		dir:     channelDir(opts.RecordDir, channel),
		opts:    opts,
		build:   build,
		sink:    sink,
		onSeg:   onSeg,
		status:  ChannelStatus{Channel: channel, State: "starting"},
	}
}

func (c *channelRecorder) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		logging.Error("recorder: create channel dir failed", "channel", c.channel, "err", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.stopped = false
	c.armed.Store(c.opts.Schedule.Armed(time.Now().Hour()))
	c.wg.Add(2)
	go c.scheduleLoop(ctx)
	go c.segmentRunLoop(ctx)
}

func (c *channelRecorder) stop() {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

func (c *channelRecorder) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *channelRecorder) snapshot() ChannelStatus {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

func (c *channelRecorder) setState(state string) {
	c.statusMu.Lock()
	c.status.State = state
	c.statusMu.Unlock()
}

// scheduleLoop re-evaluates arming every minute and toggles the armed flag
// segmentRunLoop watches. On a disarm transition it nudges the currently
// running segmenter with a graceful stop signal rather than killing it, so
// the in-flight segment file is closed out properly instead of truncated.
func (c *channelRecorder) scheduleLoop(ctx context.Context) {
	defer c.wg.Done()

	if !c.armed.Load() {
		c.setState("waiting_schedule")
	}

	ticker := time.NewTicker(scheduleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nowArmed := c.opts.Schedule.Armed(time.Now().Hour())
			wasArmed := c.armed.Swap(nowArmed)
			if nowArmed == wasArmed {
				continue
			}
			if nowArmed {
				c.sink.Publish(Event{Kind: EventArmed, Channel: c.channel})
			} else {
				c.sink.Publish(Event{Kind: EventDisarmed, Channel: c.channel})
				c.setState("waiting_schedule")
				c.requestGracefulStop()
			}
		}
	}
}

// requestGracefulStop sends SIGINT to the in-flight segmenter, if any, so
// it finalizes its current output file instead of being hard-killed.
// segmentRunLoop's own exit handling takes it from there.
func (c *channelRecorder) requestGracefulStop() {
	c.cmdMu.Lock()
	cmd := c.currentCmd
	c.cmdMu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		logging.Warn("recorder: graceful stop signal failed", "channel", c.channel, "err", err)
	}
}

// segmentRunLoop keeps a segmenter running whenever the channel is armed,
// restarting it with exponential backoff on unexpected exit, and idling
// (checking once a minute) whenever disarmed.
func (c *channelRecorder) segmentRunLoop(ctx context.Context) {
	defer c.wg.Done()

	var backoffDur time.Duration
	for {
		if ctx.Err() != nil {
			return
		}

		if !c.armed.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(scheduleCheckInterval):
			}
			continue
		}

		free, err := freeDiskMB(c.opts.RecordDir)
		if err == nil && c.opts.MinDiskMB > 0 && free < c.opts.MinDiskMB {
			c.setState("disk_full")
			c.sink.Publish(Event{Kind: EventDiskFull, Channel: c.channel, Message: fmt.Sprintf("%dMB free", free)})
			select {
			case <-ctx.Done():
				return
			case <-time.After(scheduleCheckInterval):
			}
			continue
		}

		runID := uuid.NewString()
		startedAt := time.Now()
		c.statusMu.Lock()
		c.status.State = "recording"
		c.status.Recording = true
		c.status.StartedAt = startedAt
		c.statusMu.Unlock()

		err = c.runOnce(ctx, runID)
		uptime := time.Since(startedAt)

		c.statusMu.Lock()
		c.status.Recording = false
		c.statusMu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logging.Warn("recorder: segmenter exited unexpectedly", "channel", c.channel, "run", runID, "err", err, "uptime", uptime)
		} else {
			logging.Info("recorder: segmenter exited", "channel", c.channel, "run", runID, "uptime", uptime)
		}

		if !c.armed.Load() {
			// exit was our own graceful-stop nudge, not a crash: no backoff.
			continue
		}
		backoffDur = segmenterRestartPolicy.AfterUptime(backoffDur, uptime)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoffDur):
		}
	}
}

func (c *channelRecorder) runOnce(ctx context.Context, runID string) error {
	cmd := c.build(ctx, c.channel, c.dir, c.opts, runID)
	logging.Info("recorder: starting segmenter", "channel", c.channel, "run", runID)

	before := listSegments(c.dir)

	c.cmdMu.Lock()
	c.currentCmd = cmd
	c.cmdMu.Unlock()

	err := cmd.Run()

	c.cmdMu.Lock()
	c.currentCmd = nil
	c.cmdMu.Unlock()

	c.noteNewSegments(before)
	return err
}

// noteNewSegments diffs the directory listing to find files this run
// produced and hands them to the upload queue and status counter.
func (c *channelRecorder) noteNewSegments(before map[string]bool) {
	after := listSegments(c.dir)
	newCount := 0
	for name := range after {
		if !before[name] {
			newCount++
			if c.onSeg != nil {
				c.onSeg(filepath.Join(c.dir, name), c.channel)
			}
			c.sink.Publish(Event{Kind: EventSegmentClosed, Channel: c.channel, Message: name})
		}
	}
	c.statusMu.Lock()
	c.status.Segments += newCount
	c.statusMu.Unlock()
}

func listSegments(dir string) map[string]bool {
	out := make(map[string]bool)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".mp4" {
			out[e.Name()] = true
		}
	}
	return out
}

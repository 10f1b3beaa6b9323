package controlplane

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"hieasy-dvr-bridge/internal/backoff"
	"hieasy-dvr-bridge/internal/logging"
)

var rtspRestartPolicy = backoff.Policy{
	Initial:    3 * time.Second,
	Max:        30 * time.Second,
	ResetAfter: 60 * time.Second,
}

// rtspSupervisor spawns and restarts the embedded RTSP server binary,
// which every ingest and recorder pipeline publishes to and pulls from.
type rtspSupervisor struct {
	path       string
	configPath string
	build      func(ctx context.Context, path, configPath string) *exec.Cmd

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func defaultRTSPBuilder(ctx context.Context, path, configPath string) *exec.Cmd {
	if configPath == "" {
		return exec.CommandContext(ctx, path)
	}
	return exec.CommandContext(ctx, path, configPath)
}

func newRTSPSupervisor(path, configPath string) *rtspSupervisor {
	return &rtspSupervisor{path: path, configPath: configPath, build: defaultRTSPBuilder}
}

func (r *rtspSupervisor) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil || r.path == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.stopped = false
	r.wg.Add(1)
	go r.runLoop(ctx)
}

func (r *rtspSupervisor) stop() {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

func (r *rtspSupervisor) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *rtspSupervisor) runLoop(ctx context.Context) {
	defer r.wg.Done()

	var delay time.Duration
	for {
		if ctx.Err() != nil {
			return
		}
		startedAt := time.Now()
		cmd := r.build(ctx, r.path, r.configPath)
		logging.Info("controlplane: starting rtsp server", "path", r.path)
		err := cmd.Run()
		uptime := time.Since(startedAt)

		if r.isStopped() || ctx.Err() != nil {
			return
		}
		if err != nil {
			logging.Warn("controlplane: rtsp server exited with error", "err", err, "uptime", uptime)
		} else {
			logging.Warn("controlplane: rtsp server exited", "uptime", uptime)
		}

		delay = rtspRestartPolicy.AfterUptime(delay, uptime)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

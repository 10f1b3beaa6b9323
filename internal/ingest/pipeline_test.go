package ingest

import (
	"context"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"
)

// stubBuilder returns a commandBuilder that runs feederScript/transcoderScript
// under /bin/sh, counting how many times it's invoked.
func stubBuilder(feederScript, transcoderScript string, calls *int32) commandBuilder {
	return func(ctx context.Context, opts ChannelOptions, runID string) (*exec.Cmd, *exec.Cmd) {
		atomic.AddInt32(calls, 1)
		feederCmd := exec.CommandContext(ctx, "sh", "-c", feederScript)
		transcoderCmd := exec.CommandContext(ctx, "sh", "-c", transcoderScript)
		return feederCmd, transcoderCmd
	}
}

func TestPipelineStopIsPromptDuringLongRun(t *testing.T) {
	var calls int32
	p := newPipeline(ChannelOptions{Channel: 0}, stubBuilder("sleep 30", "cat >/dev/null", &calls))

	p.start()
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stop() did not return promptly after ctx cancellation")
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one run before stop, got %d", calls)
	}
}

func TestPipelineStartIsIdempotent(t *testing.T) {
	var calls int32
	p := newPipeline(ChannelOptions{Channel: 0}, stubBuilder("sleep 30", "cat >/dev/null", &calls))

	p.start()
	p.start()
	p.start()
	time.Sleep(30 * time.Millisecond)
	p.stop()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected start() to be idempotent, got %d command builds", calls)
	}
}

func TestPipelineStopIsIdempotent(t *testing.T) {
	var calls int32
	p := newPipeline(ChannelOptions{Channel: 0}, stubBuilder("sleep 30", "cat >/dev/null", &calls))

	p.start()
	time.Sleep(30 * time.Millisecond)
	p.stop()
	p.stop() // must not hang or panic
}

func TestSupervisorOnDemandRejectsInvalidChannel(t *testing.T) {
	sup := NewSupervisor("/bin/true", "/bin/true", func(ch int) ChannelOptions {
		return ChannelOptions{Channel: ch}
	})
	if err := sup.OnDemandStart(99); err != ErrInvalidChannel {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
	if err := sup.OnDemandStop(99); err != ErrInvalidChannel {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}

func TestSupervisorStopAllTerminatesRunningChannels(t *testing.T) {
	sup := NewSupervisor("/bin/true", "/bin/true", func(ch int) ChannelOptions {
		return ChannelOptions{Channel: ch}
	})
	var calls int32
	for _, ch := range []int{0, 1} {
		sup.mu.Lock()
		sup.pipelines[ch] = newPipeline(ChannelOptions{Channel: ch}, stubBuilder("sleep 30", "cat >/dev/null", &calls))
		sup.mu.Unlock()
		sup.pipelines[ch].start()
	}
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.StopAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("StopAll did not return promptly")
	}
	if running := sup.Running(); len(running) != 0 {
		t.Fatalf("expected no running channels after StopAll, got %v", running)
	}
}

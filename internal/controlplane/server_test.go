package controlplane

import (
	"context"
	"testing"
	"time"

	"hieasy-dvr-bridge/internal/recorder"
)

func newTestServer() *Server {
	return New(Options{
		Port:            0,
		DVRHost:         "127.0.0.1",
		DVRCmdPort:      1, // nothing listens on port 1
		Username:        "admin",
		Password:        "admin",
		FeederPath:      "/bin/true",
		TranscoderPath:  "/bin/true",
		RTSPBaseURL:     "rtsp://127.0.0.1:8554",
		EnableDiscovery: false,
		Recorder:        recorder.Options{Enabled: false},
	})
}

func TestMaybeDiscoverFailsWhenDisabled(t *testing.T) {
	s := newTestServer()
	if _, err := s.MaybeDiscover(); err == nil {
		t.Fatal("expected error when discovery is disabled")
	}
}

func TestDialSessionDoesNotAutoDiscoverBelowThreshold(t *testing.T) {
	s := newTestServer()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < consecutiveFailureThreshold-1; i++ {
		if _, err := s.dialSession(ctx); err == nil {
			t.Fatal("expected dial failure against an unused port")
		}
	}
	if got := s.consecutiveFailures.Load(); got != consecutiveFailureThreshold-1 {
		t.Fatalf("expected %d recorded failures, got %d", consecutiveFailureThreshold-1, got)
	}
}

func TestDialSessionSuccessResetsFailureCount(t *testing.T) {
	s := newTestServer()
	s.consecutiveFailures.Store(2)
	s.noteConnectionSuccess()
	if got := s.consecutiveFailures.Load(); got != 0 {
		t.Fatalf("expected failure count reset to 0, got %d", got)
	}
}

func TestChannelOptionsUsesActiveHost(t *testing.T) {
	s := newTestServer()
	opts := s.channelOptions(2)
	if opts.Channel != 2 || opts.Host != "127.0.0.1" || opts.RTSPBaseURL != "rtsp://127.0.0.1:8554" {
		t.Fatalf("unexpected channel options: %+v", opts)
	}

	s.hostMu.Lock()
	s.activeHost = "192.168.1.50"
	s.hostMu.Unlock()

	if got := s.channelOptions(2).Host; got != "192.168.1.50" {
		t.Fatalf("expected updated active host, got %q", got)
	}
}

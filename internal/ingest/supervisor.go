package ingest

import (
	"sync"

	"hieasy-dvr-bridge/internal/config"
)

// Supervisor owns one pipeline per channel, started and stopped by the
// RTSP server's on-demand hooks.
type Supervisor struct {
	feederPath     string
	transcoderPath string
	dvrOpts        func(channel int) ChannelOptions

	mu        sync.Mutex
	pipelines map[int]*pipeline
}

// NewSupervisor builds a supervisor that spawns feederPath (this module's
// own feeder binary) and transcoderPath (typically "ffmpeg") for each
// channel, filling in connection details via dvrOpts.
func NewSupervisor(feederPath, transcoderPath string, dvrOpts func(channel int) ChannelOptions) *Supervisor {
	return &Supervisor{
		feederPath:     feederPath,
		transcoderPath: transcoderPath,
		dvrOpts:        dvrOpts,
		pipelines:      make(map[int]*pipeline),
	}
}

// OnDemandStart handles the RTSP server's "subscriber connected" hook for
// path ch<N>. Idempotent: a start hook firing while the channel is already
// running is a no-op.
func (s *Supervisor) OnDemandStart(channel int) error {
	if !config.IsValidChannel(channel) {
		return ErrInvalidChannel
	}
	p := s.getOrCreate(channel)
	p.start()
	return nil
}

// OnDemandStop handles the RTSP server's "last subscriber left" hook.
// Idempotent and blocks until the pipeline's processes have exited.
func (s *Supervisor) OnDemandStop(channel int) error {
	if !config.IsValidChannel(channel) {
		return ErrInvalidChannel
	}
	s.mu.Lock()
	p, ok := s.pipelines[channel]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	p.stop()
	return nil
}

// StopAll tears down every running pipeline, for server shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	pipelines := make([]*pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		pipelines = append(pipelines, p)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range pipelines {
		wg.Add(1)
		go func(p *pipeline) {
			defer wg.Done()
			p.stop()
		}(p)
	}
	wg.Wait()
}

// Running reports which channels currently have an active pipeline.
func (s *Supervisor) Running() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.pipelines))
	for ch, p := range s.pipelines {
		if !p.isStopped() {
			out = append(out, ch)
		}
	}
	return out
}

func (s *Supervisor) getOrCreate(channel int) *pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pipelines[channel]; ok {
		return p
	}
	opts := s.dvrOpts(channel)
	p := newPipeline(opts, defaultCommandBuilder(s.feederPath, s.transcoderPath))
	s.pipelines[channel] = p
	return p
}

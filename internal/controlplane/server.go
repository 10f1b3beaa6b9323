// Package controlplane implements the HTTP API, live event feed, and
// child-process supervision (RTSP server, ingest pipelines) that tie the
// DVR client, ingest supervisor, and recorder together into one service.
package controlplane

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kataras/iris/v12"

	"hieasy-dvr-bridge/internal/config"
	"hieasy-dvr-bridge/internal/discovery"
	"hieasy-dvr-bridge/internal/dvrclient"
	"hieasy-dvr-bridge/internal/ingest"
	"hieasy-dvr-bridge/internal/logging"
	"hieasy-dvr-bridge/internal/recorder"
)

// Options configures a Server.
type Options struct {
	Port int

	DVRHost      string
	DVRCmdPort   int
	DVRMediaPort int
	Username     string
	Password     string

	FeederPath     string
	TranscoderPath string
	RTSPPath       string
	RTSPConfigPath string
	RTSPBaseURL    string

	EnableDiscovery bool

	Recorder recorder.Options
}

// Server owns the whole running service: HTTP API, event hub, ingest
// supervisor, recorder, RTSP server child, and optional LAN discovery.
type Server struct {
	opts Options

	hub     *Hub
	sup     *ingest.Supervisor
	rec     *recorder.Recorder
	scanner *discovery.Scanner
	rtsp    *rtspSupervisor
	app     *iris.Application

	hostMu              sync.RWMutex
	activeHost          string
	consecutiveFailures atomic.Int32
}

// New assembles a Server from Options.
func New(opts Options) *Server {
	hub := NewHub()

	s := &Server{
		opts:       opts,
		hub:        hub,
		activeHost: opts.DVRHost,
	}

	s.sup = ingest.NewSupervisor(opts.FeederPath, opts.TranscoderPath, s.channelOptions)
	s.rec = recorder.New(opts.Recorder, hub)
	if opts.EnableDiscovery {
		s.scanner = discovery.NewScanner(opts.DVRCmdPort)
	}
	if opts.RTSPPath != "" {
		s.rtsp = newRTSPSupervisor(opts.RTSPPath, opts.RTSPConfigPath)
	}

	s.app = s.buildApp()
	return s
}

func (s *Server) channelOptions(channel int) ingest.ChannelOptions {
	s.hostMu.RLock()
	host := s.activeHost
	s.hostMu.RUnlock()
	return ingest.ChannelOptions{
		Channel:     channel,
		StreamType:  config.StreamMain,
		Host:        host,
		CmdPort:     s.opts.DVRCmdPort,
		MediaPort:   s.opts.DVRMediaPort,
		Username:    s.opts.Username,
		Password:    s.opts.Password,
		RTSPBaseURL: s.opts.RTSPBaseURL,
	}
}

// Start launches the RTSP server child (if configured) and the recorder,
// then blocks serving HTTP until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.rtsp != nil {
		s.rtsp.start()
	}
	if err := s.rec.Start(); err != nil {
		logging.Error("controlplane: recorder start failed", "err", err)
	}

	addr := fmt.Sprintf(":%d", s.opts.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr, iris.WithoutServerError(iris.ErrServerClosed))
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		return err
	}
}

// Stop tears everything down: HTTP server, RTSP child, ingest pipelines,
// recorder.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.app.Shutdown(shutdownCtx)

	if s.rtsp != nil {
		s.rtsp.stop()
	}
	s.sup.StopAll()
	s.rec.Stop()
}

// NoteConnectionFailure tracks consecutive DVR session failures. Once 3 are
// recorded in a row (and discovery is enabled), dialSession calls
// MaybeDiscover after each further failure.
func (s *Server) NoteConnectionFailure() {
	s.consecutiveFailures.Add(1)
}

func (s *Server) noteConnectionSuccess() {
	s.consecutiveFailures.Store(0)
}

// MaybeDiscover scans the LAN for a responding DVR if discovery is enabled,
// subject to the scanner's cooldown; it does not check the failure count
// itself. On success it updates the in-memory active host.
func (s *Server) MaybeDiscover() (string, error) {
	if s.scanner == nil {
		return "", fmt.Errorf("controlplane: discovery disabled")
	}
	results, err := s.scanner.Scan()
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("controlplane: no DVR found on local subnets")
	}
	host := results[0].Host
	s.hostMu.Lock()
	s.activeHost = host
	s.hostMu.Unlock()
	s.consecutiveFailures.Store(0)
	s.hub.Broadcast(StatusEvent{Type: "discovery_updated", Message: host, Timestamp: time.Now()})
	return host, nil
}

func (s *Server) activeDVRHost() string {
	s.hostMu.RLock()
	defer s.hostMu.RUnlock()
	return s.activeHost
}

// consecutiveFailureThreshold matches the auto-discovery trigger described
// alongside the ingest/recorder restart policies: three failed sessions in
// a row are treated the same as the configured host being unreachable.
const consecutiveFailureThreshold = 3

// dialSession opens a short-lived command-channel session against the
// active DVR host, for one-off config reads. On the third consecutive
// failure it tries a LAN scan once before giving up, in case the DVR
// changed address.
func (s *Server) dialSession(ctx context.Context) (*dvrclient.Session, error) {
	sess, err := dvrclient.Connect(ctx, s.activeDVRHost(), s.opts.DVRCmdPort, s.opts.Username, s.opts.Password)
	if err == nil {
		s.noteConnectionSuccess()
		return sess, nil
	}
	s.NoteConnectionFailure()

	if s.scanner == nil || s.consecutiveFailures.Load() < consecutiveFailureThreshold {
		return nil, err
	}
	if _, scanErr := s.MaybeDiscover(); scanErr != nil {
		logging.Warn("controlplane: auto-discovery after repeated failures found nothing", "err", scanErr)
		return nil, err
	}
	return dvrclient.Connect(ctx, s.activeDVRHost(), s.opts.DVRCmdPort, s.opts.Username, s.opts.Password)
}

func (s *Server) buildApp() *iris.Application {
	app := iris.New()
	app.Logger().SetLevel("warn")

	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type")
		if ctx.Method() == "OPTIONS" {
			ctx.StatusCode(204)
			return
		}
		ctx.Next()
	})

	app.HandleDir("/", http.FS(dashboardSub()), iris.DirOptions{
		IndexName: "index.html",
		SPA:       true,
	})

	v1 := app.Party("/api")
	{
		v1.Get("/status", s.handleStatus)
		v1.Get("/config-types", s.handleConfigTypes)
		v1.Get("/config/{mc:int}", s.handleConfig)

		v1.Get("/recordings", s.handleRecordings)
		v1.Get("/recordings/status", s.handleRecordingsStatus)
		v1.Post("/recordings/start", s.handleRecordingsStart)
		v1.Post("/recordings/stop", s.handleRecordingsStop)
		v1.Post("/recordings/delete-all", s.handleRecordingsDeleteAll)
		v1.Delete("/recordings/{channel:int}/{filename:string}", s.handleRecordingDelete)

		v1.Post("/discovery/scan", s.handleDiscoveryScan)
		v1.Get("/events", s.hub.HandleEvents)

		v1.Post("/ingest/{channel:int}/start", s.handleIngestHookStart)
		v1.Post("/ingest/{channel:int}/stop", s.handleIngestHookStop)
	}
	return app
}

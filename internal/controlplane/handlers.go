package controlplane

import (
	"context"
	"strconv"
	"time"

	"github.com/kataras/iris/v12"

	"hieasy-dvr-bridge/internal/dvrclient"
)

type channelStatus struct {
	ID        int  `json:"id"`
	Streaming bool `json:"streaming"`
}

type statusResponse struct {
	DVRReachable bool            `json:"dvr_reachable"`
	Channels     []channelStatus `json:"channels"`
	Recorder     interface{}     `json:"recorder"`
	RTSPPaths    []string        `json:"rtsp_paths"`
}

// GET /api/status
func (s *Server) handleStatus(ctx iris.Context) {
	running := s.sup.Running()
	streaming := make(map[int]bool, len(running))
	for _, ch := range running {
		streaming[ch] = true
	}

	channels := make([]channelStatus, 0, len(streaming))
	for ch, on := range streaming {
		channels = append(channels, channelStatus{ID: ch, Streaming: on})
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 3*time.Second)
	defer cancel()
	reachable := s.probeReachable(reqCtx)

	rtspPaths := make([]string, 0, len(running))
	for _, ch := range running {
		rtspPaths = append(rtspPaths, s.opts.RTSPBaseURL+"/ch"+strconv.Itoa(ch))
	}

	ctx.JSON(statusResponse{
		DVRReachable: reachable,
		Channels:     channels,
		Recorder:     s.rec.Status(),
		RTSPPaths:    rtspPaths,
	})
}

func (s *Server) probeReachable(ctx context.Context) bool {
	sess, err := s.dialSession(ctx)
	if err != nil {
		return false
	}
	sess.Close()
	return true
}

// GET /api/config-types
func (s *Server) handleConfigTypes(ctx iris.Context) {
	ctx.JSON(dvrclient.ConfigTypes)
}

// handleConfig fetches one raw config block off the DVR over a short-lived
// session and returns it as the XML payload the firmware replied with.
// GET /api/config/{mc}
func (s *Server) handleConfig(ctx iris.Context) {
	mainCmd, err := ctx.Params().GetInt("mc")
	if err != nil {
		ctx.StatusCode(400)
		ctx.JSON(iris.Map{"error": "invalid main_cmd"})
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 10*time.Second)
	defer cancel()

	sess, err := s.dialSession(reqCtx)
	if err != nil {
		ctx.StatusCode(502)
		ctx.JSON(iris.Map{"error": err.Error()})
		return
	}
	defer sess.Close()

	raw, err := sess.GetConfig(mainCmd)
	if err != nil {
		ctx.StatusCode(502)
		ctx.JSON(iris.Map{"error": err.Error()})
		return
	}
	ctx.ContentType("text/xml; charset=utf-8")
	ctx.WriteString(raw)
}

// GET /api/recordings?channel=1
func (s *Server) handleRecordings(ctx iris.Context) {
	var channel *int
	if raw := ctx.URLParam("channel"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			ctx.StatusCode(400)
			ctx.JSON(iris.Map{"error": "invalid channel"})
			return
		}
		channel = &v
	}
	ctx.JSON(s.rec.Recordings(channel, 0))
}

// GET /api/recordings/status
func (s *Server) handleRecordingsStatus(ctx iris.Context) {
	ctx.JSON(s.rec.QuickStatus())
}

// POST /api/recordings/start
func (s *Server) handleRecordingsStart(ctx iris.Context) {
	if err := s.rec.Start(); err != nil {
		ctx.StatusCode(500)
		ctx.JSON(iris.Map{"error": err.Error()})
		return
	}
	ctx.StatusCode(204)
}

// POST /api/recordings/stop
func (s *Server) handleRecordingsStop(ctx iris.Context) {
	s.rec.Stop()
	ctx.StatusCode(204)
}

// DELETE /api/recordings/{channel}/{filename}
func (s *Server) handleRecordingDelete(ctx iris.Context) {
	channel, err := ctx.Params().GetInt("channel")
	if err != nil {
		ctx.StatusCode(400)
		ctx.JSON(iris.Map{"error": "invalid channel"})
		return
	}
	filename := ctx.Params().Get("filename")
	if err := s.rec.Delete(channel, filename); err != nil {
		ctx.StatusCode(404)
		ctx.JSON(iris.Map{"error": err.Error()})
		return
	}
	ctx.StatusCode(204)
}

// POST /api/recordings/delete-all
func (s *Server) handleRecordingsDeleteAll(ctx iris.Context) {
	n, err := s.rec.DeleteAll()
	if err != nil {
		ctx.StatusCode(500)
		ctx.JSON(iris.Map{"error": err.Error()})
		return
	}
	ctx.JSON(iris.Map{"deleted": n})
}

// POST /api/discovery/scan
func (s *Server) handleDiscoveryScan(ctx iris.Context) {
	host, err := s.MaybeDiscover()
	if err != nil {
		ctx.StatusCode(503)
		ctx.JSON(iris.Map{"error": err.Error()})
		return
	}
	ctx.JSON(iris.Map{"host": host, "reachable": true})
}

// handleIngestHookStart and handleIngestHookStop are the concrete form of
// the RTSP server's on-demand hook contract: the RTSP server's
// runOnDemand/runOnUnDemand config points at a small script that curls
// these two endpoints when the first subscriber connects to ch<N> and
// after the last one leaves, rather than needing shell access to this
// process's in-memory Supervisor directly.
// POST /api/ingest/{channel}/start
func (s *Server) handleIngestHookStart(ctx iris.Context) {
	channel, err := ctx.Params().GetInt("channel")
	if err != nil {
		ctx.StatusCode(400)
		ctx.JSON(iris.Map{"error": "invalid channel"})
		return
	}
	if err := s.sup.OnDemandStart(channel); err != nil {
		ctx.StatusCode(500)
		ctx.JSON(iris.Map{"error": err.Error()})
		return
	}
	ctx.StatusCode(204)
}

// POST /api/ingest/{channel}/stop
func (s *Server) handleIngestHookStop(ctx iris.Context) {
	channel, err := ctx.Params().GetInt("channel")
	if err != nil {
		ctx.StatusCode(400)
		ctx.JSON(iris.Map{"error": "invalid channel"})
		return
	}
	if err := s.sup.OnDemandStop(channel); err != nil {
		ctx.StatusCode(500)
		ctx.JSON(iris.Map{"error": err.Error()})
		return
	}
	ctx.StatusCode(204)
}

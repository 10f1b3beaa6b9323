// Package recorder implements schedule-gated segmented recording of DVR
// channels to local disk, with retention pruning and an optional hand-off
// to an external upload command.
package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"hieasy-dvr-bridge/internal/config"
	"hieasy-dvr-bridge/internal/logging"
)

// Options configures a Recorder instance.
type Options struct {
	Enabled           bool
	Channels          []int
	SegmentMinutes    int
	StreamType        int
	RetentionHours    int
	Schedule          Schedule
	RecordDir         string
	MinDiskMB         int64
	RTSPBaseURL       string
	TranscoderPath    string
	UploadCommand     string
	DeleteAfterUpload bool
}

// Status is a JSON-safe snapshot of the whole recorder, suitable for
// exposing on a status API.
type Status struct {
	Enabled        bool                  `json:"enabled"`
	Running        bool                  `json:"running"`
	Channels       map[string]ChanStatus `json:"channels"`
	ScheduleHours  []int                 `json:"schedule_hours"`
	SegmentMinutes int                   `json:"segment_minutes"`
	RetentionHours int                   `json:"retention_hours"`
	RecordDir      string                `json:"record_dir"`
	UploadEnabled  bool                  `json:"upload_enabled"`
	UploadPending  int                   `json:"upload_pending"`
}

// ChanStatus is the JSON-safe form of ChannelStatus.
type ChanStatus struct {
	Armed     bool   `json:"armed"`
	Recording bool   `json:"recording"`
	State     string `json:"state"`
	Segments  int    `json:"segments"`
}

// Recording describes one segment file on disk.
type Recording struct {
	Channel      int          `json:"channel"`
	Path         string       `json:"path"`
	StartUTC     time.Time    `json:"start_utc"`
	DurationS    int          `json:"duration_s"`
	SizeBytes    int64        `json:"size_bytes"`
	UploadStatus UploadStatus `json:"upload_state"`
}

// segmentNameLayout matches the strftime pattern defaultSegmentBuilder
// gives ffmpeg's segment muxer: "%Y-%m-%dT%H-%M-%SZ.mp4".
const segmentNameLayout = "2006-01-02T15-04-05Z"

// parseSegmentStart recovers a segment's start time from its file name.
// Falls back to false if the name doesn't match the expected pattern (e.g.
// a file dropped into the record dir by something other than the
// segmenter).
func parseSegmentStart(name string) (time.Time, bool) {
	t, err := time.Parse(segmentNameLayout, strings.TrimSuffix(name, ".mp4"))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Recorder owns per-channel segment recorders, the retention scanner, and
// the upload worker.
type Recorder struct {
	opts Options
	sink EventSink

	mu       sync.Mutex
	running  bool
	channels map[int]*channelRecorder
	uploader *uploader
	bgCancel context.CancelFunc
	bgWg     sync.WaitGroup
}

// New builds a Recorder. sink may be nil.
func New(opts Options, sink EventSink) *Recorder {
	if sink == nil {
		sink = discardSink{}
	}
	return &Recorder{opts: opts, sink: sink, channels: make(map[int]*channelRecorder)}
}

// Start begins recording on every configured channel. A no-op if disabled
// or already running.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	if !r.opts.Enabled {
		logging.Info("recorder: disabled, not starting")
		return nil
	}
	if err := os.MkdirAll(r.opts.RecordDir, 0o755); err != nil {
		return fmt.Errorf("recorder: create record dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.bgCancel = cancel

	if r.opts.UploadCommand != "" {
		r.uploader = newUploader(r.opts.UploadCommand, r.opts.DeleteAfterUpload, r.sink)
		r.uploader.start(ctx)
	}

	for _, ch := range r.opts.Channels {
		build := defaultSegmentBuilder(r.opts.TranscoderPath)
		var onSeg func(string, int)
		if r.uploader != nil {
			onSeg = func(path string, channel int) {
				saveUploadState(path, uploadState{Status: UploadPending, UpdatedAt: time.Now()})
				r.uploader.enqueue(path, channel)
			}
		}
		cr := newChannelRecorder(ch, r.opts, build, r.sink, onSeg)
		r.channels[ch] = cr
		cr.start()
	}

	if r.opts.RetentionHours > 0 {
		r.bgWg.Add(1)
		go r.retentionLoop(ctx)
	}

	r.running = true
	logging.Info("recorder: started", "channels", r.opts.Channels, "segment_minutes", r.opts.SegmentMinutes)
	return nil
}

// Stop tears down every channel recorder, the retention loop, and the
// upload worker, blocking until all have exited.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	channels := r.channels
	r.channels = make(map[int]*channelRecorder)
	cancel := r.bgCancel
	uploaderRef := r.uploader
	r.uploader = nil
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, cr := range channels {
		wg.Add(1)
		go func(cr *channelRecorder) {
			defer wg.Done()
			cr.stop()
		}(cr)
	}
	wg.Wait()

	if cancel != nil {
		cancel()
	}
	r.bgWg.Wait()
	if uploaderRef != nil {
		uploaderRef.wait()
	}
	logging.Info("recorder: stopped")
}

func (r *Recorder) retentionLoop(ctx context.Context) {
	defer r.bgWg.Done()
	interval := time.Duration(config.RetentionScanInterval) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneOldSegments(r.opts.RecordDir, r.opts.Channels, r.opts.RetentionHours, r.sink)
		}
	}
}

// Status returns a snapshot suitable for a JSON status endpoint.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	running := r.running
	channels := make(map[int]*channelRecorder, len(r.channels))
	for ch, cr := range r.channels {
		channels[ch] = cr
	}
	uploadEnabled := r.uploader != nil
	r.mu.Unlock()

	chStatus := make(map[string]ChanStatus, len(channels))
	for ch, cr := range channels {
		snap := cr.snapshot()
		chStatus[fmt.Sprint(ch)] = ChanStatus{
			Armed:     r.opts.Schedule.Armed(time.Now().Hour()),
			Recording: snap.Recording,
			State:     snap.State,
			Segments:  snap.Segments,
		}
	}

	hours := make([]int, 0, 24)
	for h := 0; h < 24; h++ {
		if r.opts.Schedule.Armed(h) {
			hours = append(hours, h)
		}
	}

	return Status{
		Enabled:        r.opts.Enabled,
		Running:        running,
		Channels:       chStatus,
		ScheduleHours:  hours,
		SegmentMinutes: r.opts.SegmentMinutes,
		RetentionHours: r.opts.RetentionHours,
		RecordDir:      r.opts.RecordDir,
		UploadEnabled:  uploadEnabled,
		UploadPending:  r.countPendingUploads(),
	}
}

func (r *Recorder) countPendingUploads() int {
	count := 0
	for _, ch := range r.opts.Channels {
		dir := channelDir(r.opts.RecordDir, ch)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".mp4" {
				continue
			}
			path := filepath.Join(dir, e.Name())
			st, ok := loadUploadState(path)
			if ok && (st.Status == UploadPending || st.Status == UploadInProgress) {
				count++
			}
		}
	}
	return count
}

// Recordings lists local segment files, newest first. If channel is
// non-nil, only that channel's directory is listed.
func (r *Recorder) Recordings(channel *int, limit int) []Recording {
	var dirs []string
	if channel != nil {
		dirs = []string{channelDir(r.opts.RecordDir, *channel)}
	} else {
		entries, err := os.ReadDir(r.opts.RecordDir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() && strings.HasPrefix(e.Name(), "ch") {
					dirs = append(dirs, filepath.Join(r.opts.RecordDir, e.Name()))
				}
			}
		}
	}

	var out []Recording
	for _, dir := range dirs {
		ch, ok := parseChannelDirName(filepath.Base(dir))
		if !ok {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".mp4" {
				continue
			}
			path := filepath.Join(dir, e.Name())
			info, err := e.Info()
			if err != nil {
				continue
			}
			start, ok := parseSegmentStart(e.Name())
			if !ok {
				start = info.ModTime()
			}
			status := UploadStatus("")
			if st, ok := loadUploadState(path); ok {
				status = st.Status
			}
			out = append(out, Recording{
				Channel:      ch,
				Path:         path,
				StartUTC:     start.UTC(),
				DurationS:    r.opts.SegmentMinutes * 60,
				SizeBytes:    info.Size(),
				UploadStatus: status,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartUTC.After(out[j].StartUTC) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// QuickStatus is a lightweight summary for a polling recorder status
// endpoint, cheaper to compute than the full Status snapshot.
type QuickStatus struct {
	Armed          bool  `json:"armed"`
	SegmentsToday  int   `json:"segments_today"`
	UploadQueueLen int   `json:"upload_queue_len"`
	DiskFreeMB     int64 `json:"disk_free_mb"`
}

// QuickStatus reports armed state, today's segment count, pending upload
// count, and free disk space on the record directory's filesystem.
func (r *Recorder) QuickStatus() QuickStatus {
	free, err := freeDiskMB(r.opts.RecordDir)
	if err != nil {
		free = -1
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	segmentsToday := 0
	for _, rec := range r.Recordings(nil, 0) {
		if rec.StartUTC.After(today) {
			segmentsToday++
		}
	}

	return QuickStatus{
		Armed:          r.opts.Schedule.Armed(time.Now().Hour()),
		SegmentsToday:  segmentsToday,
		UploadQueueLen: r.countPendingUploads(),
		DiskFreeMB:     free,
	}
}

// Delete removes one segment file and its upload sidecar (if any) from a
// channel's record directory.
func (r *Recorder) Delete(channel int, filename string) error {
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("recorder: invalid filename %q", filename)
	}
	path := filepath.Join(channelDir(r.opts.RecordDir, channel), filename)
	if err := os.Remove(path); err != nil {
		return err
	}
	os.Remove(sidecarPath(path))
	return nil
}

// DeleteAll removes every segment file across all configured channels and
// returns how many were deleted.
func (r *Recorder) DeleteAll() (int, error) {
	deleted := 0
	for _, ch := range r.opts.Channels {
		dir := channelDir(r.opts.RecordDir, ch)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".mp4" {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				continue
			}
			os.Remove(sidecarPath(path))
			deleted++
		}
	}
	return deleted, nil
}

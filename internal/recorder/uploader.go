package recorder

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"hieasy-dvr-bridge/internal/config"
	"hieasy-dvr-bridge/internal/logging"
)

// uploadRetryDelay is the fixed wait between upload retries. Unlike the
// pipeline restart backoff this does not grow: an upload target being
// briefly unreachable is not evidence the next attempt needs to wait
// longer.
const uploadRetryDelay = 2 * time.Minute

const uploadCommandTimeout = 5 * time.Minute

type uploadJob struct {
	path    string
	channel int
}

// uploader is the single-consumer worker handing completed segments to
// DVR_UPLOAD_COMMAND. It never links against a specific cloud SDK; the
// command is an opaque shell invocation supplied by the operator.
type uploader struct {
	command     string
	deleteAfter bool
	sink        EventSink

	queue chan uploadJob
	wg    sync.WaitGroup
}

func newUploader(command string, deleteAfter bool, sink EventSink) *uploader {
	if sink == nil {
		sink = discardSink{}
	}
	return &uploader{
		command:     command,
		deleteAfter: deleteAfter,
		sink:        sink,
		queue:       make(chan uploadJob, 256),
	}
}

func (u *uploader) enabled() bool {
	return u.command != ""
}

// enqueue places a completed segment on the upload queue. Non-blocking: a
// full queue drops the job and logs, rather than stalling the caller
// (the segment-closed notification or a scheduled upload retry).
func (u *uploader) enqueue(path string, channel int) {
	if !u.enabled() {
		return
	}
	select {
	case u.queue <- uploadJob{path: path, channel: channel}:
	default:
		logging.Warn("recorder: upload queue full, dropping job", "path", path)
	}
}

func (u *uploader) start(ctx context.Context) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-u.queue:
				u.process(ctx, job)
			}
		}
	}()
}

func (u *uploader) wait() {
	u.wg.Wait()
}

func (u *uploader) process(ctx context.Context, job uploadJob) {
	st, ok := loadUploadState(job.path)
	if !ok || st.Status == "" {
		st.Status = UploadPending
	}
	if st.Status == UploadUploaded {
		return
	}
	if st.RetryCount >= config.MaxUploadRetries {
		st.Status = UploadFailed
		saveUploadState(job.path, st)
		return
	}

	st.Status = UploadInProgress
	saveUploadState(job.path, st)

	runCtx, cancel := context.WithTimeout(ctx, uploadCommandTimeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, "sh", "-c", u.substitute(job))
	err := cmd.Run()

	if err != nil {
		st.RetryCount++
		st.LastError = err.Error()
		if st.RetryCount >= config.MaxUploadRetries {
			st.Status = UploadFailed
		} else {
			st.Status = UploadPending
		}
		st.UpdatedAt = time.Now()
		saveUploadState(job.path, st)
		u.sink.Publish(Event{Kind: EventUploadFailed, Channel: job.channel, Message: err.Error()})
		if st.Status == UploadPending {
			u.scheduleRetry(ctx, job)
		}
		return
	}

	st.Status = UploadUploaded
	st.LastError = ""
	st.UpdatedAt = time.Now()
	saveUploadState(job.path, st)
	u.sink.Publish(Event{Kind: EventUploadOK, Channel: job.channel, Message: filepath.Base(job.path)})

	if u.deleteAfter {
		if err := os.Remove(job.path); err != nil {
			logging.Warn("recorder: delete after upload failed", "path", job.path, "err", err)
		}
	}
}

func (u *uploader) scheduleRetry(ctx context.Context, job uploadJob) {
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(uploadRetryDelay):
			u.enqueue(job.path, job.channel)
		}
	}()
}

func (u *uploader) substitute(job uploadJob) string {
	r := strings.NewReplacer(
		"{file}", job.path,
		"{channel}", strconv.Itoa(job.channel),
		"{filename}", filepath.Base(job.path),
	)
	return r.Replace(u.command)
}

package recorder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestUploaderSubstitutesPlaceholders(t *testing.T) {
	u := &uploader{command: "echo {file} {channel} {filename}"}
	got := u.substitute(uploadJob{path: "/rec/ch0/seg.mp4", channel: 3})
	want := "echo /rec/ch0/seg.mp4 3 seg.mp4"
	if got != want {
		t.Fatalf("substitute mismatch: got %q want %q", got, want)
	}
}

func TestUploaderMarksUploadedOnSuccess(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "seg.mp4")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	u := newUploader("true", false, nil)
	u.process(context.Background(), uploadJob{path: file, channel: 0})

	st, ok := loadUploadState(file)
	if !ok || st.Status != UploadUploaded {
		t.Fatalf("expected uploaded state, got %+v ok=%v", st, ok)
	}
}

func TestUploaderMarksFailedAfterMaxRetries(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "seg.mp4")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := saveUploadState(file, uploadState{Status: UploadPending, RetryCount: 4}); err != nil {
		t.Fatalf("seed sidecar: %v", err)
	}

	u := newUploader("false", false, nil)
	u.process(context.Background(), uploadJob{path: file, channel: 0})

	st, ok := loadUploadState(file)
	if !ok || st.Status != UploadFailed {
		t.Fatalf("expected failed state after exhausting retries, got %+v ok=%v", st, ok)
	}
}

func TestUploaderDeletesLocalAfterUploadWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "seg.mp4")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	u := newUploader("true", true, nil)
	u.process(context.Background(), uploadJob{path: file, channel: 0})

	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Fatalf("expected local file deleted after upload, stat err=%v", err)
	}
}

func TestUploaderStartStopDrainsQueue(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "seg.mp4")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	u := newUploader("true", false, nil)
	ctx, cancel := context.WithCancel(context.Background())
	u.start(ctx)
	u.enqueue(file, 0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := loadUploadState(file); ok && st.Status == UploadUploaded {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	u.wait()

	st, ok := loadUploadState(file)
	if !ok || st.Status != UploadUploaded {
		t.Fatalf("expected upload to complete, got %+v ok=%v", st, ok)
	}
}

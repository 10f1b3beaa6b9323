package recorder

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSegment(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("segment"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return path
}

func TestPruneOldSegmentsDeletesExpired(t *testing.T) {
	root := t.TempDir()
	chDir := filepath.Join(root, "ch0")
	if err := os.MkdirAll(chDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	expired := writeSegment(t, chDir, "old.mp4", 48*time.Hour)
	fresh := writeSegment(t, chDir, "new.mp4", time.Minute)

	pruneOldSegments(root, []int{0}, 24, nil)

	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Fatalf("expected expired segment removed, stat err=%v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh segment kept: %v", err)
	}
}

func TestPruneOldSegmentsSkipsPendingUpload(t *testing.T) {
	root := t.TempDir()
	chDir := filepath.Join(root, "ch0")
	if err := os.MkdirAll(chDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	pending := writeSegment(t, chDir, "pending.mp4", 48*time.Hour)
	if err := saveUploadState(pending, uploadState{Status: UploadPending}); err != nil {
		t.Fatalf("save sidecar: %v", err)
	}

	pruneOldSegments(root, []int{0}, 24, nil)

	if _, err := os.Stat(pending); err != nil {
		t.Fatalf("expected pending-upload segment kept: %v", err)
	}
}

func TestPruneOldSegmentsDisabledWhenZero(t *testing.T) {
	root := t.TempDir()
	chDir := filepath.Join(root, "ch0")
	if err := os.MkdirAll(chDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	expired := writeSegment(t, chDir, "old.mp4", 100*time.Hour)

	pruneOldSegments(root, []int{0}, 0, nil)

	if _, err := os.Stat(expired); err != nil {
		t.Fatalf("expected no pruning when retentionHours=0: %v", err)
	}
}

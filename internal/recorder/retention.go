package recorder

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"hieasy-dvr-bridge/internal/logging"
)

// retentionWorkers bounds the concurrent directory scan. Spinning disks and
// USB storage don't benefit from more than a handful of concurrent
// scanners; too many just thrashes the head.
const retentionWorkers = 4

// pruneOldSegments lists each channel directory under recordDir in turn and
// hands its .mp4 files to retentionWorkers concurrent workers, which delete
// those whose modification time is older than retentionHours ago, skipping
// any file whose sidecar marks it pending or in-progress upload.
// retentionHours == 0 disables pruning entirely.
func pruneOldSegments(recordDir string, channels []int, retentionHours int, sink EventSink) {
	if retentionHours <= 0 {
		return
	}
	if sink == nil {
		sink = discardSink{}
	}
	cutoff := time.Now().Add(-time.Duration(retentionHours) * time.Hour)

	type workItem struct {
		channel int
		path    string
	}
	workChan := make(chan workItem, 256)

	go func() {
		defer close(workChan)
		for _, ch := range channels {
			dir := channelDir(recordDir, ch)
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() || filepath.Ext(e.Name()) != ".mp4" {
					continue
				}
				workChan <- workItem{channel: ch, path: filepath.Join(dir, e.Name())}
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < retentionWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workChan {
				pruneOne(item.path, item.channel, cutoff, sink)
			}
		}()
	}
	wg.Wait()
}

func pruneOne(path string, channel int, cutoff time.Time, sink EventSink) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.ModTime().After(cutoff) {
		return
	}
	if st, ok := loadUploadState(path); ok {
		if st.Status == UploadPending || st.Status == UploadInProgress {
			return
		}
	}
	if err := os.Remove(path); err != nil {
		logging.Warn("recorder: retention prune failed", "path", path, "err", err)
		return
	}
	os.Remove(sidecarPath(path))
	logging.Info("recorder: pruned expired segment", "channel", channel, "path", path)
}

func channelDir(recordDir string, channel int) string {
	return filepath.Join(recordDir, channelDirName(channel))
}

func channelDirName(channel int) string {
	return "ch" + strconv.Itoa(channel)
}

// parseChannelDirName recovers the channel number from a directory name
// produced by channelDirName, or false if it doesn't match that pattern.
func parseChannelDirName(name string) (int, bool) {
	n, ok := strings.CutPrefix(name, "ch")
	if !ok {
		return 0, false
	}
	ch, err := strconv.Atoi(n)
	if err != nil {
		return 0, false
	}
	return ch, true
}

package recorder

import (
	"encoding/json"
	"os"
	"time"
)

// UploadStatus is the lifecycle of one recording's upload.
type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadInProgress UploadStatus = "in_progress"
	UploadUploaded   UploadStatus = "uploaded"
	UploadFailed     UploadStatus = "failed"
)

// uploadState is the JSON sidecar (<file>.upload.json) tracking one
// recording's upload attempts, so state survives a process restart.
type uploadState struct {
	Status     UploadStatus `json:"status"`
	RetryCount int          `json:"retry_count"`
	LastError  string       `json:"last_error,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func sidecarPath(filePath string) string {
	return filePath + ".upload.json"
}

func loadUploadState(filePath string) (uploadState, bool) {
	data, err := os.ReadFile(sidecarPath(filePath))
	if err != nil {
		return uploadState{}, false
	}
	var st uploadState
	if err := json.Unmarshal(data, &st); err != nil {
		return uploadState{}, false
	}
	return st, true
}

func saveUploadState(filePath string, st uploadState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath(filePath), data, 0o644)
}

package ingest

import (
	"time"

	"hieasy-dvr-bridge/internal/backoff"
)

var restartPolicy = backoff.Policy{
	Initial:    3 * time.Second,
	Max:        30 * time.Second,
	ResetAfter: 60 * time.Second,
}

const (
	initialBackoff = 3 * time.Second
	maxBackoff     = 30 * time.Second
)

// nextBackoff doubles cur, capped at restartPolicy.Max. A zero cur starts
// the sequence at restartPolicy.Initial.
func nextBackoff(cur time.Duration) time.Duration {
	return restartPolicy.Next(cur)
}

// backoffAfterUptime resets the sequence if the pipeline stayed up for at
// least restartPolicy.ResetAfter before failing, otherwise it advances cur.
func backoffAfterUptime(cur time.Duration, uptime time.Duration) time.Duration {
	return restartPolicy.AfterUptime(cur, uptime)
}

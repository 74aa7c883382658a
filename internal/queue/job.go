package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/samples"
)

// Status is the lifecycle state of a decode job.
type Status string

// Job states.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// DecodeJob is a request to decode an uploaded file and load it for playback.
type DecodeJob struct {
	ID    string
	Asset *samples.RawAsset
	// Supersede cancels the in-flight decode and drops queued jobs before
	// this one is enqueued. A newly selected file always supersedes.
	Supersede bool
	TTL       time.Duration
	DedupeKey string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewDecodeJob creates a job with a unique ID. The dedupe key is the asset's
// content hash, so the same bytes cannot be queued twice.
func NewDecodeJob(asset *samples.RawAsset, supersede bool, ttl time.Duration) *DecodeJob {
	now := time.Now()
	job := &DecodeJob{
		ID:        uuid.New().String(),
		Asset:     asset,
		Supersede: supersede,
		TTL:       ttl,
		DedupeKey: asset.SHA256,
		CreatedAt: now,
	}

	if ttl > 0 {
		job.ExpiresAt = now.Add(ttl)
	}

	return job
}

// IsExpired returns true if the job has passed its TTL.
func (j *DecodeJob) IsExpired() bool {
	if j.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(j.ExpiresAt)
}

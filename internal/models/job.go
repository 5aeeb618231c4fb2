package models

import (
	"time"

	"github.com/google/uuid"
)

// Remote job statuses as reported by the inference service.
const (
	JobStatusStarting   = "starting"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"
	JobStatusCanceled   = "canceled"
)

// Registry statuses for locally tracked submissions.
const (
	RegistryStatusPending   = "pending"
	RegistryStatusCompleted = "completed"
	RegistryStatusFailed    = "failed"
)

// RemoteJob is one inference job as listed by the external service. The
// service owns these records and only keeps them visible for a limited
// retention window.
type RemoteJob struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Error     string      `json:"error,omitempty"`
	Input     JobInput    `json:"input"`
	Output    *JobOutput  `json:"output,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	Metrics   *JobMetrics `json:"metrics,omitempty"`
}

type JobInput struct {
	Image            string  `json:"image"`
	Steps            int     `json:"steps,omitempty"`
	GuidanceScale    float64 `json:"guidance_scale,omitempty"`
	Seed             int     `json:"seed,omitempty"`
	OctreeResolution int     `json:"octree_resolution,omitempty"`
	RemoveBackground bool    `json:"remove_background,omitempty"`
}

type JobOutput struct {
	Mesh string `json:"mesh,omitempty"`
}

type JobMetrics struct {
	PredictTime float64 `json:"predict_time,omitempty"`
}

// InProgress reports whether the job has not reached a terminal state yet.
func (j RemoteJob) InProgress() bool {
	return j.Status == JobStatusStarting || j.Status == JobStatusProcessing
}

// PendingSubmission is a speculative local placeholder for a job whose remote
// confirmation has not been observed yet. It is never persisted and never
// treated as a source of truth once the matching RemoteJob appears.
type PendingSubmission struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	InputImage       string    `json:"input_image"`
	OctreeResolution int       `json:"octree_resolution"`
	CreatedAt        time.Time `json:"created_at"`
	ProjectID        string    `json:"project_id,omitempty"`
}

// JobRegistryEntry is the durable per-submission tracking record that drives
// exactly-once promotion of finished jobs into the artifact store.
type JobRegistryEntry struct {
	JobID     string        `json:"job_id"`
	ProjectID uuid.NullUUID `json:"project_id,omitempty"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

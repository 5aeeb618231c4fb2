package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/models"
	"mesh-gallery-backend/internal/supabase"
)

// DefaultSweepResolution is used when a succeeded job does not record the
// requested octree resolution.
const DefaultSweepResolution = 256

// JobChecker is the per-job status endpoint of the inference service.
type JobChecker interface {
	GetJob(ctx context.Context, jobID string) (*models.RemoteJob, error)
}

// JobRegistry is the durable registry of tracked submissions. The pending ->
// completed/failed transition here is the authoritative idempotence guard for
// the sweep; the artifact store's hash dedup is only a safety net behind it.
type JobRegistry interface {
	ListPendingJobs() ([]models.JobRegistryEntry, error)
	MarkJobCompleted(jobID string) error
	MarkJobFailed(jobID string) error
}

// ArtifactSaver persists a finished job's mesh into the content-addressed
// store.
type ArtifactSaver interface {
	Save(ctx context.Context, meshURL, sourceImage string, resolution int) (*models.SavedArtifact, error)
}

// ProjectModelSaver writes the per-project relational record for jobs that
// were registered with a project.
type ProjectModelSaver interface {
	SaveModel(projectID uuid.UUID, meshURL, thumbnailURL, sourceImage string, resolution int, name string) (*models.ProjectModel, error)
}

// EventPublisher pushes gallery events for completed and failed jobs.
type EventPublisher interface {
	PublishGalleryEvent(event string, payload map[string]interface{}) error
}

// Sweeper is the recurring background process that promotes finished jobs
// into durable storage exactly once. The remote listing is this system's only
// view of job outcomes, and jobs age out of it; the registry is the durable
// memory that survives the retention window.
type Sweeper struct {
	registry  JobRegistry
	inference JobChecker
	artifacts ArtifactSaver
	projects  ProjectModelSaver
	events    EventPublisher
	interval  time.Duration
	log       *zap.SugaredLogger
}

func NewSweeper(registry JobRegistry, inference JobChecker, artifacts ArtifactSaver, projects ProjectModelSaver, events EventPublisher, interval time.Duration, log *zap.SugaredLogger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		registry:  registry,
		inference: inference,
		artifacts: artifacts,
		projects:  projects,
		events:    events,
		interval:  interval,
		log:       log,
	}
}

// Start runs the sweep loop until ctx is canceled. One sweep runs eagerly at
// startup so completions are not held hostage to the first tick.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		s.Sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep scans pending registry entries and reconciles each against the
// remote service. Entries fail independently: one bad lookup never aborts
// the rest of the scan.
func (s *Sweeper) Sweep(ctx context.Context) models.SweepResponse {
	entries, err := s.registry.ListPendingJobs()
	if err != nil {
		s.log.Warnw("failed to load pending jobs", "error", err)
		return models.SweepResponse{}
	}

	result := models.SweepResponse{Examined: len(entries)}
	for _, entry := range entries {
		if entry.Status != models.RegistryStatusPending {
			continue
		}

		job, err := s.inference.GetJob(ctx, entry.JobID)
		if err != nil {
			s.log.Warnw("failed to check job status", "job_id", entry.JobID, "error", err)
			continue
		}

		switch {
		case job.Status == models.JobStatusSucceeded && job.Output != nil && job.Output.Mesh != "":
			if s.promote(ctx, entry, job) {
				result.Completed++
			}
		case job.Status == models.JobStatusFailed || job.Status == models.JobStatusCanceled || job.Error != "":
			if err := s.registry.MarkJobFailed(entry.JobID); err != nil {
				s.log.Warnw("failed to mark job failed", "job_id", entry.JobID, "error", err)
				continue
			}
			s.publish("job_failed", supabase.JobFailedPayload(entry.JobID, job.Error))
			result.Failed++
		default:
			// Still starting/processing; pick it up next tick.
		}
	}

	return result
}

// promote saves the finished job's artifact and, when the job was registered
// with a project, the corresponding project model, then transitions the
// registry entry. The entry stays pending when the save fails so the next
// sweep retries it.
func (s *Sweeper) promote(ctx context.Context, entry models.JobRegistryEntry, job *models.RemoteJob) bool {
	resolution := job.Input.OctreeResolution
	if resolution == 0 {
		resolution = DefaultSweepResolution
	}

	artifact, err := s.artifacts.Save(ctx, job.Output.Mesh, job.Input.Image, resolution)
	if err != nil {
		s.log.Warnw("failed to save artifact for completed job", "job_id", entry.JobID, "error", err)
		return false
	}

	if entry.ProjectID.Valid && s.projects != nil {
		if _, err := s.projects.SaveModel(entry.ProjectID.UUID, artifact.MeshURL, artifact.ThumbnailURL,
			artifact.SourceImage, artifact.Resolution, ""); err != nil {
			s.log.Warnw("failed to save project model for completed job",
				"job_id", entry.JobID, "project_id", entry.ProjectID.UUID, "error", err)
		}
	}

	if err := s.registry.MarkJobCompleted(entry.JobID); err != nil {
		s.log.Warnw("failed to mark job completed", "job_id", entry.JobID, "error", err)
		return false
	}

	s.publish("job_completed", supabase.JobCompletedPayload(entry.JobID, artifact.ID))
	return true
}

func (s *Sweeper) publish(event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishGalleryEvent(event, payload); err != nil {
		s.log.Debugw("failed to publish gallery event", "event", event, "error", err)
	}
}

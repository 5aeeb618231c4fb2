package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/models"
	"mesh-gallery-backend/internal/services"
)

// fakeRegistry mimics the database guard: only pending entries are listed,
// and a transition flips the stored status.
type fakeRegistry struct {
	mu        sync.Mutex
	entries   map[string]*models.JobRegistryEntry
	completed []string
	failed    []string
	listErr   error
}

func newFakeRegistry(entries ...models.JobRegistryEntry) *fakeRegistry {
	r := &fakeRegistry{entries: make(map[string]*models.JobRegistryEntry)}
	for i := range entries {
		e := entries[i]
		r.entries[e.JobID] = &e
	}
	return r
}

func (r *fakeRegistry) ListPendingJobs() ([]models.JobRegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var pending []models.JobRegistryEntry
	for _, e := range r.entries {
		if e.Status == models.RegistryStatusPending {
			pending = append(pending, *e)
		}
	}
	return pending, nil
}

func (r *fakeRegistry) MarkJobCompleted(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[jobID]; ok && e.Status == models.RegistryStatusPending {
		e.Status = models.RegistryStatusCompleted
		r.completed = append(r.completed, jobID)
	}
	return nil
}

func (r *fakeRegistry) MarkJobFailed(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[jobID]; ok && e.Status == models.RegistryStatusPending {
		e.Status = models.RegistryStatusFailed
		r.failed = append(r.failed, jobID)
	}
	return nil
}

type fakeJobChecker struct {
	jobs map[string]*models.RemoteJob
	errs map[string]error
}

func (f *fakeJobChecker) GetJob(ctx context.Context, jobID string) (*models.RemoteJob, error) {
	if err, ok := f.errs[jobID]; ok {
		return nil, err
	}
	if job, ok := f.jobs[jobID]; ok {
		return job, nil
	}
	return nil, assert.AnError
}

type savedCall struct {
	meshURL     string
	sourceImage string
	resolution  int
}

type fakeArtifactSaver struct {
	mu    sync.Mutex
	calls []savedCall
	err   error
}

func (f *fakeArtifactSaver) Save(ctx context.Context, meshURL, sourceImage string, resolution int) (*models.SavedArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, savedCall{meshURL, sourceImage, resolution})
	if f.err != nil {
		return nil, f.err
	}
	return &models.SavedArtifact{
		ID:           "model-1700000000000-abcd1234",
		MeshURL:      "https://blob.test/model.glb",
		ThumbnailURL: "https://blob.test/model-thumb.jpg",
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		SourceImage:  sourceImage,
		Resolution:   resolution,
		ContentHash:  "abcd1234",
	}, nil
}

type fakeProjectSaver struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (f *fakeProjectSaver) SaveModel(projectID uuid.UUID, meshURL, thumbnailURL, sourceImage string, resolution int, name string) (*models.ProjectModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, projectID)
	return &models.ProjectModel{ProjectID: projectID, MeshURL: meshURL}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) PublishGalleryEvent(event string, payload map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func pendingEntry(jobID string) models.JobRegistryEntry {
	return models.JobRegistryEntry{
		JobID:     jobID,
		Status:    models.RegistryStatusPending,
		CreatedAt: time.Now(),
	}
}

func succeededJob(image string, resolution int) *models.RemoteJob {
	return &models.RemoteJob{
		Status: models.JobStatusSucceeded,
		Input:  models.JobInput{Image: image, OctreeResolution: resolution},
		Output: &models.JobOutput{Mesh: "https://inference.test/mesh.glb"},
	}
}

func TestSweeper_PromotesSucceededJobOnce(t *testing.T) {
	registry := newFakeRegistry(pendingEntry("job-1"))
	checker := &fakeJobChecker{jobs: map[string]*models.RemoteJob{
		"job-1": succeededJob("https://img.test/a.jpg", 512),
	}}
	saver := &fakeArtifactSaver{}
	publisher := &fakePublisher{}

	sweeper := services.NewSweeper(registry, checker, saver, nil, publisher, time.Minute, zap.NewNop().Sugar())

	result := sweeper.Sweep(context.Background())
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 1, result.Completed)
	require.Len(t, saver.calls, 1)
	assert.Equal(t, "https://inference.test/mesh.glb", saver.calls[0].meshURL)
	assert.Equal(t, 512, saver.calls[0].resolution)
	assert.Equal(t, []string{"job-1"}, registry.completed)
	assert.Equal(t, []string{"job_completed"}, publisher.events)

	// The completed entry is no longer pending, so a second sweep is a no-op.
	second := sweeper.Sweep(context.Background())
	assert.Equal(t, 0, second.Examined)
	assert.Len(t, saver.calls, 1)
}

func TestSweeper_DefaultsResolutionWhenUnrecorded(t *testing.T) {
	registry := newFakeRegistry(pendingEntry("job-1"))
	checker := &fakeJobChecker{jobs: map[string]*models.RemoteJob{
		"job-1": succeededJob("https://img.test/a.jpg", 0),
	}}
	saver := &fakeArtifactSaver{}

	sweeper := services.NewSweeper(registry, checker, saver, nil, nil, time.Minute, zap.NewNop().Sugar())
	sweeper.Sweep(context.Background())

	require.Len(t, saver.calls, 1)
	assert.Equal(t, services.DefaultSweepResolution, saver.calls[0].resolution)
}

func TestSweeper_MarksFailedJobs(t *testing.T) {
	registry := newFakeRegistry(pendingEntry("job-1"))
	checker := &fakeJobChecker{jobs: map[string]*models.RemoteJob{
		"job-1": {Status: models.JobStatusFailed, Error: "out of memory"},
	}}
	publisher := &fakePublisher{}

	sweeper := services.NewSweeper(registry, checker, &fakeArtifactSaver{}, nil, publisher, time.Minute, zap.NewNop().Sugar())

	result := sweeper.Sweep(context.Background())
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"job-1"}, registry.failed)
	assert.Equal(t, []string{"job_failed"}, publisher.events)
}

func TestSweeper_LeavesRunningJobsPending(t *testing.T) {
	registry := newFakeRegistry(pendingEntry("job-1"))
	checker := &fakeJobChecker{jobs: map[string]*models.RemoteJob{
		"job-1": {Status: models.JobStatusProcessing, Input: models.JobInput{Image: "img"}},
	}}

	sweeper := services.NewSweeper(registry, checker, &fakeArtifactSaver{}, nil, nil, time.Minute, zap.NewNop().Sugar())

	result := sweeper.Sweep(context.Background())
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 0, result.Completed)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, registry.completed)
	assert.Empty(t, registry.failed)
}

func TestSweeper_IsolatesPerEntryErrors(t *testing.T) {
	registry := newFakeRegistry(pendingEntry("job-bad"), pendingEntry("job-good"))
	checker := &fakeJobChecker{
		jobs: map[string]*models.RemoteJob{
			"job-good": succeededJob("https://img.test/a.jpg", 256),
		},
		errs: map[string]error{"job-bad": assert.AnError},
	}
	saver := &fakeArtifactSaver{}

	sweeper := services.NewSweeper(registry, checker, saver, nil, nil, time.Minute, zap.NewNop().Sugar())

	result := sweeper.Sweep(context.Background())
	assert.Equal(t, 2, result.Examined)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, []string{"job-good"}, registry.completed)
}

func TestSweeper_SaveFailureKeepsEntryPendingForRetry(t *testing.T) {
	registry := newFakeRegistry(pendingEntry("job-1"))
	checker := &fakeJobChecker{jobs: map[string]*models.RemoteJob{
		"job-1": succeededJob("https://img.test/a.jpg", 256),
	}}
	saver := &fakeArtifactSaver{err: assert.AnError}

	sweeper := services.NewSweeper(registry, checker, saver, nil, nil, time.Minute, zap.NewNop().Sugar())

	result := sweeper.Sweep(context.Background())
	assert.Equal(t, 0, result.Completed)
	assert.Empty(t, registry.completed)

	// The save recovers; the next sweep promotes the same entry.
	saver.mu.Lock()
	saver.err = nil
	saver.mu.Unlock()

	second := sweeper.Sweep(context.Background())
	assert.Equal(t, 1, second.Completed)
	assert.Equal(t, []string{"job-1"}, registry.completed)
}

func TestSweeper_SavesProjectModelForRegisteredProject(t *testing.T) {
	projectID := uuid.New()
	entry := pendingEntry("job-1")
	entry.ProjectID = uuid.NullUUID{UUID: projectID, Valid: true}

	registry := newFakeRegistry(entry)
	checker := &fakeJobChecker{jobs: map[string]*models.RemoteJob{
		"job-1": succeededJob("https://img.test/a.jpg", 256),
	}}
	projects := &fakeProjectSaver{}

	sweeper := services.NewSweeper(registry, checker, &fakeArtifactSaver{}, projects, nil, time.Minute, zap.NewNop().Sugar())
	sweeper.Sweep(context.Background())

	require.Len(t, projects.calls, 1)
	assert.Equal(t, projectID, projects.calls[0])
}

package services_test

import (
	"context"
	"strings"
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

type fakeJobLister struct {
	mu   sync.Mutex
	jobs []models.RemoteJob
	err  error
}

func (f *fakeJobLister) ListJobs(ctx context.Context) ([]models.RemoteJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.RemoteJob, len(f.jobs))
	copy(out, f.jobs)
	return out, nil
}

type fakeModelLister struct {
	mu     sync.Mutex
	models []models.ProjectModel
	calls  int
	err    error
}

func (f *fakeModelLister) ListModels(projectID uuid.UUID) ([]models.ProjectModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.models, nil
}

func newTestGallery(lister services.JobLister, modelsDB services.ProjectModelLister, notify func(string)) *services.Gallery {
	return services.NewGallery(lister, modelsDB, 5*time.Second, 30*time.Second, notify, zap.NewNop().Sugar())
}

func TestGallery_RefreshReconcilesPending(t *testing.T) {
	lister := &fakeJobLister{}
	g := newTestGallery(lister, nil, nil)

	confirmed := g.AddPending("https://img.test/a.jpg", 256, "")
	unconfirmed := g.AddPending("https://img.test/b.jpg", 256, "")

	// The remote id is embedded in the placeholder id; containment is the
	// match rule, not equality.
	remoteID := strings.TrimPrefix(confirmed.ID, "pending-")
	lister.jobs = []models.RemoteJob{{
		ID:        remoteID,
		Status:    models.JobStatusProcessing,
		Input:     models.JobInput{Image: "https://img.test/a.jpg"},
		CreatedAt: time.Now(),
	}}

	view, err := g.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Pending, 1)
	assert.Equal(t, unconfirmed.ID, view.Pending[0].ID)
	require.Len(t, view.Jobs, 1)
}

func TestGallery_RemovePending(t *testing.T) {
	g := newTestGallery(&fakeJobLister{}, nil, nil)

	sub := g.AddPending("https://img.test/a.jpg", 256, "")
	assert.Len(t, g.Pending(), 1)

	g.RemovePending(sub.ID)
	assert.Empty(t, g.Pending())
}

func TestFilterJobs(t *testing.T) {
	now := time.Now()
	jobs := []models.RemoteJob{
		{ID: "keep-processing", Status: models.JobStatusProcessing, Input: models.JobInput{Image: "img"}, CreatedAt: now},
		{ID: "keep-succeeded", Status: models.JobStatusSucceeded, Input: models.JobInput{Image: "img"},
			Output: &models.JobOutput{Mesh: "https://cdn.test/mesh.glb"}, CreatedAt: now},
		{ID: "drop-canceled", Status: models.JobStatusCanceled, Input: models.JobInput{Image: "img"}},
		{ID: "drop-no-mesh", Status: models.JobStatusSucceeded, Input: models.JobInput{Image: "img"}},
		{ID: "drop-bad-mesh", Status: models.JobStatusSucceeded, Input: models.JobInput{Image: "img"},
			Output: &models.JobOutput{Mesh: "not a url"}},
		{ID: "drop-erroring", Status: models.JobStatusProcessing, Input: models.JobInput{Image: "img"}, Error: "boom"},
		{ID: "drop-no-image", Status: models.JobStatusProcessing},
		{ID: "", Status: models.JobStatusProcessing, Input: models.JobInput{Image: "img"}},
	}

	kept := services.FilterJobs(jobs)
	require.Len(t, kept, 2)
	assert.Equal(t, "keep-processing", kept[0].ID)
	assert.Equal(t, "keep-succeeded", kept[1].ID)
}

func TestSortJobs_InProgressFirstThenNewest(t *testing.T) {
	base := time.Now()
	jobs := []models.RemoteJob{
		{ID: "done-new", Status: models.JobStatusSucceeded, CreatedAt: base.Add(3 * time.Minute)},
		{ID: "running-old", Status: models.JobStatusProcessing, CreatedAt: base.Add(1 * time.Minute)},
		{ID: "done-old", Status: models.JobStatusSucceeded, CreatedAt: base},
		{ID: "running-new", Status: models.JobStatusStarting, CreatedAt: base.Add(2 * time.Minute)},
	}

	services.SortJobs(jobs)

	ids := []string{jobs[0].ID, jobs[1].ID, jobs[2].ID, jobs[3].ID}
	assert.Equal(t, []string{"running-new", "running-old", "done-new", "done-old"}, ids)
}

func TestGallery_NextIntervalBacksOffAndCaps(t *testing.T) {
	lister := &fakeJobLister{err: assert.AnError}
	g := newTestGallery(lister, nil, nil)

	assert.Equal(t, 5*time.Second, g.NextInterval())

	_, err := g.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 10*time.Second, g.NextInterval())

	_, _ = g.Refresh(context.Background())
	assert.Equal(t, 20*time.Second, g.NextInterval())

	// 5s << 3 would be 40s; the cap holds it at 30s.
	_, _ = g.Refresh(context.Background())
	assert.Equal(t, 30*time.Second, g.NextInterval())

	_, _ = g.Refresh(context.Background())
	assert.Equal(t, 30*time.Second, g.NextInterval())
}

func TestGallery_RefreshSuccessResetsBackoff(t *testing.T) {
	lister := &fakeJobLister{err: assert.AnError}
	g := newTestGallery(lister, nil, nil)

	_, _ = g.Refresh(context.Background())
	_, _ = g.Refresh(context.Background())
	assert.Equal(t, 20*time.Second, g.NextInterval())

	lister.mu.Lock()
	lister.err = nil
	lister.mu.Unlock()

	_, err := g.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, g.NextInterval())
}

func TestGallery_NotifiesOnceAfterThresholdFailures(t *testing.T) {
	lister := &fakeJobLister{err: assert.AnError}

	var mu sync.Mutex
	var notifications []string
	notify := func(msg string) {
		mu.Lock()
		notifications = append(notifications, msg)
		mu.Unlock()
	}

	g := newTestGallery(lister, nil, notify)

	for i := 0; i < 5; i++ {
		_, _ = g.Refresh(context.Background())
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0], "failed to load recent jobs")
}

func TestGallery_ProjectModelsCachesPerSession(t *testing.T) {
	modelsDB := &fakeModelLister{models: []models.ProjectModel{{Name: "Chair"}}}
	g := newTestGallery(&fakeJobLister{}, modelsDB, nil)

	projectID := uuid.New()

	first, err := g.ProjectModels(projectID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = g.ProjectModels(projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, modelsDB.calls)

	g.InvalidateProject(projectID)
	_, err = g.ProjectModels(projectID)
	require.NoError(t, err)
	assert.Equal(t, 2, modelsDB.calls)

	g.InvalidateAll()
	_, err = g.ProjectModels(projectID)
	require.NoError(t, err)
	assert.Equal(t, 3, modelsDB.calls)
}

func TestGallery_SetActiveTabClearsSelection(t *testing.T) {
	g := newTestGallery(&fakeJobLister{}, nil, nil)

	g.Selection().Toggle("model-a")
	g.Selection().Toggle("model-b")
	assert.Equal(t, 2, g.Selection().Count())

	g.SetActiveTab(services.TabStored)
	assert.Equal(t, services.TabStored, g.ActiveTab())
	assert.Equal(t, 0, g.Selection().Count())
}

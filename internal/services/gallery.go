package services

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/models"
)

// Gallery tabs.
const (
	TabRecent   = "recent"
	TabStored   = "stored"
	TabProjects = "projects"
)

// A single user-visible notification is raised after this many consecutive
// poll failures; individual failures are only logged.
const errorNotifyThreshold = 3

// JobLister is the remote listing endpoint of the inference service.
type JobLister interface {
	ListJobs(ctx context.Context) ([]models.RemoteJob, error)
}

// ProjectModelLister is the relational read side used by the Projects tab.
type ProjectModelLister interface {
	ListModels(projectID uuid.UUID) ([]models.ProjectModel, error)
}

// Gallery reconciles the three sources of gallery truth: optimistic pending
// submissions, the live remote job listing, and the per-project relational
// store. It owns the Recent-tab adaptive polling state and the cross-tab
// selection set.
type Gallery struct {
	lister   JobLister
	modelsDB ProjectModelLister
	log      *zap.SugaredLogger

	baseInterval time.Duration
	maxInterval  time.Duration
	notify       func(msg string)

	mu                sync.Mutex
	pending           []models.PendingSubmission
	consecutiveErrors int
	modelCache        map[uuid.UUID][]models.ProjectModel
	activeTab         string
	selection         *Selection

	pendingSeq atomic.Int64
}

func NewGallery(lister JobLister, modelsDB ProjectModelLister, base, max time.Duration, notify func(string), log *zap.SugaredLogger) *Gallery {
	if base <= 0 {
		base = 5 * time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	return &Gallery{
		lister:       lister,
		modelsDB:     modelsDB,
		log:          log,
		baseInterval: base,
		maxInterval:  max,
		notify:       notify,
		modelCache:   make(map[uuid.UUID][]models.ProjectModel),
		activeTab:    TabRecent,
		selection:    NewSelection(),
	}
}

// AddPending records an optimistic placeholder for a just-dispatched
// submission. The placeholder stays until a confirmed remote job with a
// matching id shows up in a poll, or the submission errors out.
func (g *Gallery) AddPending(inputImage string, octreeResolution int, projectID string) models.PendingSubmission {
	sub := models.PendingSubmission{
		ID:               fmt.Sprintf("pending-%d-%d", time.Now().UnixMilli(), g.pendingSeq.Add(1)),
		Status:           models.JobStatusStarting,
		InputImage:       inputImage,
		OctreeResolution: octreeResolution,
		CreatedAt:        time.Now().UTC(),
		ProjectID:        projectID,
	}

	g.mu.Lock()
	g.pending = append([]models.PendingSubmission{sub}, g.pending...)
	g.mu.Unlock()

	return sub
}

func (g *Gallery) RemovePending(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, p := range g.pending {
		if p.ID == id {
			g.pending = append(g.pending[:i], g.pending[i+1:]...)
			return
		}
	}
}

func (g *Gallery) Pending() []models.PendingSubmission {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.PendingSubmission, len(g.pending))
	copy(out, g.pending)
	return out
}

// Refresh runs one Recent-tab fetch cycle: list remote jobs, normalize and
// order them, and drop any pending placeholder the listing has confirmed.
func (g *Gallery) Refresh(ctx context.Context) (*models.RecentView, error) {
	jobs, err := g.lister.ListJobs(ctx)
	if err != nil {
		g.recordFailure(err)
		return nil, err
	}

	jobs = FilterJobs(jobs)
	SortJobs(jobs)

	g.mu.Lock()
	g.consecutiveErrors = 0
	g.reconcilePendingLocked(jobs)
	pending := make([]models.PendingSubmission, len(g.pending))
	copy(pending, g.pending)
	g.mu.Unlock()

	return &models.RecentView{Pending: pending, Jobs: jobs}, nil
}

// NextInterval returns when the next Recent-tab poll should run: the base
// interval doubled per consecutive failure, capped at the max.
func (g *Gallery) NextInterval() time.Duration {
	g.mu.Lock()
	errs := g.consecutiveErrors
	g.mu.Unlock()

	if errs > 10 {
		errs = 10
	}
	interval := g.baseInterval << uint(errs)
	if interval > g.maxInterval {
		interval = g.maxInterval
	}
	return interval
}

// StartPolling runs the Recent-tab poll loop until ctx is canceled. The first
// fetch happens immediately; subsequent fetches follow NextInterval.
func (g *Gallery) StartPolling(ctx context.Context, onView func(*models.RecentView)) {
	go func() {
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				view, err := g.Refresh(ctx)
				if err != nil {
					g.log.Debugw("recent poll failed", "error", err)
				} else if onView != nil {
					onView(view)
				}
				timer.Reset(g.NextInterval())
			}
		}
	}()
}

// ProjectModels returns the models for a project, fetching from the
// relational store only when this session has not cached them yet.
func (g *Gallery) ProjectModels(projectID uuid.UUID) ([]models.ProjectModel, error) {
	g.mu.Lock()
	if cached, ok := g.modelCache[projectID]; ok {
		out := make([]models.ProjectModel, len(cached))
		copy(out, cached)
		g.mu.Unlock()
		return out, nil
	}
	g.mu.Unlock()

	if g.modelsDB == nil {
		return nil, fmt.Errorf("no relational store configured")
	}
	fetched, err := g.modelsDB.ListModels(projectID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.modelCache[projectID] = fetched
	g.mu.Unlock()

	return fetched, nil
}

// InvalidateProject drops a project's cached models after a mutation.
func (g *Gallery) InvalidateProject(projectID uuid.UUID) {
	g.mu.Lock()
	delete(g.modelCache, projectID)
	g.mu.Unlock()
}

// InvalidateAll drops every cached project's models. Used after mutations
// that can touch models across project boundaries, like a move.
func (g *Gallery) InvalidateAll() {
	g.mu.Lock()
	g.modelCache = make(map[uuid.UUID][]models.ProjectModel)
	g.mu.Unlock()
}

// SetActiveTab switches the visible tab. Switching always clears the
// selection set.
func (g *Gallery) SetActiveTab(tab string) {
	g.mu.Lock()
	g.activeTab = tab
	g.mu.Unlock()
	g.selection.Clear()
}

func (g *Gallery) ActiveTab() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeTab
}

func (g *Gallery) Selection() *Selection {
	return g.selection
}

func (g *Gallery) recordFailure(err error) {
	g.mu.Lock()
	g.consecutiveErrors++
	count := g.consecutiveErrors
	g.mu.Unlock()

	g.log.Warnw("failed to fetch remote jobs", "consecutive_errors", count, "error", err)
	if count == errorNotifyThreshold && g.notify != nil {
		g.notify("failed to load recent jobs: " + err.Error())
	}
}

// reconcilePendingLocked drops every placeholder whose id contains the id of
// a confirmed remote job. Once the authoritative record exists the
// placeholder must never shadow it.
func (g *Gallery) reconcilePendingLocked(jobs []models.RemoteJob) {
	if len(g.pending) == 0 || len(jobs) == 0 {
		return
	}

	kept := g.pending[:0]
	for _, p := range g.pending {
		matched := false
		for _, j := range jobs {
			if j.ID != "" && strings.Contains(p.ID, j.ID) {
				matched = true
				break
			}
		}
		if !matched {
			kept = append(kept, p)
		}
	}
	g.pending = kept
}

// FilterJobs keeps only displayable records: canceled jobs are discarded,
// succeeded jobs must carry a parseable mesh URL, and in-progress jobs must
// not carry an error.
func FilterJobs(jobs []models.RemoteJob) []models.RemoteJob {
	kept := make([]models.RemoteJob, 0, len(jobs))
	for _, j := range jobs {
		if j.ID == "" || j.Status == "" || j.Input.Image == "" {
			continue
		}
		if j.Status == models.JobStatusCanceled {
			continue
		}
		switch {
		case j.Status == models.JobStatusSucceeded:
			if j.Output == nil || j.Output.Mesh == "" {
				continue
			}
			if _, err := url.ParseRequestURI(j.Output.Mesh); err != nil {
				continue
			}
		case j.InProgress():
			if j.Error != "" {
				continue
			}
		default:
			continue
		}
		kept = append(kept, j)
	}
	return kept
}

// SortJobs orders in-progress jobs before finished ones, each group newest
// first.
func SortJobs(jobs []models.RemoteJob) {
	sort.SliceStable(jobs, func(i, k int) bool {
		a, b := jobs[i], jobs[k]
		if a.InProgress() != b.InProgress() {
			return a.InProgress()
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

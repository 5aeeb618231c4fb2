package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mesh-gallery-backend/internal/models"
)

// Artifact resolutions accepted by Save.
const (
	MinResolution = 256
	MaxResolution = 512
)

const snapshotPrefix = "models-"

// BlobStore is the durable object storage the artifact index and its backing
// files live on.
type BlobStore interface {
	Upload(path string, data []byte, contentType string) (string, error)
	List(prefix string) ([]string, error)
	Remove(path string) error
	RemoveURL(publicURL string) error
	Download(path string) ([]byte, error)
}

// ArtifactStore is the content-addressed registry of saved artifacts. The
// whole index is one versioned snapshot blob; every mutation reads the latest
// snapshot, writes a new one, and prunes the old versions. All mutations are
// serialized through a single mutex so concurrent savers within this process
// cannot overwrite each other's snapshots.
type ArtifactStore struct {
	mu         sync.Mutex
	blobs      BlobStore
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewArtifactStore(blobs BlobStore, log *zap.SugaredLogger) *ArtifactStore {
	return &ArtifactStore{
		blobs: blobs,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log,
	}
}

// Save downloads the mesh, content-addresses it, and persists a new artifact
// unless one with the same hash already exists and still resolves. The
// existing entry is returned unchanged on a hash match.
func (s *ArtifactStore) Save(ctx context.Context, meshURL, sourceImage string, resolution int) (*models.SavedArtifact, error) {
	if meshURL == "" || sourceImage == "" {
		return nil, fmt.Errorf("mesh url and source image are required")
	}
	if resolution < MinResolution || resolution > MaxResolution {
		return nil, fmt.Errorf("resolution %d out of range [%d, %d]", resolution, MinResolution, MaxResolution)
	}

	g, gctx := errgroup.WithContext(ctx)
	var meshValid, imageValid bool
	g.Go(func() error {
		meshValid = s.validateURL(gctx, meshURL, "model")
		return nil
	})
	g.Go(func() error {
		imageValid = s.validateURL(gctx, sourceImage, "image")
		return nil
	})
	_ = g.Wait()
	if !meshValid || !imageValid {
		return nil, fmt.Errorf("mesh or image url failed validation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.load()

	meshBytes, err := s.fetch(ctx, meshURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mesh: %w", err)
	}
	if len(meshBytes) == 0 {
		return nil, fmt.Errorf("fetched mesh is empty")
	}

	sum := sha256.Sum256(meshBytes)
	hash := hex.EncodeToString(sum[:])

	for _, existing := range snapshot.Models {
		if existing.ContentHash == hash {
			if s.validateURL(ctx, existing.MeshURL, "") && s.validateURL(ctx, existing.ThumbnailURL, "") {
				return &existing, nil
			}
			// Stale entry with dead blobs; fall through and re-store.
			break
		}
	}

	imageBytes, err := s.fetch(ctx, sourceImage)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("fetched image is empty")
	}

	filename := fmt.Sprintf("model-%d-%s", time.Now().UnixMilli(), hash[:8])

	var storedMeshURL, storedThumbURL string
	ug, _ := errgroup.WithContext(ctx)
	ug.Go(func() error {
		var err error
		storedMeshURL, err = s.blobs.Upload(filename+".glb", meshBytes, "model/gltf-binary")
		return err
	})
	ug.Go(func() error {
		var err error
		storedThumbURL, err = s.blobs.Upload(filename+"-thumb.jpg", imageBytes, "image/jpeg")
		return err
	})
	if err := ug.Wait(); err != nil {
		return nil, fmt.Errorf("failed to upload artifact blobs: %w", err)
	}

	artifact := models.SavedArtifact{
		ID:           filename,
		MeshURL:      storedMeshURL,
		ThumbnailURL: storedThumbURL,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		SourceImage:  sourceImage,
		Resolution:   resolution,
		ContentHash:  hash,
	}

	snapshot.Models = append([]models.SavedArtifact{artifact}, snapshot.Models...)
	if err := s.persist(snapshot); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	return &artifact, nil
}

// List returns every complete artifact, newest first.
func (s *ArtifactStore) List(ctx context.Context) []models.SavedArtifact {
	s.mu.Lock()
	snapshot := s.load()
	s.mu.Unlock()

	artifacts := make([]models.SavedArtifact, 0, len(snapshot.Models))
	for _, a := range snapshot.Models {
		if a.Complete() {
			artifacts = append(artifacts, a)
		}
	}

	return artifacts
}

// Delete removes the artifact and its backing blobs. A missing id is logged
// and ignored. Blob deletion is best effort: a blob that cannot be deleted
// does not keep the entry in the index.
func (s *ArtifactStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.load()

	idx := -1
	for i, a := range snapshot.Models {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.log.Infow("artifact not found, nothing to delete", "id", id)
		return nil
	}

	target := snapshot.Models[idx]

	var wg sync.WaitGroup
	for _, blobURL := range []string{target.MeshURL, target.ThumbnailURL} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if err := s.blobs.RemoveURL(u); err != nil {
				s.log.Warnw("failed to delete artifact blob", "url", u, "error", err)
			}
		}(blobURL)
	}
	wg.Wait()

	snapshot.Models = append(snapshot.Models[:idx], snapshot.Models[idx+1:]...)
	if err := s.persist(snapshot); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	return nil
}

// load reads the newest snapshot blob. Any failure yields an empty snapshot;
// the store is append-mostly and recovers on the next persist.
func (s *ArtifactStore) load() models.ArtifactSnapshot {
	names, err := s.blobs.List(snapshotPrefix)
	if err != nil {
		s.log.Warnw("failed to list snapshots", "error", err)
		return models.ArtifactSnapshot{}
	}

	latest := ""
	var latestTS int64 = -1
	for _, name := range names {
		ts, ok := snapshotTimestamp(name)
		if ok && ts > latestTS {
			latest, latestTS = name, ts
		}
	}
	if latest == "" {
		return models.ArtifactSnapshot{}
	}

	data, err := s.blobs.Download(latest)
	if err != nil {
		s.log.Warnw("failed to download snapshot", "snapshot", latest, "error", err)
		return models.ArtifactSnapshot{}
	}

	var snapshot models.ArtifactSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.log.Warnw("failed to decode snapshot", "snapshot", latest, "error", err)
		return models.ArtifactSnapshot{}
	}

	return snapshot
}

// persist writes a brand-new snapshot blob, then prunes every older snapshot
// so exactly one version remains.
func (s *ArtifactStore) persist(snapshot models.ArtifactSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	name := fmt.Sprintf("%s%d.json", snapshotPrefix, time.Now().UnixMilli())
	if _, err := s.blobs.Upload(name, data, "application/json"); err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}

	names, err := s.blobs.List(snapshotPrefix)
	if err != nil {
		s.log.Warnw("failed to list snapshots for pruning", "error", err)
		return nil
	}
	for _, old := range names {
		if old == name {
			continue
		}
		if _, ok := snapshotTimestamp(old); !ok {
			continue
		}
		if err := s.blobs.Remove(old); err != nil {
			s.log.Warnw("failed to prune old snapshot", "snapshot", old, "error", err)
		}
	}

	return nil
}

// validateURL issues a HEAD request and checks the content type. kind is
// "model", "image", or "" for a bare reachability check.
func (s *ArtifactStore) validateURL(ctx context.Context, rawURL, kind string) bool {
	req, err := http.NewRequestWithContext(ctx, "HEAD", rawURL, nil)
	if err != nil {
		return false
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}

	contentType := resp.Header.Get("Content-Type")
	switch kind {
	case "model":
		return strings.Contains(contentType, "model/gltf-binary") ||
			strings.Contains(contentType, "application/octet-stream")
	case "image":
		return strings.HasPrefix(contentType, "image/")
	default:
		return true
	}
}

func (s *ArtifactStore) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func snapshotTimestamp(name string) (int64, bool) {
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), ".json")
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

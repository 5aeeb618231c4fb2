package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"mesh-gallery-backend/internal/models"
)

// ArchiveBuilder packages selected gallery items into a single zip download.
type ArchiveBuilder struct {
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewArchiveBuilder(log *zap.SugaredLogger) *ArchiveBuilder {
	return &ArchiveBuilder{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		log: log,
	}
}

// Build fetches each item and writes a zip archive to w, returning how many
// items made it in. A fetch failure drops that item and the batch continues.
func (b *ArchiveBuilder) Build(ctx context.Context, items []models.ArchiveItem, w io.Writer) (int, error) {
	zw := zip.NewWriter(w)

	written := 0
	used := make(map[string]int)
	for _, item := range items {
		data, err := b.fetch(ctx, item.URL)
		if err != nil {
			b.log.Warnw("failed to fetch archive item, skipping", "url", item.URL, "error", err)
			continue
		}

		name := archiveEntryName(item, used)
		entry, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return written, fmt.Errorf("failed to create archive entry %s: %w", name, err)
		}
		if _, err := entry.Write(data); err != nil {
			zw.Close()
			return written, fmt.Errorf("failed to write archive entry %s: %w", name, err)
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return written, nil
}

func (b *ArchiveBuilder) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// archiveEntryName picks a stable name for an entry, deduplicating
// collisions with a numeric suffix.
func archiveEntryName(item models.ArchiveItem, used map[string]int) string {
	name := item.Name
	if name == "" {
		if u, err := url.Parse(item.URL); err == nil {
			name = path.Base(u.Path)
		}
	}
	if name == "" || name == "." || name == "/" {
		name = "model.glb"
	}
	if path.Ext(name) == "" {
		name += ".glb"
	}

	count := used[name]
	used[name] = count + 1
	if count == 0 {
		return name
	}

	ext := path.Ext(name)
	base := name[:len(name)-len(ext)]
	return fmt.Sprintf("%s-%d%s", base, count+1, ext)
}

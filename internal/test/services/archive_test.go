package services_test

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/models"
	"mesh-gallery-backend/internal/services"
)

func newArchiveServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/chair.glb", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("chair-mesh"))
	})
	mux.HandleFunc("/table.glb", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("table-mesh"))
	})
	mux.HandleFunc("/missing.glb", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func readZipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestArchiveBuilder_Build(t *testing.T) {
	server := newArchiveServer()
	defer server.Close()

	builder := services.NewArchiveBuilder(zap.NewNop().Sugar())

	var buf bytes.Buffer
	items := []models.ArchiveItem{
		{Name: "Chair", URL: server.URL + "/chair.glb"},
		{Name: "Table", URL: server.URL + "/table.glb"},
	}
	written, err := builder.Build(context.Background(), items, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	names := readZipNames(t, buf.Bytes())
	assert.ElementsMatch(t, []string{"Chair.glb", "Table.glb"}, names)
}

func TestArchiveBuilder_SkipsFailedFetches(t *testing.T) {
	server := newArchiveServer()
	defer server.Close()

	builder := services.NewArchiveBuilder(zap.NewNop().Sugar())

	var buf bytes.Buffer
	items := []models.ArchiveItem{
		{URL: server.URL + "/chair.glb"},
		{URL: server.URL + "/missing.glb"},
	}
	written, err := builder.Build(context.Background(), items, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	names := readZipNames(t, buf.Bytes())
	assert.Equal(t, []string{"chair.glb"}, names)
}

func TestArchiveBuilder_DeduplicatesEntryNames(t *testing.T) {
	server := newArchiveServer()
	defer server.Close()

	builder := services.NewArchiveBuilder(zap.NewNop().Sugar())

	var buf bytes.Buffer
	items := []models.ArchiveItem{
		{Name: "model", URL: server.URL + "/chair.glb"},
		{Name: "model", URL: server.URL + "/table.glb"},
		{Name: "model", URL: server.URL + "/chair.glb"},
	}
	written, err := builder.Build(context.Background(), items, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	names := readZipNames(t, buf.Bytes())
	assert.ElementsMatch(t, []string{"model.glb", "model-2.glb", "model-3.glb"}, names)
}

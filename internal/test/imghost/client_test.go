package imghost_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesh-gallery-backend/internal/imghost"
)

func TestClient_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "test-key", r.FormValue("key"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "photo.jpg", header.Filename)

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg-bytes"), data)

		w.Write([]byte(`{"success":true,"data":{"url":"https://host.test/photo.jpg"}}`))
	}))
	defer server.Close()

	client := imghost.NewClient(server.URL, "test-key")

	url, err := client.Upload(context.Background(), "photo.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://host.test/photo.jpg", url)
}

func TestClient_UploadRejectsEmptyData(t *testing.T) {
	client := imghost.NewClient("https://host.test", "test-key")

	_, err := client.Upload(context.Background(), "photo.jpg", nil)
	assert.Error(t, err)
}

func TestClient_UploadFailureResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"data":{}}`))
	}))
	defer server.Close()

	client := imghost.NewClient(server.URL, "test-key")

	_, err := client.Upload(context.Background(), "photo.jpg", []byte("jpeg-bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload failed")
}

package supabase

import (
	"bytes"
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// StorageClient wraps Supabase Storage as the durable blob store for mesh
// binaries, thumbnails, and artifact-store snapshots.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// Upload writes the object and returns its public URL.
func (s *StorageClient) Upload(path string, data []byte, contentType string) (string, error) {
	upsert := true
	_, err := s.client.UploadFile(s.bucket, path, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return s.PublicURL(path), nil
}

// List returns object names under the given prefix.
func (s *StorageClient) List(prefix string) ([]string, error) {
	files, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	names := make([]string, len(files))
	for i, file := range files {
		names[i] = file.Name
	}

	return names, nil
}

func (s *StorageClient) Remove(path string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{path})
	return err
}

// RemoveURL deletes the object behind a public URL produced by this client.
func (s *StorageClient) RemoveURL(publicURL string) error {
	path, ok := s.PathFromURL(publicURL)
	if !ok {
		return fmt.Errorf("url %q does not belong to bucket %q", publicURL, s.bucket)
	}
	return s.Remove(path)
}

func (s *StorageClient) Download(path string) ([]byte, error) {
	data, err := s.client.DownloadFile(s.bucket, path)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	return data, nil
}

func (s *StorageClient) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path)
}

// PathFromURL recovers the object path from a public URL for this bucket.
func (s *StorageClient) PathFromURL(publicURL string) (string, bool) {
	prefix := fmt.Sprintf("%s/storage/v1/object/public/%s/", s.baseURL, s.bucket)
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	return strings.TrimPrefix(publicURL, prefix), true
}

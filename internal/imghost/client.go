package imghost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client uploads images to an ImgBB-style hosting API and returns public
// URLs usable as inference inputs.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Upload sends the image bytes to the hosting service and returns the public URL.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no image provided")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.WriteField("key", c.apiKey); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close form writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to upload image: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result uploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	if !result.Success || result.Data.URL == "" {
		return "", fmt.Errorf("upload failed, body: %s", string(body))
	}

	return result.Data.URL, nil
}

package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mesh-gallery-backend/internal/models"
)

// Client talks to a Replicate-style inference API: mesh generation jobs run
// on a named deployment, text-to-image runs as a blocking model prediction.
type Client struct {
	baseURL     string
	apiToken    string
	deployOwner string
	deployName  string
	t2iModel    string
	httpClient  *http.Client
}

type predictionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type listResponse struct {
	Results []json.RawMessage `json:"results"`
}

func NewClient(baseURL, apiToken, deployOwner, deployName, t2iModel string) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiToken:    apiToken,
		deployOwner: deployOwner,
		deployName:  deployName,
		t2iModel:    t2iModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Submit starts one mesh-generation job and returns the id the service
// assigned to it.
func (c *Client) Submit(ctx context.Context, input models.JobInput) (string, error) {
	payload := map[string]interface{}{"input": input}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/deployments/%s/%s/predictions", c.baseURL, c.deployOwner, c.deployName)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("failed to submit generation: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result predictionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	if result.ID == "" {
		return "", fmt.Errorf("prediction id is empty in response, body: %s", string(body))
	}

	return result.ID, nil
}

// ListJobs fetches the deployment's job listing. Records that fail to decode
// or lack an id, status, or input image are dropped; the caller only ever
// sees well-formed jobs.
func (c *Client) ListJobs(ctx context.Context) ([]models.RemoteJob, error) {
	endpoint := fmt.Sprintf("%s/predictions?deployment=%s/%s", c.baseURL, c.deployOwner, c.deployName)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to list jobs: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result listResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	jobs := make([]models.RemoteJob, 0, len(result.Results))
	for _, raw := range result.Results {
		var job models.RemoteJob
		if err := json.Unmarshal(raw, &job); err != nil {
			continue
		}
		if job.ID == "" || job.Status == "" || job.Input.Image == "" {
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// GetJob fetches the current state of a single job by id.
func (c *Client) GetJob(ctx context.Context, jobID string) (*models.RemoteJob, error) {
	endpoint := fmt.Sprintf("%s/predictions/%s", c.baseURL, url.PathEscape(jobID))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get job %s: status %d, body: %s", jobID, resp.StatusCode, string(body))
	}

	var job models.RemoteJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &job, nil
}

// GenerateImage runs the text-to-image model synchronously and returns the
// generated image URL. At most one image is produced per call.
func (c *Client) GenerateImage(ctx context.Context, prompt, aspectRatio, negativePrompt string) (string, error) {
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}
	payload := map[string]interface{}{
		"input": map[string]interface{}{
			"prompt":          prompt,
			"aspect_ratio":    aspectRatio,
			"negative_prompt": negativePrompt,
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, c.t2iModel)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("failed to generate image: status %d, body: %s", resp.StatusCode, string(body))
	}

	// Output is either a single URL or an array of URLs depending on the model.
	var result struct {
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	imageURL := decodeOutputURL(result.Output)
	if imageURL == "" {
		return "", fmt.Errorf("no image in response, body: %s", string(body))
	}

	return imageURL, nil
}

// Download fetches raw bytes from a result URL.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to download file: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
func (c *Client) RetryWithBackoff(fn func() error, maxRetries int) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(backoffs) {
			time.Sleep(backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func decodeOutputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

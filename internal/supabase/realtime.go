package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// RealtimeClient publishes gallery events so connected clients can refresh
// without waiting for the next poll.
type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(supabaseURL, apiKey string) (*RealtimeClient, error) {
	client, err := supabase.NewClient(supabaseURL, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &RealtimeClient{
		client: client,
	}, nil
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// The Go client has no direct Realtime publish; row writes on the tables
	// below trigger Realtime change events automatically. This remains the
	// hook for explicit publishing via the Realtime REST API.
	return nil
}

func (r *RealtimeClient) PublishGalleryEvent(event string, payload map[string]interface{}) error {
	return r.PublishEvent("gallery", event, payload)
}

// Event payloads

func JobCompletedPayload(jobID, artifactID string) map[string]interface{} {
	return map[string]interface{}{
		"job_id":      jobID,
		"status":      "completed",
		"artifact_id": artifactID,
	}
}

func JobFailedPayload(jobID, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"job_id": jobID,
		"status": "failed",
		"error":  errorMsg,
	}
}

func ProjectChannel(projectID string) string {
	return fmt.Sprintf("project:%s", projectID)
}

package models

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type SubmitGenerationResponse struct {
	Submitted int      `json:"submitted"`
	Failed    int      `json:"failed"`
	JobIDs    []string `json:"job_ids"`
	Errors    []string `json:"errors,omitempty"`
}

// RecentView is the merged Recent-tab view: optimistic placeholders first,
// then the confirmed remote jobs in display order.
type RecentView struct {
	Pending []PendingSubmission `json:"pending"`
	Jobs    []RemoteJob         `json:"jobs"`
}

type UploadImageResponse struct {
	URL string `json:"url"`
}

type GenerateImagesResponse struct {
	Images []GeneratedImage `json:"images"`
}

type GeneratedImage struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

type SweepResponse struct {
	Examined  int `json:"examined"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

package models

// GenerationParams are the tunables forwarded to the inference service.
// Zero values are replaced with the service defaults at submission time.
type GenerationParams struct {
	Steps            int     `json:"steps" example:"50"`
	GuidanceScale    float64 `json:"guidance_scale" example:"5.5"`
	Seed             int     `json:"seed"`
	OctreeResolution int     `json:"octree_resolution" example:"256"`
	RemoveBackground bool    `json:"remove_background" example:"true"`
}

type SubmitGenerationRequest struct {
	// Images are the hosted input image URLs; each produces one job.
	Images    []string         `json:"images" binding:"required"`
	Params    GenerationParams `json:"params"`
	ProjectID string           `json:"project_id,omitempty"`
}

type GenerateImagesRequest struct {
	Prompts        []string `json:"prompts" binding:"required"`
	AspectRatio    string   `json:"aspect_ratio" example:"1:1"`
	NegativePrompt string   `json:"negative_prompt"`
}

type SaveArtifactRequest struct {
	MeshURL     string `json:"mesh_url" binding:"required"`
	SourceImage string `json:"input_image" binding:"required"`
	// Resolution is bound as a JSON number so fractional values can be
	// rejected before the store sees them.
	Resolution float64 `json:"resolution" binding:"required"`
}

type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

type SaveToProjectRequest struct {
	MeshURL      string  `json:"mesh_url" binding:"required"`
	ThumbnailURL string  `json:"thumbnail_url" binding:"required"`
	SourceImage  string  `json:"input_image" binding:"required"`
	Resolution   float64 `json:"resolution" binding:"required"`
	Name         string  `json:"name,omitempty"`
}

type MoveModelsRequest struct {
	ModelIDs        []string `json:"model_ids" binding:"required"`
	TargetProjectID string   `json:"target_project_id" binding:"required"`
}

type RenameModelsRequest struct {
	ModelIDs []string `json:"model_ids" binding:"required"`
	Name     string   `json:"name" binding:"required"`
}

type DeleteModelsRequest struct {
	ModelIDs []string `json:"model_ids" binding:"required"`
}

type RegisterJobRequest struct {
	JobID     string `json:"job_id" binding:"required"`
	ProjectID string `json:"project_id,omitempty"`
}

type ArchiveRequest struct {
	// Items are the selected gallery entries to package into one archive.
	Items []ArchiveItem `json:"items" binding:"required"`
}

type ArchiveItem struct {
	Name string `json:"name"`
	URL  string `json:"url" binding:"required"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProjectModel struct {
	ID           uuid.UUID `json:"id"`
	ProjectID    uuid.UUID `json:"project_id"`
	MeshURL      string    `json:"model_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	SourceImage  string    `json:"input_image"`
	Resolution   int       `json:"resolution"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

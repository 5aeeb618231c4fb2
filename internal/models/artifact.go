package models

// SavedArtifact is one durably saved mesh plus its thumbnail and provenance.
// Entries are immutable once written; the JSON field names match the snapshot
// format on blob storage.
type SavedArtifact struct {
	ID           string `json:"id"`
	MeshURL      string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	CreatedAt    string `json:"created_at"`
	SourceImage  string `json:"input_image"`
	Resolution   int    `json:"resolution"`
	ContentHash  string `json:"model_hash"`
}

// Complete reports whether every required field is populated. Snapshots can
// contain partially written legacy records; those are filtered out of reads.
func (a SavedArtifact) Complete() bool {
	return a.ID != "" &&
		a.MeshURL != "" &&
		a.ThumbnailURL != "" &&
		a.CreatedAt != "" &&
		a.SourceImage != "" &&
		a.Resolution != 0 &&
		a.ContentHash != ""
}

// ArtifactSnapshot is the serialized index of the whole artifact store,
// written as a single versioned blob.
type ArtifactSnapshot struct {
	Models []SavedArtifact `json:"models"`
}

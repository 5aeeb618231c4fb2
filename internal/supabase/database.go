package supabase

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mesh-gallery-backend/internal/models"
)

// DatabaseClient is the relational store for projects, project models, and
// the generation-job registry.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// NewDatabaseClientFromDB wraps an existing connection. Used by tests.
func NewDatabaseClientFromDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

// Projects

func (d *DatabaseClient) CreateProject(name string) (*models.Project, error) {
	var project models.Project
	err := d.db.QueryRow(`
		INSERT INTO projects (name)
		VALUES ($1)
		RETURNING id, name, created_at, updated_at
	`, name).Scan(&project.ID, &project.Name, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return &project, nil
}

func (d *DatabaseClient) ListProjects() ([]models.Project, error) {
	rows, err := d.db.Query(`
		SELECT id, name, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(&project.ID, &project.Name, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, nil
}

func (d *DatabaseClient) GetProject(projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := d.db.QueryRow(`
		SELECT id, name, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID).Scan(&project.ID, &project.Name, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// DeleteProject removes a project and all of its models. Children are deleted
// first; if that fails the project row is left untouched so no parent ever
// disappears while rows still point at it.
func (d *DatabaseClient) DeleteProject(projectID uuid.UUID) error {
	if _, err := d.db.Exec(`
		DELETE FROM project_models
		WHERE project_id = $1
	`, projectID); err != nil {
		return fmt.Errorf("failed to delete project models: %w", err)
	}

	if _, err := d.db.Exec(`
		DELETE FROM projects
		WHERE id = $1
	`, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	return nil
}

// Project models

func (d *DatabaseClient) ListModels(projectID uuid.UUID) ([]models.ProjectModel, error) {
	rows, err := d.db.Query(`
		SELECT id, project_id, model_url, thumbnail_url, input_image, resolution, name, created_at
		FROM project_models
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var result []models.ProjectModel
	for rows.Next() {
		var m models.ProjectModel
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.MeshURL, &m.ThumbnailURL,
			&m.SourceImage, &m.Resolution, &m.Name, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		result = append(result, m)
	}

	return result, nil
}

func (d *DatabaseClient) SaveModel(projectID uuid.UUID, meshURL, thumbnailURL, sourceImage string, resolution int, name string) (*models.ProjectModel, error) {
	if name == "" {
		name = "Model " + time.Now().Format("2006-01-02 15:04:05")
	}

	var m models.ProjectModel
	err := d.db.QueryRow(`
		INSERT INTO project_models (project_id, model_url, thumbnail_url, input_image, resolution, name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, project_id, model_url, thumbnail_url, input_image, resolution, name, created_at
	`, projectID, meshURL, thumbnailURL, sourceImage, resolution, name).Scan(
		&m.ID, &m.ProjectID, &m.MeshURL, &m.ThumbnailURL,
		&m.SourceImage, &m.Resolution, &m.Name, &m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}

	return &m, nil
}

func (d *DatabaseClient) DeleteModel(modelID uuid.UUID) error {
	if _, err := d.db.Exec(`
		DELETE FROM project_models
		WHERE id = $1
	`, modelID); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	return nil
}

// MoveModels reassigns each model to the target project one id at a time.
// There is no transaction across ids: updates already applied stay applied
// even when a later one fails, and callers should re-fetch to see the actual
// state. The returned error reports the first failure.
func (d *DatabaseClient) MoveModels(modelIDs []string, targetProjectID uuid.UUID) error {
	var firstErr error
	for _, id := range modelIDs {
		if _, err := d.db.Exec(`
			UPDATE project_models
			SET project_id = $1
			WHERE id = $2
		`, targetProjectID, id); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to move model %s: %w", id, err)
		}
	}

	return firstErr
}

// RenameModels sets each model's name. A single id receives newName verbatim;
// multiple ids receive newName suffixed with their 1-based position. Same
// partial-application semantics as MoveModels.
func (d *DatabaseClient) RenameModels(modelIDs []string, newName string) error {
	var firstErr error
	for i, id := range modelIDs {
		name := newName
		if len(modelIDs) > 1 {
			name = fmt.Sprintf("%s-%d", newName, i+1)
		}
		if _, err := d.db.Exec(`
			UPDATE project_models
			SET name = $1
			WHERE id = $2
		`, name, id); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to rename model %s: %w", id, err)
		}
	}

	return firstErr
}

// DeleteModelsByIDs removes all given models in a single statement.
func (d *DatabaseClient) DeleteModelsByIDs(modelIDs []string) error {
	if len(modelIDs) == 0 {
		return nil
	}

	if _, err := d.db.Exec(`
		DELETE FROM project_models
		WHERE id = ANY($1)
	`, pq.Array(modelIDs)); err != nil {
		return fmt.Errorf("failed to delete models: %w", err)
	}

	return nil
}

// Generation-job registry

func (d *DatabaseClient) RegisterJob(jobID string, projectID uuid.NullUUID) error {
	if _, err := d.db.Exec(`
		INSERT INTO generation_jobs (job_id, project_id, status)
		VALUES ($1, $2, $3)
	`, jobID, projectID, models.RegistryStatusPending); err != nil {
		return fmt.Errorf("failed to register job %s: %w", jobID, err)
	}

	return nil
}

func (d *DatabaseClient) ListPendingJobs() ([]models.JobRegistryEntry, error) {
	rows, err := d.db.Query(`
		SELECT job_id, project_id, status, created_at, updated_at
		FROM generation_jobs
		WHERE status = $1
		ORDER BY created_at ASC
	`, models.RegistryStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	var entries []models.JobRegistryEntry
	for rows.Next() {
		var e models.JobRegistryEntry
		if err := rows.Scan(&e.JobID, &e.ProjectID, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// MarkJobCompleted transitions a pending entry to completed. The status guard
// in the WHERE clause makes the transition a no-op when another sweep already
// claimed the entry.
func (d *DatabaseClient) MarkJobCompleted(jobID string) error {
	if _, err := d.db.Exec(`
		UPDATE generation_jobs
		SET status = $1, updated_at = now()
		WHERE job_id = $2 AND status = $3
	`, models.RegistryStatusCompleted, jobID, models.RegistryStatusPending); err != nil {
		return fmt.Errorf("failed to mark job %s completed: %w", jobID, err)
	}

	return nil
}

func (d *DatabaseClient) MarkJobFailed(jobID string) error {
	if _, err := d.db.Exec(`
		UPDATE generation_jobs
		SET status = $1, updated_at = now()
		WHERE job_id = $2 AND status = $3
	`, models.RegistryStatusFailed, jobID, models.RegistryStatusPending); err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}

	return nil
}

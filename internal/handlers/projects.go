package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/models"
	"mesh-gallery-backend/internal/services"
	"mesh-gallery-backend/internal/store"
	"mesh-gallery-backend/internal/supabase"
)

type ProjectsHandler struct {
	db      *supabase.DatabaseClient
	gallery *services.Gallery
	log     *zap.SugaredLogger
}

func NewProjectsHandler(db *supabase.DatabaseClient, gallery *services.Gallery, log *zap.SugaredLogger) *ProjectsHandler {
	return &ProjectsHandler{
		db:      db,
		gallery: gallery,
		log:     log,
	}
}

// CreateProject godoc
// @Summary     Create a project
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateProjectRequest true "Project name"
// @Success     200 {object} models.Project
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	if !h.requireDB(c) {
		return
	}

	project, err := h.db.CreateProject(req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create project", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, project)
}

// ListProjects godoc
// @Summary     List projects
// @Description Returns all projects, newest first.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {array} models.Project
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	if !h.requireDB(c) {
		return
	}

	projects, err := h.db.ListProjects()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list projects", Message: err.Error()})
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	c.JSON(http.StatusOK, projects)
}

// GetProject godoc
// @Summary     Get a project
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project id"
// @Success     200 {object} models.Project
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
	projectID, ok := h.parseProjectID(c)
	if !ok {
		return
	}

	if !h.requireDB(c) {
		return
	}

	project, err := h.db.GetProject(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary     Delete a project and its models
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project id"
// @Success     200 {object} models.SuccessResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	projectID, ok := h.parseProjectID(c)
	if !ok {
		return
	}

	if !h.requireDB(c) {
		return
	}

	if err := h.db.DeleteProject(projectID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete project", Message: err.Error()})
		return
	}
	h.gallery.InvalidateProject(projectID)

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// ListModels godoc
// @Summary     List a project's models
// @Description Returns the project's models, newest first. Results are cached
// @Description per project until a mutation invalidates them.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project id"
// @Success     200 {array} models.ProjectModel
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{project_id}/models [get]
func (h *ProjectsHandler) ListModels(c *gin.Context) {
	projectID, ok := h.parseProjectID(c)
	if !ok {
		return
	}

	if !h.requireDB(c) {
		return
	}

	projectModels, err := h.gallery.ProjectModels(projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list models", Message: err.Error()})
		return
	}
	if projectModels == nil {
		projectModels = []models.ProjectModel{}
	}

	c.JSON(http.StatusOK, projectModels)
}

// SaveModel godoc
// @Summary     Save a model into a project
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project id"
// @Param       request body models.SaveToProjectRequest true "Model URLs, resolution, and optional name"
// @Success     200 {object} models.ProjectModel
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{project_id}/models [post]
func (h *ProjectsHandler) SaveModel(c *gin.Context) {
	projectID, ok := h.parseProjectID(c)
	if !ok {
		return
	}

	var req models.SaveToProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	resolution, ok := integerResolution(req.Resolution)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid resolution",
			Message: fmt.Sprintf("resolution must be an integer in [%d, %d]", store.MinResolution, store.MaxResolution),
		})
		return
	}

	if !h.requireDB(c) {
		return
	}

	model, err := h.db.SaveModel(projectID, req.MeshURL, req.ThumbnailURL, req.SourceImage, resolution, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save model", Message: err.Error()})
		return
	}
	h.gallery.InvalidateProject(projectID)

	c.JSON(http.StatusOK, model)
}

// DeleteModel godoc
// @Summary     Delete a single project model
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       model_id path string true "Model id"
// @Success     200 {object} models.SuccessResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /models/{model_id} [delete]
func (h *ProjectsHandler) DeleteModel(c *gin.Context) {
	modelID, err := uuid.Parse(c.Param("model_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid model id", Message: err.Error()})
		return
	}

	if !h.requireDB(c) {
		return
	}

	if err := h.db.DeleteModel(modelID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete model", Message: err.Error()})
		return
	}
	// The owning project is not part of the route; drop every cached listing.
	h.gallery.InvalidateAll()

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// MoveModels godoc
// @Summary     Move models into another project
// @Description Reassigns each model to the target project. Moves already
// @Description applied stay applied when a later one fails.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.MoveModelsRequest true "Model ids and target project"
// @Success     200 {object} models.SuccessResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /models/move [post]
func (h *ProjectsHandler) MoveModels(c *gin.Context) {
	var req models.MoveModelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if len(req.ModelIDs) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "at least one model id is required"})
		return
	}

	targetID, err := uuid.Parse(req.TargetProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid target project id", Message: err.Error()})
		return
	}

	if !h.requireDB(c) {
		return
	}

	err = h.db.MoveModels(req.ModelIDs, targetID)
	// Source projects are unknown here, so every cached listing goes.
	h.gallery.InvalidateAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to move models", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// RenameModels godoc
// @Summary     Rename models
// @Description A single id receives the name verbatim; multiple ids receive
// @Description the name with a 1-based numeric suffix.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.RenameModelsRequest true "Model ids and new name"
// @Success     200 {object} models.SuccessResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /models/rename [post]
func (h *ProjectsHandler) RenameModels(c *gin.Context) {
	var req models.RenameModelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if len(req.ModelIDs) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "at least one model id is required"})
		return
	}

	if !h.requireDB(c) {
		return
	}

	err := h.db.RenameModels(req.ModelIDs, req.Name)
	h.gallery.InvalidateAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to rename models", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// BulkDeleteModels godoc
// @Summary     Delete models in bulk
// @Description Removes all given models in one statement; either every row
// @Description goes or none do.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.DeleteModelsRequest true "Model ids"
// @Success     200 {object} models.SuccessResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /models/delete [post]
func (h *ProjectsHandler) BulkDeleteModels(c *gin.Context) {
	var req models.DeleteModelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if len(req.ModelIDs) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "at least one model id is required"})
		return
	}

	if !h.requireDB(c) {
		return
	}

	err := h.db.DeleteModelsByIDs(req.ModelIDs)
	h.gallery.InvalidateAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete models", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

func (h *ProjectsHandler) requireDB(c *gin.Context) bool {
	if h.db != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "project storage not available", Message: "no database configured"})
	return false
}

func (h *ProjectsHandler) parseProjectID(c *gin.Context) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id", Message: err.Error()})
		return uuid.Nil, false
	}
	return projectID, true
}

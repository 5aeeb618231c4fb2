package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/models"
	"mesh-gallery-backend/internal/services"
	"mesh-gallery-backend/internal/store"
)

type ArtifactsHandler struct {
	artifacts *store.ArtifactStore
	archiver  *services.ArchiveBuilder
	log       *zap.SugaredLogger
}

func NewArtifactsHandler(artifacts *store.ArtifactStore, archiver *services.ArchiveBuilder, log *zap.SugaredLogger) *ArtifactsHandler {
	return &ArtifactsHandler{
		artifacts: artifacts,
		archiver:  archiver,
		log:       log,
	}
}

// List godoc
// @Summary     List saved artifacts
// @Description Returns every complete saved artifact, newest first.
// @Tags        artifacts
// @Produce     json
// @Security    Bearer
// @Success     200 {array} models.SavedArtifact
// @Router      /artifacts [get]
func (h *ArtifactsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.artifacts.List(c.Request.Context()))
}

// Save godoc
// @Summary     Save an artifact
// @Description Downloads the mesh, content-addresses it, and stores it durably. A mesh whose hash already exists returns the existing entry.
// @Tags        artifacts
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.SaveArtifactRequest true "Mesh, source image, and resolution"
// @Success     200 {object} models.SavedArtifact
// @Failure     400 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Router      /artifacts [post]
func (h *ArtifactsHandler) Save(c *gin.Context) {
	var req models.SaveArtifactRequest
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

	artifact, err := h.artifacts.Save(c.Request.Context(), req.MeshURL, req.SourceImage, resolution)
	if err != nil {
		h.log.Warnw("artifact save failed", "mesh_url", req.MeshURL, "error", err)
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "failed to save artifact", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, artifact)
}

// Delete godoc
// @Summary     Delete a saved artifact
// @Description Removes the artifact and its backing blobs. Deleting an unknown id is a no-op.
// @Tags        artifacts
// @Produce     json
// @Security    Bearer
// @Param       artifact_id path string true "Artifact id"
// @Success     200 {object} models.SuccessResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /artifacts/{artifact_id} [delete]
func (h *ArtifactsHandler) Delete(c *gin.Context) {
	id := c.Param("artifact_id")
	if err := h.artifacts.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete artifact", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// Archive godoc
// @Summary     Download selected items as one archive
// @Description Fetches each item and streams a zip. Items that fail to fetch are skipped, not fatal.
// @Tags        artifacts
// @Accept      json
// @Produce     application/zip
// @Security    Bearer
// @Param       request body models.ArchiveRequest true "Items to package"
// @Success     200
// @Failure     400 {object} models.ErrorResponse
// @Router      /artifacts/archive [post]
func (h *ArtifactsHandler) Archive(c *gin.Context) {
	var req models.ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "at least one item is required"})
		return
	}

	filename := fmt.Sprintf("models-%s.zip", time.Now().Format("20060102-150405"))
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	written, err := h.archiver.Build(c.Request.Context(), req.Items, c.Writer)
	if err != nil {
		// Headers are already on the wire; all we can do is log.
		h.log.Warnw("archive build failed", "error", err)
		return
	}
	h.log.Infow("archive built", "requested", len(req.Items), "written", written)
}

// integerResolution rejects fractional JSON numbers before the store sees
// the value.
func integerResolution(raw float64) (int, bool) {
	n := int(raw)
	if float64(n) != raw {
		return 0, false
	}
	return n, true
}

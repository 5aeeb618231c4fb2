package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/imghost"
	"mesh-gallery-backend/internal/models"
	"mesh-gallery-backend/internal/services"
)

type GenerationHandler struct {
	generation *services.GenerationService
	sweeper    *services.Sweeper
	registry   services.JobRegistrar
	imageHost  *imghost.Client
	log        *zap.SugaredLogger
}

func NewGenerationHandler(generation *services.GenerationService, sweeper *services.Sweeper, registry services.JobRegistrar, imageHost *imghost.Client, log *zap.SugaredLogger) *GenerationHandler {
	return &GenerationHandler{
		generation: generation,
		sweeper:    sweeper,
		registry:   registry,
		imageHost:  imageHost,
		log:        log,
	}
}

// Submit godoc
// @Summary     Submit mesh generation jobs
// @Description Dispatches one generation job per input image through a bounded worker pool.
// @Tags        generations
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.SubmitGenerationRequest true "Images and generation parameters"
// @Success     200 {object} models.SubmitGenerationResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /generations [post]
func (h *GenerationHandler) Submit(c *gin.Context) {
	var req models.SubmitGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if len(req.Images) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "at least one image is required"})
		return
	}

	resp := h.generation.SubmitBatch(c.Request.Context(), req.Images, req.Params, req.ProjectID)
	if resp.Submitted == 0 {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "generation failed",
			Message: "no submission was accepted by the inference service",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GenerateImages godoc
// @Summary     Generate input images from prompts
// @Description Runs the text-to-image model over each prompt in order. The batch aborts on the first failed prompt.
// @Tags        images
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateImagesRequest true "Prompts and options"
// @Success     200 {object} models.GenerateImagesResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /images/generate [post]
func (h *GenerationHandler) GenerateImages(c *gin.Context) {
	var req models.GenerateImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if len(req.Prompts) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "at least one prompt is required"})
		return
	}

	images, err := h.generation.GenerateImages(c.Request.Context(), req.Prompts, req.AspectRatio, req.NegativePrompt)
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "image generation failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.GenerateImagesResponse{Images: images})
}

// UploadImage godoc
// @Summary     Upload an input image
// @Description Uploads the image to the hosting service and returns the public URL used as inference input.
// @Tags        images
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       image formData file true "Image file"
// @Success     200 {object} models.UploadImageResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /images/upload [post]
func (h *GenerationHandler) UploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "no image provided"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to open image", Message: err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read image", Message: err.Error()})
		return
	}

	url, err := h.imageHost.Upload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		h.log.Warnw("image upload failed", "error", err)
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "upload failed"})
		return
	}

	c.JSON(http.StatusOK, models.UploadImageResponse{URL: url})
}

// RegisterJob godoc
// @Summary     Register a pending job
// @Description Records an externally submitted job so the completion sweeper tracks it. Failures are reported as success=false, never as an error status.
// @Tags        jobs
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.RegisterJobRequest true "Job id and optional project"
// @Success     200 {object} models.SuccessResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /jobs/register [post]
func (h *GenerationHandler) RegisterJob(c *gin.Context) {
	var req models.RegisterJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	var projectID uuid.NullUUID
	if req.ProjectID != "" {
		parsed, err := uuid.Parse(req.ProjectID)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
			return
		}
		projectID = uuid.NullUUID{UUID: parsed, Valid: true}
	}

	if h.registry == nil {
		c.JSON(http.StatusOK, models.SuccessResponse{Success: false})
		return
	}

	if err := h.registry.RegisterJob(req.JobID, projectID); err != nil {
		h.log.Warnw("failed to register job", "job_id", req.JobID, "error", err)
		c.JSON(http.StatusOK, models.SuccessResponse{Success: false})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// Sweep godoc
// @Summary     Run a completion sweep
// @Description Scans pending registry entries and promotes finished jobs into durable storage.
// @Tags        generations
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SweepResponse
// @Router      /generations/sweep [post]
func (h *GenerationHandler) Sweep(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "sweeper not available", Message: "no database configured"})
		return
	}
	c.JSON(http.StatusOK, h.sweeper.Sweep(c.Request.Context()))
}

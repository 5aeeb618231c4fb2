package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/models"
	"mesh-gallery-backend/internal/services"
)

type GalleryHandler struct {
	gallery *services.Gallery
	sweeper *services.Sweeper
	log     *zap.SugaredLogger
}

func NewGalleryHandler(gallery *services.Gallery, sweeper *services.Sweeper, log *zap.SugaredLogger) *GalleryHandler {
	return &GalleryHandler{
		gallery: gallery,
		sweeper: sweeper,
		log:     log,
	}
}

// Recent godoc
// @Summary     Recent jobs view
// @Description Returns the merged Recent tab: optimistic pending submissions plus the normalized remote listing. A failed remote fetch yields an empty view, not an error status.
// @Tags        gallery
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.RecentView
// @Router      /generations/recent [get]
func (h *GalleryHandler) Recent(c *gin.Context) {
	view, err := h.gallery.Refresh(c.Request.Context())
	if err != nil {
		h.log.Warnw("recent fetch failed", "error", err)
		c.JSON(http.StatusOK, models.RecentView{
			Pending: h.gallery.Pending(),
			Jobs:    []models.RemoteJob{},
		})
		return
	}

	// Succeeded jobs in the listing may not be promoted yet; kick a sweep in
	// the background so they get saved without waiting for the next tick.
	if h.sweeper != nil {
		for _, job := range view.Jobs {
			if job.Status == models.JobStatusSucceeded {
				go h.sweeper.Sweep(context.Background())
				break
			}
		}
	}

	c.JSON(http.StatusOK, view)
}

type setTabRequest struct {
	Tab string `json:"tab" binding:"required"`
}

// SetTab godoc
// @Summary     Switch the active gallery tab
// @Description Changes the active tab and clears the selection set.
// @Tags        gallery
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body setTabRequest true "Target tab"
// @Success     200 {object} models.SuccessResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /gallery/tab [post]
func (h *GalleryHandler) SetTab(c *gin.Context) {
	var req setTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	switch req.Tab {
	case services.TabRecent, services.TabStored, services.TabProjects:
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown tab"})
		return
	}

	h.gallery.SetActiveTab(req.Tab)
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

type toggleSelectionRequest struct {
	ID string `json:"id" binding:"required"`
}

type rectSelectionRequest struct {
	Items []services.ItemBounds `json:"items" binding:"required"`
	Rect  services.Rect         `json:"rect"`
}

type selectionResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// ToggleSelection toggles a single item in the selection set.
func (h *GalleryHandler) ToggleSelection(c *gin.Context) {
	var req toggleSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	sel := h.gallery.Selection()
	sel.Toggle(req.ID)
	c.JSON(http.StatusOK, selectionResponse{IDs: sel.IDs(), Count: sel.Count()})
}

// RectSelection toggles every item whose bounding box intersects the drag
// rectangle.
func (h *GalleryHandler) RectSelection(c *gin.Context) {
	var req rectSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	sel := h.gallery.Selection()
	sel.ToggleRect(req.Items, req.Rect)
	c.JSON(http.StatusOK, selectionResponse{IDs: sel.IDs(), Count: sel.Count()})
}

// GetSelection returns the current selection set.
func (h *GalleryHandler) GetSelection(c *gin.Context) {
	sel := h.gallery.Selection()
	c.JSON(http.StatusOK, selectionResponse{IDs: sel.IDs(), Count: sel.Count()})
}

// ClearSelection empties the selection set.
func (h *GalleryHandler) ClearSelection(c *gin.Context) {
	h.gallery.Selection().Clear()
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

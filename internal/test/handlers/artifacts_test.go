package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/handlers"
	"mesh-gallery-backend/internal/services"
)

func newArtifactsRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewArtifactsHandler(nil, services.NewArchiveBuilder(zap.NewNop().Sugar()), zap.NewNop().Sugar())
	router := gin.New()
	router.POST("/artifacts", h.Save)
	router.POST("/artifacts/archive", h.Archive)
	return router
}

func TestArtifactsHandler_SaveRejectsFractionalResolution(t *testing.T) {
	router := newArtifactsRouter()

	body := `{"mesh_url":"https://cdn.test/mesh.glb","input_image":"https://cdn.test/img.jpg","resolution":300.5}`
	req, _ := http.NewRequest("POST", "/artifacts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "resolution")
}

func TestArtifactsHandler_SaveRejectsMissingFields(t *testing.T) {
	router := newArtifactsRouter()

	req, _ := http.NewRequest("POST", "/artifacts", strings.NewReader(`{"resolution":256}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArtifactsHandler_ArchiveRequiresItems(t *testing.T) {
	router := newArtifactsRouter()

	req, _ := http.NewRequest("POST", "/artifacts/archive", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

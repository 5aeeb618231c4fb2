// @title           Mesh Gallery Backend API
// @version         1.0.0
// @description     Backend API for image-to-3D generation: submits prediction jobs to the inference service, sweeps finished jobs into durable storage, and keeps the gallery (recent jobs, saved artifacts, projects) consistent.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"mesh-gallery-backend/internal/config"
	"mesh-gallery-backend/internal/database"
	"mesh-gallery-backend/internal/handlers"
	"mesh-gallery-backend/internal/imghost"
	"mesh-gallery-backend/internal/middleware"
	"mesh-gallery-backend/internal/models"
	"mesh-gallery-backend/internal/replicate"
	"mesh-gallery-backend/internal/services"
	"mesh-gallery-backend/internal/store"
	"mesh-gallery-backend/internal/supabase"
)

func main() {
	// Optional; real deployments inject env vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Environment)
	defer logger.Sync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Inference and image-hosting clients
	inferenceClient := replicate.NewClient(cfg.InferenceAPIBaseURL, cfg.InferenceAPIToken,
		cfg.InferenceDeployOwner, cfg.InferenceDeployName, cfg.TextToImageModel)
	imageHost := imghost.NewClient(cfg.ImageHostBaseURL, cfg.ImageHostAPIKey)

	// Supabase clients
	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		logger.Fatalw("failed to initialize storage client", "error", err)
	}

	realtimeClient, err := supabase.NewRealtimeClient(cfg.SupabaseURL, cfg.SupabasePublishableKey)
	if err != nil {
		logger.Fatalw("failed to initialize realtime client", "error", err)
	}

	// Direct database connection for projects and the job registry.
	var dbClient *supabase.DatabaseClient
	if cfg.DatabaseURL == "" {
		logger.Warnw("DATABASE_URL not set; projects and job auto-save are disabled")
	} else {
		dbClient, err = supabase.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			logger.Warnw("failed to initialize database client; projects and job auto-save are disabled", "error", err)
			dbClient = nil
		} else {
			defer dbClient.Close()

			migrator, err := database.NewMigrator(cfg.DatabaseURL, logger)
			if err != nil {
				logger.Warnw("failed to initialize migrator", "error", err)
			} else {
				defer migrator.Close()
				if err := migrator.Run(); err != nil {
					logger.Warnw("migration failed", "error", err)
				} else {
					logger.Infow("migrations completed")
				}
			}
		}
	}

	// Core services
	artifactStore := store.NewArtifactStore(storageClient, logger)

	notify := func(msg string) {
		if err := realtimeClient.PublishGalleryEvent("gallery_error", map[string]interface{}{
			"message": msg,
		}); err != nil {
			logger.Warnw("failed to publish gallery error", "error", err)
		}
	}

	var modelsDB services.ProjectModelLister
	if dbClient != nil {
		modelsDB = dbClient
	}
	gallery := services.NewGallery(inferenceClient, modelsDB,
		cfg.PollBaseInterval, cfg.PollMaxInterval, notify, logger)

	var registry services.JobRegistrar
	if dbClient != nil {
		registry = dbClient
	}
	generation := services.NewGenerationService(inferenceClient, registry, gallery, cfg.SubmitConcurrency, logger)

	var sweeper *services.Sweeper
	if dbClient != nil {
		sweeper = services.NewSweeper(dbClient, inferenceClient, artifactStore, dbClient,
			realtimeClient, cfg.SweepInterval, logger)
	} else {
		logger.Warnw("completion sweeper disabled without a database")
	}

	archiver := services.NewArchiveBuilder(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sweeper != nil {
		sweeper.Start(ctx)
	}

	// Keeps pending placeholders reconciled between client fetches and lets
	// subscribed clients refresh off one shared poll loop.
	gallery.StartPolling(ctx, func(view *models.RecentView) {
		if len(view.Jobs) == 0 && len(view.Pending) == 0 {
			return
		}
		if err := realtimeClient.PublishGalleryEvent("recent_view", map[string]interface{}{
			"jobs":    len(view.Jobs),
			"pending": len(view.Pending),
		}); err != nil {
			logger.Debugw("failed to publish recent view", "error", err)
		}
	})

	// Handlers
	generationHandler := handlers.NewGenerationHandler(generation, sweeper, registry, imageHost, logger)
	galleryHandler := handlers.NewGalleryHandler(gallery, sweeper, logger)
	artifactsHandler := handlers.NewArtifactsHandler(artifactStore, archiver, logger)
	projectsHandler := handlers.NewProjectsHandler(dbClient, gallery, logger)

	// Router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Generation
	api.POST("/generations", generationHandler.Submit)
	api.GET("/generations/recent", galleryHandler.Recent)
	api.POST("/generations/sweep", generationHandler.Sweep)
	api.POST("/jobs/register", generationHandler.RegisterJob)
	api.POST("/images/upload", generationHandler.UploadImage)
	api.POST("/images/generate", generationHandler.GenerateImages)

	// Gallery state
	api.POST("/gallery/tab", galleryHandler.SetTab)
	api.POST("/gallery/selection/toggle", galleryHandler.ToggleSelection)
	api.POST("/gallery/selection/rect", galleryHandler.RectSelection)
	api.GET("/gallery/selection", galleryHandler.GetSelection)
	api.DELETE("/gallery/selection", galleryHandler.ClearSelection)

	// Saved artifacts
	api.GET("/artifacts", artifactsHandler.List)
	api.POST("/artifacts", artifactsHandler.Save)
	api.DELETE("/artifacts/:artifact_id", artifactsHandler.Delete)
	api.POST("/artifacts/archive", artifactsHandler.Archive)

	// Projects
	api.POST("/projects", projectsHandler.CreateProject)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)
	api.GET("/projects/:project_id/models", projectsHandler.ListModels)
	api.POST("/projects/:project_id/models", projectsHandler.SaveModel)

	// Model operations addressed by model id
	api.DELETE("/models/:model_id", projectsHandler.DeleteModel)
	api.POST("/models/move", projectsHandler.MoveModels)
	api.POST("/models/rename", projectsHandler.RenameModels)
	api.POST("/models/delete", projectsHandler.BulkDeleteModels)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infow("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("forced shutdown", "error", err)
	}
}

func newLogger(environment string) *zap.SugaredLogger {
	var base *zap.Logger
	var err error
	if environment == "production" {
		base, err = zap.NewProduction()
	} else {
		base, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return base.Sugar()
}

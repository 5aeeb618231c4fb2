package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mesh-gallery-backend/internal/models"
)

// Submission defaults matching the generation form.
const (
	DefaultSteps            = 50
	DefaultGuidanceScale    = 5.5
	DefaultOctreeResolution = 256
)

// InferenceSubmitter is the submit side of the inference service.
type InferenceSubmitter interface {
	Submit(ctx context.Context, input models.JobInput) (string, error)
	GenerateImage(ctx context.Context, prompt, aspectRatio, negativePrompt string) (string, error)
}

// JobRegistrar records submitted jobs for the completion sweeper.
type JobRegistrar interface {
	RegisterJob(jobID string, projectID uuid.NullUUID) error
}

// GenerationService dispatches generation jobs: it creates the optimistic
// gallery placeholder, submits to the inference service, and registers the
// job for the sweeper.
type GenerationService struct {
	inference   InferenceSubmitter
	registry    JobRegistrar
	gallery     *Gallery
	concurrency int
	log         *zap.SugaredLogger
}

func NewGenerationService(inference InferenceSubmitter, registry JobRegistrar, gallery *Gallery, concurrency int, log *zap.SugaredLogger) *GenerationService {
	if concurrency < 1 {
		concurrency = 10
	}
	return &GenerationService{
		inference:   inference,
		registry:    registry,
		gallery:     gallery,
		concurrency: concurrency,
		log:         log,
	}
}

// Submit dispatches one image. The pending placeholder is created before the
// remote call returns and removed again if the submission errors out;
// otherwise the poller reconciles it away once the job shows up remotely.
func (s *GenerationService) Submit(ctx context.Context, image string, params models.GenerationParams, projectID string) (string, error) {
	input := s.buildInput(image, params)
	pending := s.gallery.AddPending(image, input.OctreeResolution, projectID)

	jobID, err := s.inference.Submit(ctx, input)
	if err != nil {
		s.gallery.RemovePending(pending.ID)
		return "", fmt.Errorf("failed to start generation: %w", err)
	}

	if err := s.registerJob(jobID, projectID); err != nil {
		// The job is already running remotely; a registry failure only costs
		// auto-save, so it is logged rather than failing the submission.
		s.log.Warnw("failed to register job", "job_id", jobID, "error", err)
	}

	return jobID, nil
}

// SubmitBatch dispatches many images through a bounded worker pool: a fixed
// number of workers pull indexes from a shared cursor, capping in-flight
// submissions no matter how many images were queued. Per-image failures are
// collected, not fatal.
func (s *GenerationService) SubmitBatch(ctx context.Context, images []string, params models.GenerationParams, projectID string) models.SubmitGenerationResponse {
	jobIDs := make([]string, len(images))
	errs := make([]error, len(images))

	var cursor atomic.Int64
	workers := s.concurrency
	if workers > len(images) {
		workers = len(images)
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				index := int(cursor.Add(1)) - 1
				if index >= len(images) {
					return nil
				}
				jobID, err := s.Submit(gctx, images[index], params, projectID)
				if err != nil {
					errs[index] = err
					continue
				}
				jobIDs[index] = jobID
			}
		})
	}
	_ = g.Wait()

	resp := models.SubmitGenerationResponse{}
	for i := range images {
		if errs[i] != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, errs[i].Error())
			continue
		}
		resp.Submitted++
		resp.JobIDs = append(resp.JobIDs, jobIDs[i])
	}

	return resp
}

// GenerateImages runs the text-to-image model over each prompt in order,
// collecting one image per prompt. The loop aborts on the first failure;
// images generated before the failure are discarded with it.
func (s *GenerationService) GenerateImages(ctx context.Context, prompts []string, aspectRatio, negativePrompt string) ([]models.GeneratedImage, error) {
	images := make([]models.GeneratedImage, 0, len(prompts))
	for i, prompt := range prompts {
		imageURL, err := s.inference.GenerateImage(ctx, prompt, aspectRatio, negativePrompt)
		if err != nil {
			return nil, fmt.Errorf("prompt %d of %d failed: %w", i+1, len(prompts), err)
		}
		images = append(images, models.GeneratedImage{URL: imageURL, Prompt: prompt})
	}

	return images, nil
}

func (s *GenerationService) buildInput(image string, params models.GenerationParams) models.JobInput {
	input := models.JobInput{
		Image:            image,
		Steps:            params.Steps,
		GuidanceScale:    params.GuidanceScale,
		Seed:             params.Seed,
		OctreeResolution: params.OctreeResolution,
		RemoveBackground: params.RemoveBackground,
	}
	if input.Steps == 0 {
		input.Steps = DefaultSteps
	}
	if input.GuidanceScale == 0 {
		input.GuidanceScale = DefaultGuidanceScale
	}
	if input.OctreeResolution == 0 {
		input.OctreeResolution = DefaultOctreeResolution
	}
	if input.Seed == 0 {
		input.Seed = rand.Intn(10000)
	}
	return input
}

func (s *GenerationService) registerJob(jobID, projectID string) error {
	if s.registry == nil {
		return nil
	}
	var pid uuid.NullUUID
	if projectID != "" {
		parsed, err := uuid.Parse(projectID)
		if err != nil {
			return fmt.Errorf("invalid project id %q: %w", projectID, err)
		}
		pid = uuid.NullUUID{UUID: parsed, Valid: true}
	}
	return s.registry.RegisterJob(jobID, pid)
}

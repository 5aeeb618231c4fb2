package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Inference service (Replicate-style API)
	InferenceAPIToken    string
	InferenceAPIBaseURL  string
	InferenceDeployOwner string
	InferenceDeployName  string
	TextToImageModel     string

	// Image hosting
	ImageHostAPIKey  string
	ImageHostBaseURL string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Background loops
	SweepInterval    time.Duration
	PollBaseInterval time.Duration
	PollMaxInterval  time.Duration

	// Submission worker pool
	SubmitConcurrency int

	// Server
	Port        string
	Environment string
	BaseURL     string
}

func Load() (*Config, error) {
	cfg := &Config{
		InferenceAPIToken:    getEnv("INFERENCE_API_TOKEN", ""),
		InferenceAPIBaseURL:  getEnv("INFERENCE_API_BASE_URL", "https://api.replicate.com/v1/"),
		InferenceDeployOwner: getEnv("INFERENCE_DEPLOYMENT_OWNER", "cygnus-holding"),
		InferenceDeployName:  getEnv("INFERENCE_DEPLOYMENT_NAME", "hunyuan3d-2"),
		TextToImageModel:     getEnv("TEXT_TO_IMAGE_MODEL", "google/imagen-3"),

		ImageHostAPIKey:  getEnv("IMAGE_HOST_API_KEY", ""),
		ImageHostBaseURL: getEnv("IMAGE_HOST_BASE_URL", "https://api.imgbb.com/1/"),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "mesh-artifacts"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
		PollBaseInterval: getEnvDuration("POLL_BASE_INTERVAL", 5*time.Second),
		PollMaxInterval:  getEnvDuration("POLL_MAX_INTERVAL", 30*time.Second),

		SubmitConcurrency: getEnvInt("SUBMIT_CONCURRENCY", 10),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.InferenceAPIToken == "" {
		return fmt.Errorf("INFERENCE_API_TOKEN is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.SubmitConcurrency < 1 {
		return fmt.Errorf("SUBMIT_CONCURRENCY must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

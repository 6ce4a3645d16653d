// Package config loads application configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment of the service.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// ParseEnvironment normalises the provided value into a known
// environment. Unknown values fall back to Development so the
// application can still start with sensible defaults.
func ParseEnvironment(v string) Environment {
	if Environment(v) == Production {
		return Production
	}
	return Development
}

// Config holds every tunable of the chefcam process. Values come from
// environment variables; main loads a .env file first when present.
type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Gemini model backend.
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	TextModel    string `envconfig:"CHEFCAM_TEXT_MODEL" default:"gemini-2.5-flash"`
	VisionModel  string `envconfig:"CHEFCAM_VISION_MODEL" default:"gemini-2.5-flash"`
	ImageModel   string `envconfig:"CHEFCAM_IMAGE_MODEL" default:"gemini-2.0-flash-preview-image-generation"`

	// Azure Speech credentials for read-aloud synthesis. Read-aloud is
	// disabled when either is empty.
	AzureSpeechKey    string `envconfig:"AZURE_SPEECH_KEY"`
	AzureSpeechRegion string `envconfig:"AZURE_SPEECH_REGION"`

	// Local whisper STT for dictation. Dictation is disabled when the
	// binary or model cannot be found.
	WhisperBin    string `envconfig:"WHISPER_BIN" default:"whisper-cli"`
	WhisperModel  string `envconfig:"WHISPER_MODEL" default:"bin/ggml-small.bin"`
	RecordSeconds int    `envconfig:"RECORD_SECS" default:"4"`

	// CameraProfile selects the default-device policy: "desktop"
	// prefers a labeled built-in camera, "mobile" prefers the
	// rear/environment-facing one.
	CameraProfile string `envconfig:"CAMERA_PROFILE" default:"desktop"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	return &cfg, nil
}

// Env returns the parsed deployment environment.
func (c *Config) Env() Environment {
	return ParseEnvironment(c.Environment)
}

// Package config loads certsplit settings from .env, an optional YAML file and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the CLI and the cloud function.
type Config struct {
	OCR      OCRConfig      `yaml:"ocr"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Log      LogConfig      `yaml:"log"`
}

// OCRConfig configures the external OCR step.
type OCRConfig struct {
	Binary   string `yaml:"binary"`
	Language string `yaml:"language"`
	Force    bool   `yaml:"force"`
	Deskew   bool   `yaml:"deskew"`
	Jobs     int    `yaml:"jobs"`
	// Disabled skips OCR and uses the input's existing text layer.
	Disabled bool `yaml:"disabled"`
}

// PipelineConfig configures segmentation and output.
type PipelineConfig struct {
	OutputDir string `yaml:"output_dir"`
	// Clean allows a non-empty OutputDir to be emptied before a run.
	Clean        bool   `yaml:"clean"`
	AutoOrganize bool   `yaml:"auto_organize"`
	Optimize     bool   `yaml:"optimize"`
	PatternsFile string `yaml:"patterns_file"`
	Marker       string `yaml:"marker"`
	WorkDir      string `yaml:"work_dir"`
}

// CloudConfig is only consulted by the cloud function and `process --upload-bucket`.
type CloudConfig struct {
	ProjectID           string `yaml:"project_id"`
	ResultsBucket       string `yaml:"results_bucket"`
	FirestoreCollection string `yaml:"firestore_collection"`
	WorkflowLocation    string `yaml:"workflow_location"`
	WorkflowID          string `yaml:"workflow_id"`
	UploadConcurrency   int    `yaml:"upload_concurrency"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OCR: OCRConfig{
			Binary:   "ocrmypdf",
			Language: "eng",
			Force:    true,
			Deskew:   true,
		},
		Pipeline: PipelineConfig{
			AutoOrganize: true,
		},
		Cloud: CloudConfig{
			FirestoreCollection: "certificate_runs",
			WorkflowLocation:    "us-central1",
			UploadConcurrency:   10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. A missing .env is ignored; a missing YAML
// file named explicitly is an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.OCR.Binary = getEnv("CERTSPLIT_OCR_BINARY", cfg.OCR.Binary)
	cfg.OCR.Language = getEnv("CERTSPLIT_OCR_LANGUAGE", cfg.OCR.Language)
	cfg.OCR.Force = getEnvAsBool("CERTSPLIT_OCR_FORCE", cfg.OCR.Force)
	cfg.OCR.Deskew = getEnvAsBool("CERTSPLIT_OCR_DESKEW", cfg.OCR.Deskew)
	cfg.OCR.Jobs = getEnvAsInt("CERTSPLIT_OCR_JOBS", cfg.OCR.Jobs)
	cfg.OCR.Disabled = getEnvAsBool("CERTSPLIT_OCR_DISABLED", cfg.OCR.Disabled)

	cfg.Pipeline.OutputDir = getEnv("CERTSPLIT_OUTPUT_DIR", cfg.Pipeline.OutputDir)
	cfg.Pipeline.Clean = getEnvAsBool("CERTSPLIT_CLEAN", cfg.Pipeline.Clean)
	cfg.Pipeline.AutoOrganize = getEnvAsBool("CERTSPLIT_AUTO_ORGANIZE", cfg.Pipeline.AutoOrganize)
	cfg.Pipeline.Optimize = getEnvAsBool("CERTSPLIT_OPTIMIZE", cfg.Pipeline.Optimize)
	cfg.Pipeline.PatternsFile = getEnv("CERTSPLIT_PATTERNS_FILE", cfg.Pipeline.PatternsFile)
	cfg.Pipeline.Marker = getEnv("CERTSPLIT_MARKER", cfg.Pipeline.Marker)
	cfg.Pipeline.WorkDir = getEnv("CERTSPLIT_WORK_DIR", cfg.Pipeline.WorkDir)

	cfg.Cloud.ProjectID = getEnv("PROJECT_ID", cfg.Cloud.ProjectID)
	cfg.Cloud.ResultsBucket = getEnv("RESULTS_BUCKET", cfg.Cloud.ResultsBucket)
	cfg.Cloud.FirestoreCollection = getEnv("FIRESTORE_COLLECTION", cfg.Cloud.FirestoreCollection)
	cfg.Cloud.WorkflowLocation = getEnv("WORKFLOW_LOCATION", cfg.Cloud.WorkflowLocation)
	cfg.Cloud.WorkflowID = getEnv("WORKFLOW_ID", cfg.Cloud.WorkflowID)
	cfg.Cloud.UploadConcurrency = getEnvAsInt("UPLOAD_CONCURRENCY", cfg.Cloud.UploadConcurrency)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !c.OCR.Disabled && c.OCR.Binary == "" {
		return errors.New("ocr.binary is required unless OCR is disabled")
	}
	if c.OCR.Jobs < 0 {
		return fmt.Errorf("ocr.jobs must not be negative, got %d", c.OCR.Jobs)
	}
	if c.Cloud.UploadConcurrency < 1 {
		return fmt.Errorf("cloud.upload_concurrency must be at least 1, got %d", c.Cloud.UploadConcurrency)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ValidateCloud checks the settings the cloud function cannot run without.
func (c *Config) ValidateCloud() error {
	if c.Cloud.ProjectID == "" {
		return errors.New("PROJECT_ID environment variable must be set")
	}
	if c.Cloud.ResultsBucket == "" {
		return errors.New("RESULTS_BUCKET environment variable must be set")
	}
	if c.Cloud.WorkflowID != "" && c.Cloud.WorkflowLocation == "" {
		return errors.New("WORKFLOW_LOCATION must be set when WORKFLOW_ID is")
	}
	return nil
}

// NewLogger builds the slog logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("Ignoring non-integer environment value.", "key", key, "value", value)
		return fallback
	}
	return n
}

func getEnvAsBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("Ignoring non-boolean environment value.", "key", key, "value", value)
		return fallback
	}
	return b
}

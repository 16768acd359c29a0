// Package config loads the engine's runtime knobs from the environment,
// following the 12-factor convention used throughout this codebase: every
// setting has an ENGINE_-prefixed env var and a safe default, and Load
// never fails — unset or invalid values fall back silently so a missing
// .env file never blocks startup.
package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Paths    PathConfig
	Pipeline PipelineConfig
	Upload   UploadConfig
	Remote   RemoteConfig
	Analyzer AnalyzerConfig
	Logging  LoggingConfig
}

// AnalyzerConfig carries the transport settings for the FaceAnalyzer capability.
type AnalyzerConfig struct {
	BaseURL               string
	TimeoutConnectSeconds int
	TimeoutReadSeconds    int
}

// PathConfig enumerates the filesystem roots and the durable store location.
type PathConfig struct {
	EventRoot string // base directory for Incoming/, Processed/, People/, Admin/
	DBPath    string // path to the SQLite database file
}

// PipelineConfig controls processing, clustering, and ingest behavior.
type PipelineConfig struct {
	WorkerCount          int
	ClusterThreshold     float64
	MaxImageSize         int
	ThumbnailSize        int
	ScanInterval         int // seconds between periodic drop-zone scans
	SupportedExtensions  []string
	DryRun               bool
	UseHardlinks         bool
	ProcessBatchSize     int // PhaseCoordinator batch size
	StuckProcessingAfter int // seconds before a `processing` Photo is considered stuck
}

// UploadConfig controls the UploadQueue's transport and retry policy.
type UploadConfig struct {
	TimeoutConnectSeconds int
	TimeoutReadSeconds    int
	MaxRetries            int
	RetryBaseDelaySeconds int
	BatchSize             int
	Enabled               bool
	StuckAfterSeconds     int
}

// RemoteConfig carries the credentials and root folder for the RemoteStore capability.
type RemoteConfig struct {
	CredentialsFile string
	RootFolderID    string
}

type LoggingConfig struct {
	Level       string // trace, debug, info, warn, error
	Environment string // "development" (pretty console) or "production" (JSON)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float64.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean. Accepts the same
// values as strconv.ParseBool ("1", "t", "true", "0", "f", "false", ...).
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envStringSlice reads a comma-separated env var into a trimmed, lowercased slice.
func envStringSlice(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Load assembles a Config from the environment, applying defaults for
// every knob enumerated in the external interfaces surface.
func Load() *Config {
	return &Config{
		Paths: PathConfig{
			EventRoot: envString("ENGINE_EVENT_ROOT", "./events"),
			DBPath:    envString("ENGINE_DB_PATH", "./events/engine.db"),
		},
		Pipeline: PipelineConfig{
			WorkerCount:      envInt("ENGINE_WORKER_COUNT", 4),
			ClusterThreshold: envFloat("ENGINE_CLUSTER_THRESHOLD", 0.6),
			MaxImageSize:     envInt("ENGINE_MAX_IMAGE_SIZE", 2048),
			ThumbnailSize:    envInt("ENGINE_THUMBNAIL_SIZE", 400),
			ScanInterval:     envInt("ENGINE_SCAN_INTERVAL", 30),
			SupportedExtensions: envStringSlice("ENGINE_SUPPORTED_EXTENSIONS",
				[]string{".jpg", ".jpeg", ".png", ".heic", ".cr2", ".cr3", ".nef", ".arw", ".dng"}),
			DryRun:               envBool("ENGINE_DRY_RUN", false),
			UseHardlinks:         envBool("ENGINE_USE_HARDLINKS", true),
			ProcessBatchSize:     envInt("ENGINE_PROCESS_BATCH_SIZE", 20),
			StuckProcessingAfter: envInt("ENGINE_STUCK_PROCESSING_SECONDS", 600),
		},
		Upload: UploadConfig{
			TimeoutConnectSeconds: envInt("ENGINE_UPLOAD_TIMEOUT_CONNECT", 10),
			TimeoutReadSeconds:    envInt("ENGINE_UPLOAD_TIMEOUT_READ", 60),
			MaxRetries:            envInt("ENGINE_UPLOAD_MAX_RETRIES", 5),
			RetryBaseDelaySeconds: envInt("ENGINE_UPLOAD_RETRY_BASE_DELAY", 1),
			BatchSize:             envInt("ENGINE_UPLOAD_BATCH_SIZE", 50),
			Enabled:               envBool("ENGINE_UPLOAD_QUEUE_ENABLED", true),
			StuckAfterSeconds:     envInt("ENGINE_UPLOAD_STUCK_SECONDS", 300),
		},
		Remote: RemoteConfig{
			CredentialsFile: envString("ENGINE_REMOTE_CREDENTIALS_FILE", ""),
			RootFolderID:    envString("ENGINE_REMOTE_ROOT_FOLDER_ID", ""),
		},
		Analyzer: AnalyzerConfig{
			BaseURL:               envString("ENGINE_FACE_ANALYZER_URL", "http://localhost:8000"),
			TimeoutConnectSeconds: envInt("ENGINE_FACE_ANALYZER_TIMEOUT_CONNECT", 5),
			TimeoutReadSeconds:    envInt("ENGINE_FACE_ANALYZER_TIMEOUT_READ", 30),
		},
		Logging: LoggingConfig{
			Level:       envString("ENGINE_LOG_LEVEL", "info"),
			Environment: envString("ENGINE_ENV", "production"),
		},
	}
}

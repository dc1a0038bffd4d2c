package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration.
// Values come from environment variables with sensible defaults.
//
// Environment Variables:
// Storage:
// - DATA_ROOT: per-task working directories (default: /data/tasks)
// - ADMIN_ROOT: per-language dictionaries/models (default: /data/admin)
// - OUTPUT_ROOT: per-owner deliverable archives (default: /data/output)
// - DB_PATH: sqlite task store (default: /data/alignd.db)
// - MAX_UPLOAD_BYTES: per-file upload size limit (default: 256 MiB)
//
// Engines:
// - ENGINE_MFA_PATH, ENGINE_MFA_CLEAN_PATH, ENGINE_FAVE_PATH,
//   ENGINE_FASE_PATH: aligner binaries (default: binary name on PATH)
//
// Alignment worker:
// - ALIGN_WORKERS, ALIGN_POLL_MIN, ALIGN_POLL_MAX, ALIGN_BACKOFF,
//   ALIGN_RETRIES, ALIGN_RETRY_DELAY, ALIGN_STALE_AFTER
//
// Upload worker:
// - UPLOAD_WORKERS, UPLOAD_POLL_MIN, UPLOAD_POLL_MAX, UPLOAD_BACKOFF,
//   UPLOAD_RETRIES, UPLOAD_RETRY_DELAY
//
// Cleanup:
// - CLEANUP_CRON: sweep schedule (default: "0 0 3 * * *")
// - RETENTION_DAYS: file horizon before unaligned tasks expire
//
// System:
// - DEFAULT_LANGUAGE: fallback language code (default: eng)
// - LOG_LEVEL: debug|info|warn|error (default: info)

type Config struct {
	Storage StorageConfig `json:"storage"`
	Engines EngineConfig  `json:"engines"`

	AlignWorker  WorkerConfig `json:"align_worker"`
	UploadWorker WorkerConfig `json:"upload_worker"`

	Cleanup CleanupConfig `json:"cleanup"`

	DefaultLanguage string `json:"default_language"`
	LogLevel        string `json:"log_level"`
}

type StorageConfig struct {
	DataRoot       string `json:"data_root"`
	AdminRoot      string `json:"admin_root"`
	OutputRoot     string `json:"output_root"`
	DBPath         string `json:"db_path"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

type EngineConfig struct {
	MFAPath      string `json:"mfa_path"`
	MFACleanPath string `json:"mfa_clean_path"`
	FAVEPath     string `json:"fave_path"`
	FASEPath     string `json:"fase_path"`
}

// BinPath returns the configured binary for an engine code; unknown
// codes fall back to the code itself so PATH lookup still applies.
func (e EngineConfig) BinPath(code string) string {
	switch code {
	case "mfa":
		return e.MFAPath
	case "mfa-clean":
		return e.MFACleanPath
	case "fave":
		return e.FAVEPath
	case "fase":
		return e.FASEPath
	default:
		return code
	}
}

// WorkerConfig tunes one polling worker.
type WorkerConfig struct {
	MaxWorkers    int           `json:"max_workers"`
	MinPoll       time.Duration `json:"min_poll"`
	MaxPoll       time.Duration `json:"max_poll"`
	BackoffFactor float64       `json:"backoff_factor"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
	StaleAfter    time.Duration `json:"stale_after"`
}

type CleanupConfig struct {
	CronExpr      string `json:"cron_expr"`
	RetentionDays int    `json:"retention_days"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Storage: StorageConfig{
			DataRoot:       getEnvString("DATA_ROOT", "/data/tasks"),
			AdminRoot:      getEnvString("ADMIN_ROOT", "/data/admin"),
			OutputRoot:     getEnvString("OUTPUT_ROOT", "/data/output"),
			DBPath:         getEnvString("DB_PATH", "/data/alignd.db"),
			MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 256<<20),
		},
		Engines: EngineConfig{
			MFAPath:      getEnvString("ENGINE_MFA_PATH", "mfa_align"),
			MFACleanPath: getEnvString("ENGINE_MFA_CLEAN_PATH", "mfa"),
			FAVEPath:     getEnvString("ENGINE_FAVE_PATH", "fave-align"),
			FASEPath:     getEnvString("ENGINE_FASE_PATH", "fase"),
		},
		AlignWorker: WorkerConfig{
			MaxWorkers:    getEnvInt("ALIGN_WORKERS", 2),
			MinPoll:       getEnvDuration("ALIGN_POLL_MIN", 2*time.Second),
			MaxPoll:       getEnvDuration("ALIGN_POLL_MAX", 60*time.Second),
			BackoffFactor: getEnvFloat("ALIGN_BACKOFF", 2.0),
			RetryAttempts: getEnvInt("ALIGN_RETRIES", 3),
			RetryDelay:    getEnvDuration("ALIGN_RETRY_DELAY", 10*time.Second),
			StaleAfter:    getEnvDuration("ALIGN_STALE_AFTER", 12*time.Hour),
		},
		UploadWorker: WorkerConfig{
			MaxWorkers:    getEnvInt("UPLOAD_WORKERS", 4),
			MinPoll:       getEnvDuration("UPLOAD_POLL_MIN", 200*time.Millisecond),
			MaxPoll:       getEnvDuration("UPLOAD_POLL_MAX", 2*time.Second),
			BackoffFactor: getEnvFloat("UPLOAD_BACKOFF", 1.2),
			RetryAttempts: getEnvInt("UPLOAD_RETRIES", 2),
			RetryDelay:    getEnvDuration("UPLOAD_RETRY_DELAY", time.Second),
		},
		Cleanup: CleanupConfig{
			CronExpr:      getEnvString("CLEANUP_CRON", "0 0 3 * * *"),
			RetentionDays: getEnvInt("RETENTION_DAYS", 30),
		},
		DefaultLanguage: getEnvString("DEFAULT_LANGUAGE", "eng"),
		LogLevel:        getEnvString("LOG_LEVEL", "info"),
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Storage.DataRoot == "" {
		return fmt.Errorf("DATA_ROOT is required")
	}
	if c.Storage.AdminRoot == "" {
		return fmt.Errorf("ADMIN_ROOT is required")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.AlignWorker.MaxWorkers <= 0 {
		return fmt.Errorf("ALIGN_WORKERS must be positive")
	}
	if c.UploadWorker.MaxWorkers <= 0 {
		return fmt.Errorf("UPLOAD_WORKERS must be positive")
	}
	if c.AlignWorker.MinPoll > c.AlignWorker.MaxPoll {
		return fmt.Errorf("ALIGN_POLL_MIN must not exceed ALIGN_POLL_MAX")
	}
	if c.UploadWorker.MinPoll > c.UploadWorker.MaxPoll {
		return fmt.Errorf("UPLOAD_POLL_MIN must not exceed UPLOAD_POLL_MAX")
	}
	// A factor below 1 would shrink the poll interval toward zero.
	if c.AlignWorker.BackoffFactor < 1 {
		return fmt.Errorf("ALIGN_BACKOFF must be at least 1")
	}
	if c.UploadWorker.BackoffFactor < 1 {
		return fmt.Errorf("UPLOAD_BACKOFF must be at least 1")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value ("500ms", "2s") from environment
// variables with default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

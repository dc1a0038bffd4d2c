package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/data/tasks", cfg.Storage.DataRoot)
	assert.Equal(t, "eng", cfg.DefaultLanguage)
	assert.Equal(t, 2, cfg.AlignWorker.MaxWorkers)
	assert.Less(t, cfg.UploadWorker.MinPoll, time.Second,
		"upload worker polls at sub-second latency")
	assert.Less(t, cfg.UploadWorker.BackoffFactor, cfg.AlignWorker.BackoffFactor,
		"upload worker backs off more gently")
}

func TestNewFromEnv_EnvOverrides(t *testing.T) {
	t.Setenv("ALIGN_WORKERS", "8")
	t.Setenv("ALIGN_POLL_MIN", "5s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("ENGINE_MFA_PATH", "/opt/mfa/bin/mfa_align")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.AlignWorker.MaxWorkers)
	assert.Equal(t, 5*time.Second, cfg.AlignWorker.MinPoll)
	assert.Equal(t, int64(1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "/opt/mfa/bin/mfa_align", cfg.Engines.BinPath("mfa"))
}

func TestNewFromEnv_InvalidPollWindow(t *testing.T) {
	t.Setenv("ALIGN_POLL_MIN", "2m")
	t.Setenv("ALIGN_POLL_MAX", "1s")

	_, err := NewFromEnv()
	assert.Error(t, err)
}

func TestNewFromEnv_BackoffBelowOneRejected(t *testing.T) {
	t.Setenv("ALIGN_BACKOFF", "0.5")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALIGN_BACKOFF")

	t.Setenv("ALIGN_BACKOFF", "2.0")
	t.Setenv("UPLOAD_BACKOFF", "0.9")

	_, err = NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPLOAD_BACKOFF")
}

func TestNewFromEnv_Options(t *testing.T) {
	cfg, err := NewFromEnv(func(c *Config) {
		c.DefaultLanguage = "nob"
	})
	require.NoError(t, err)
	assert.Equal(t, "nob", cfg.DefaultLanguage)
}

func TestEngineConfig_BinPathFallback(t *testing.T) {
	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "custom-engine", cfg.Engines.BinPath("custom-engine"))
}

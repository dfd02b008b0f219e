package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:5678/webhook/javispro212", cfg.Webhook.URL)
	assert.Equal(t, 30*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Webhook.RetryDelay)
	assert.Equal(t, "en-US", cfg.Speech.Locale)
	assert.Equal(t, "David", cfg.Speech.Voice)
	assert.Equal(t, 1500*time.Millisecond, cfg.Speech.AutoListenDelay)
	assert.Empty(t, cfg.Speech.RecognizerURL)
	assert.Empty(t, cfg.User.ID)
	assert.NotEmpty(t, cfg.Data.Dir)
}

func TestLoad_WritesDefaultConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Webhook.URL, cfg.Webhook.URL)

	configDir, err := GetConfigDir()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(configDir, "config.yaml"))
	assert.NoError(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("JARVIS_WEBHOOK_URL", "http://example.test/hook")
	t.Setenv("JARVIS_WEBHOOK_TIMEOUT", "12s")
	t.Setenv("JARVIS_SPEECH_LOCALE", "en-GB")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://example.test/hook", cfg.Webhook.URL)
	assert.Equal(t, 12*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, "en-GB", cfg.Speech.Locale)
	// Untouched keys keep their defaults.
	assert.Equal(t, "David", cfg.Speech.Voice)
}

func TestGetConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".jarvis"), dir)
}

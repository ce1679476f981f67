package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Generation.MaxAttempts)
	assert.Equal(t, 3, cfg.Generation.Examples)
	assert.True(t, cfg.Generation.EnableAB)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Len(t, cfg.Rules.Tiers, 5)
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
ai:
  provider: openai
  model: gpt-4o-mini
  timeout: 10s
generation:
  max_attempts: 2
  enable_ab: false
rules:
  tiers:
    - tier: Basic
      min_devices: 1
      max_devices: 1
    - tier: Ultra
      min_devices: 1
      max_devices: 8
  video_qualities: [HD, UHD]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("PLANDRAFT_API_KEY", "sk-test")
	t.Setenv("PLANDRAFT_MAX_ATTEMPTS", "4")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 4, cfg.Generation.MaxAttempts)
	assert.False(t, cfg.Generation.EnableAB)
	assert.Equal(t, 3, cfg.Generation.Examples)
	assert.Equal(t, []string{"Basic", "Ultra"}, cfg.Rules.TierNames())
}

func TestLoadConfig_GitHubToken(t *testing.T) {
	t.Setenv("PLANDRAFT_AI_PROVIDER", "github")
	t.Setenv("PLANDRAFT_API_KEY", "")
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ghp_test", cfg.AI.APIKey)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	t.Setenv("PLANDRAFT_MAX_ATTEMPTS", "9")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "max_attempts")

	t.Setenv("PLANDRAFT_MAX_ATTEMPTS", "three")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

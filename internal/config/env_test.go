package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestGetDefaults(t *testing.T) {
	ResetEnv()
	t.Cleanup(ResetEnv)
	setEnv(t, "POSTPILOT_MODEL", "")
	setEnv(t, "MAX_TOOL_STEPS", "")
	setEnv(t, "POSTPILOT_MOCK", "")
	setEnv(t, "POSTPILOT_DATA_DIR", t.TempDir())

	e := Get()
	assert.Equal(t, "claude-sonnet-4-20250514", e.Model)
	assert.Equal(t, 3, e.MaxToolSteps)
	assert.False(t, e.MockMode)
}

func TestGetOverrides(t *testing.T) {
	ResetEnv()
	t.Cleanup(ResetEnv)
	setEnv(t, "POSTPILOT_MODEL", "claude-3-5-haiku-20241022")
	setEnv(t, "MAX_TOOL_STEPS", "5")
	setEnv(t, "POSTPILOT_MOCK", "1")
	setEnv(t, "POSTPILOT_DATA_DIR", t.TempDir())

	e := Get()
	assert.Equal(t, "claude-3-5-haiku-20241022", e.Model)
	assert.Equal(t, 5, e.MaxToolSteps)
	assert.True(t, e.MockMode)
}

func TestGetCachesOnce(t *testing.T) {
	ResetEnv()
	t.Cleanup(ResetEnv)
	setEnv(t, "POSTPILOT_DATA_DIR", t.TempDir())

	first := Get()
	second := Get()
	assert.Same(t, first, second)
}

func TestFileOverrides(t *testing.T) {
	ResetEnv()
	t.Cleanup(ResetEnv)

	dir := t.TempDir()
	setEnv(t, "POSTPILOT_DATA_DIR", dir)
	setEnv(t, "POSTPILOT_MODEL", "")
	setEnv(t, "MAX_TOOL_STEPS", "")

	cfg := "model: claude-3-5-sonnet-20241022\nmax_tool_steps: 7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0644))

	e := Get()
	assert.Equal(t, "claude-3-5-sonnet-20241022", e.Model)
	assert.Equal(t, 7, e.MaxToolSteps)
}

func TestFileOverridesLoseToEnv(t *testing.T) {
	ResetEnv()
	t.Cleanup(ResetEnv)

	dir := t.TempDir()
	setEnv(t, "POSTPILOT_DATA_DIR", dir)
	setEnv(t, "POSTPILOT_MODEL", "claude-3-5-haiku-20241022")

	cfg := "model: claude-3-5-sonnet-20241022\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0644))

	e := Get()
	assert.Equal(t, "claude-3-5-haiku-20241022", e.Model)
}

// Package config provides centralized configuration management.
// All environment lookups for the orchestration core live here.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Env holds all PostPilot environment variables.
type Env struct {
	// AnthropicKey is the model service credential (ANTHROPIC_API_KEY).
	AnthropicKey string

	// AnthropicBaseURL overrides the model service base URL (ANTHROPIC_BASE_URL).
	AnthropicBaseURL string

	// Model is the default model ID (POSTPILOT_MODEL).
	Model string

	// MaxToolSteps bounds the tool-use loop (MAX_TOOL_STEPS).
	MaxToolSteps int

	// MockMode disables model calls and produces deterministic
	// placeholders instead (POSTPILOT_MOCK=1).
	MockMode bool

	// DataDir is where the SQLite store and queue live (POSTPILOT_DATA_DIR).
	DataDir string

	// ProjectRoot is the subtree generation agents may write into
	// (POSTPILOT_PROJECT_ROOT, defaults to the working directory).
	ProjectRoot string

	// WorkerID identifies this worker process (POSTPILOT_WORKER_ID).
	WorkerID string
}

var (
	env     *Env
	envOnce sync.Once
)

// Get returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Get() *Env {
	envOnce.Do(func() {
		env = &Env{
			AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
			Model:            getEnvDefault("POSTPILOT_MODEL", "claude-sonnet-4-20250514"),
			MaxToolSteps:     getEnvInt("MAX_TOOL_STEPS", 3),
			MockMode:         os.Getenv("POSTPILOT_MOCK") == "1",
			DataDir:          getEnvDefault("POSTPILOT_DATA_DIR", defaultDataDir()),
			ProjectRoot:      getEnvDefault("POSTPILOT_PROJECT_ROOT", "."),
			WorkerID:         os.Getenv("POSTPILOT_WORKER_ID"),
		}
		applyFileOverrides(env)
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".postpilot")
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

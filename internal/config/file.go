package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the optional config file at <data dir>/config.yaml.
// Environment variables win over file values.
type FileConfig struct {
	Model        string `yaml:"model"`
	MaxToolSteps int    `yaml:"max_tool_steps"`
	ProjectRoot  string `yaml:"project_root"`
}

// applyFileOverrides fills unset fields from the config file, if present.
// A missing or malformed file is ignored; config must never block startup.
func applyFileOverrides(e *Env) {
	path := filepath.Join(e.DataDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return
	}

	if os.Getenv("POSTPILOT_MODEL") == "" && fc.Model != "" {
		e.Model = fc.Model
	}
	if os.Getenv("MAX_TOOL_STEPS") == "" && fc.MaxToolSteps > 0 {
		e.MaxToolSteps = fc.MaxToolSteps
	}
	if os.Getenv("POSTPILOT_PROJECT_ROOT") == "" && fc.ProjectRoot != "" {
		e.ProjectRoot = fc.ProjectRoot
	}
}

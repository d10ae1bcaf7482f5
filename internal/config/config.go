// internal/config/config.go
//
// This package handles configuration and the .gauntlet directory structure.
// Every project verified with Gauntlet gets a .gauntlet/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// GauntletDir is the name of the directory we create in each project.
	GauntletDir = ".gauntlet"

	defaultPipelineFile = "pipeline.yaml"
	defaultChannel      = "stable"
)

const defaultProjectConfigYAML = `# gauntlet project configuration
version: 1

# Source to verify. Use a git URL, or a local path for same-machine checkouts.
source:
  repository: ""
  # path: ../my-crate

# Toolchain defaults applied to every stage.
toolchain:
  channel: stable

# Pipeline definition. Relative paths resolve against .gauntlet/.
pipeline: pipeline.yaml

# Trigger server (gauntlet-serve).
trigger:
  enabled: true
  host: 127.0.0.1
  port: 8712
`

// SourceConfig declares where the verified project's source lives.
type SourceConfig struct {
	Repository string `yaml:"repository,omitempty"`
	Path       string `yaml:"path,omitempty"`
}

// ToolchainConfig captures project-wide toolchain defaults.
type ToolchainConfig struct {
	Channel string `yaml:"channel"`
}

// TriggerConfig holds the trigger server preferences from config.yaml.
type TriggerConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// ProjectConfig models .gauntlet/config.yaml.
type ProjectConfig struct {
	Version   int             `yaml:"version"`
	Source    SourceConfig    `yaml:"source"`
	Toolchain ToolchainConfig `yaml:"toolchain"`
	Pipeline  string          `yaml:"pipeline"`
	Trigger   TriggerConfig   `yaml:"trigger"`
}

// Config holds the runtime configuration for Gauntlet.
type Config struct {
	// ProjectDir is the directory where the user ran `gauntlet` from.
	ProjectDir string

	// GauntletProjectDir is ProjectDir/.gauntlet.
	GauntletProjectDir string

	Project ProjectConfig
}

// InitGauntletDir creates the .gauntlet directory structure in the given
// project directory. Called on startup by both binaries.
//
// Structure created:
// .gauntlet/
// ├── logs/        <- runner log plus per-run stage output
// ├── runs/        <- persisted run state snapshots
// ├── workspaces/  <- disposable per-stage checkouts
// └── stages/      <- plugin stage definitions (*.yaml, *.go)
func InitGauntletDir(projectDir string) error {
	gauntletDir := filepath.Join(projectDir, GauntletDir)

	dirs := []string{
		filepath.Join(gauntletDir, "logs"),
		filepath.Join(gauntletDir, "runs"),
		filepath.Join(gauntletDir, "workspaces"),
		filepath.Join(gauntletDir, "stages"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(gauntletDir, "config.yaml"))
}

// NewConfig creates a Config populated from .gauntlet/config.yaml.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:         projectDir,
		GauntletProjectDir: filepath.Join(projectDir, GauntletDir),
		Project:            defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.GauntletProjectDir, "logs")
}

// RunsDir returns the path to the persisted run state directory.
func (c *Config) RunsDir() string {
	return filepath.Join(c.GauntletProjectDir, "runs")
}

// WorkspacesDir returns the root under which per-stage checkouts are created.
func (c *Config) WorkspacesDir() string {
	return filepath.Join(c.GauntletProjectDir, "workspaces")
}

// StagesDir returns the plugin stage definition directory.
func (c *Config) StagesDir() string {
	return filepath.Join(c.GauntletProjectDir, "stages")
}

// PipelinePath resolves the pipeline definition file. Relative values resolve
// against the .gauntlet directory.
func (c *Config) PipelinePath() string {
	p := strings.TrimSpace(c.Project.Pipeline)
	if p == "" {
		p = defaultPipelineFile
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.GauntletProjectDir, p)
}

// ToolchainChannel returns the configured toolchain channel, defaulting to stable.
func (c *Config) ToolchainChannel() string {
	channel := strings.TrimSpace(c.Project.Toolchain.Channel)
	if channel == "" {
		return defaultChannel
	}
	return channel
}

// Source returns the configured source location. Environment overrides
// (GAUNTLET_REPOSITORY, GAUNTLET_SOURCE_PATH) win over config.yaml so operators
// can point a daemon at a different repository without editing the project.
func (c *Config) Source() SourceConfig {
	src := c.Project.Source
	if repo := strings.TrimSpace(os.Getenv("GAUNTLET_REPOSITORY")); repo != "" {
		src.Repository = repo
	}
	if path := strings.TrimSpace(os.Getenv("GAUNTLET_SOURCE_PATH")); path != "" {
		src.Path = path
	}
	return src
}

func (c *Config) loadProjectConfig() error {
	path := filepath.Join(c.GauntletProjectDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var loaded ProjectConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Project = mergeProjectConfig(c.Project, loaded)
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:   1,
		Toolchain: ToolchainConfig{Channel: defaultChannel},
		Pipeline:  defaultPipelineFile,
	}
}

func mergeProjectConfig(base, loaded ProjectConfig) ProjectConfig {
	if loaded.Version != 0 {
		base.Version = loaded.Version
	}
	if strings.TrimSpace(loaded.Source.Repository) != "" {
		base.Source.Repository = strings.TrimSpace(loaded.Source.Repository)
	}
	if strings.TrimSpace(loaded.Source.Path) != "" {
		base.Source.Path = strings.TrimSpace(loaded.Source.Path)
	}
	if strings.TrimSpace(loaded.Toolchain.Channel) != "" {
		base.Toolchain.Channel = strings.TrimSpace(loaded.Toolchain.Channel)
	}
	if strings.TrimSpace(loaded.Pipeline) != "" {
		base.Pipeline = strings.TrimSpace(loaded.Pipeline)
	}
	base.Trigger = loaded.Trigger
	return base
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default %s: %w", path, err)
	}
	return nil
}

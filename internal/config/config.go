// Package config loads the orchestrator's on-disk configuration
// (.orchestrator/config.yaml) into a mapstructure-tagged nested struct,
// with a DefaultConfig()/applyDefaults() fallback shape.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the root orchestrator configuration.
type Config struct {
	Project     ProjectConfig     `mapstructure:"project"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Claude      ClaudeConfig      `mapstructure:"claude"`
	Mistral     MistralConfig     `mapstructure:"mistral"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Phases      PhasesConfig      `mapstructure:"phases"`
	Tools       ToolsConfig       `mapstructure:"tools"`
}

// ProjectConfig names the shell commands the builtin run_build/run_tests/
// run_verification tools execute against the target project.
type ProjectConfig struct {
	BuildCmd  string `mapstructure:"build_cmd"`
	TestCmd   string `mapstructure:"test_cmd"`
	VerifyCmd string `mapstructure:"verify_cmd"`
}

// LLMConfig contains LLM backend settings.
type LLMConfig struct {
	Backend string `mapstructure:"backend"`
	Model   string `mapstructure:"model"`
	Host    string `mapstructure:"host"`
}

// ClaudeConfig contains Claude-specific settings.
type ClaudeConfig struct {
	Binary       string   `mapstructure:"binary"`
	AllowedTools []string `mapstructure:"allowed_tools"`
}

// MistralConfig contains Mistral-specific settings.
type MistralConfig struct {
	Binary string `mapstructure:"binary"`
	APIKey string `mapstructure:"api_key"`
}

// CoordinatorConfig bounds the outer phase-selection loop. `run` applies
// MaxIterations and PolytopePath; HygieneInterval is loaded and
// defaulted but not passed on, and the coordinator uses its own fixed
// hygiene interval of 20 iterations.
type CoordinatorConfig struct {
	MaxIterations   int    `mapstructure:"max_iterations"`
	PolytopePath    string `mapstructure:"polytope_path"`
	HygieneInterval int    `mapstructure:"hygiene_interval"`
}

// PhasesConfig bounds each individual phase run.
type PhasesConfig struct {
	IterationBudget int           `mapstructure:"iteration_budget"`
	TokenBudget     int           `mapstructure:"token_budget"`
	WallClockBudget time.Duration `mapstructure:"wall_clock_budget"`
}

// ToolsConfig configures custom tool discovery. `run` discovers custom
// tools under DiscoveryDir (a relative path resolves against the
// .orchestrator directory). DefaultTimeout and Timeouts are loaded and
// defaulted but not applied: every tool runs under tool.DefaultTimeout
// unless its own custom definition sets a timeout.
type ToolsConfig struct {
	DiscoveryDir   string                   `mapstructure:"discovery_dir"`
	DefaultTimeout time.Duration            `mapstructure:"default_timeout"`
	Timeouts       map[string]time.Duration `mapstructure:"timeouts"`
}

// Load reads the config from the workspace's .orchestrator directory,
// falling back to DefaultConfig() if no config.yaml exists yet.
func Load(workspaceDir string) (*Config, error) {
	configPath := filepath.Join(workspaceDir, ".orchestrator", "config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			BuildCmd:  "go build ./...",
			TestCmd:   "go test ./...",
			VerifyCmd: "go vet ./...",
		},
		LLM: LLMConfig{
			Backend: "claude",
			Model:   "sonnet",
			Host:    "http://localhost:8080",
		},
		Claude: ClaudeConfig{
			Binary: "claude",
			AllowedTools: []string{
				"Read", "Write", "Edit", "Bash", "Glob", "Grep",
			},
		},
		Mistral: MistralConfig{
			Binary: "vibe",
			APIKey: "",
		},
		Coordinator: CoordinatorConfig{
			MaxIterations:   200,
			PolytopePath:    "polytope.toml",
			HygieneInterval: 20,
		},
		Phases: PhasesConfig{
			IterationBudget: 20,
			TokenBudget:     8000,
			WallClockBudget: 15 * time.Minute,
		},
		Tools: ToolsConfig{
			DiscoveryDir:   "tools",
			DefaultTimeout: 2 * time.Minute,
			Timeouts:       make(map[string]time.Duration),
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Project.BuildCmd == "" {
		cfg.Project.BuildCmd = defaults.Project.BuildCmd
	}
	if cfg.Project.TestCmd == "" {
		cfg.Project.TestCmd = defaults.Project.TestCmd
	}
	if cfg.Project.VerifyCmd == "" {
		cfg.Project.VerifyCmd = defaults.Project.VerifyCmd
	}
	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = defaults.LLM.Backend
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaults.LLM.Model
	}
	if cfg.LLM.Host == "" {
		cfg.LLM.Host = defaults.LLM.Host
	}
	if cfg.Claude.Binary == "" {
		cfg.Claude.Binary = defaults.Claude.Binary
	}
	if len(cfg.Claude.AllowedTools) == 0 {
		cfg.Claude.AllowedTools = defaults.Claude.AllowedTools
	}
	if cfg.Mistral.Binary == "" {
		cfg.Mistral.Binary = defaults.Mistral.Binary
	}
	if cfg.Coordinator.MaxIterations == 0 {
		cfg.Coordinator.MaxIterations = defaults.Coordinator.MaxIterations
	}
	if cfg.Coordinator.PolytopePath == "" {
		cfg.Coordinator.PolytopePath = defaults.Coordinator.PolytopePath
	}
	if cfg.Coordinator.HygieneInterval == 0 {
		cfg.Coordinator.HygieneInterval = defaults.Coordinator.HygieneInterval
	}
	if cfg.Phases.IterationBudget == 0 {
		cfg.Phases.IterationBudget = defaults.Phases.IterationBudget
	}
	if cfg.Phases.TokenBudget == 0 {
		cfg.Phases.TokenBudget = defaults.Phases.TokenBudget
	}
	if cfg.Phases.WallClockBudget == 0 {
		cfg.Phases.WallClockBudget = defaults.Phases.WallClockBudget
	}
	if cfg.Tools.DiscoveryDir == "" {
		cfg.Tools.DiscoveryDir = defaults.Tools.DiscoveryDir
	}
	if cfg.Tools.DefaultTimeout == 0 {
		cfg.Tools.DefaultTimeout = defaults.Tools.DefaultTimeout
	}
	if cfg.Tools.Timeouts == nil {
		cfg.Tools.Timeouts = make(map[string]time.Duration)
	}
}

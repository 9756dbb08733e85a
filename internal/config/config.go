// Package config handles configuration loading for queryflow.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestration core.
type Config struct {
	Decomposer  DecomposerConfig  `mapstructure:"decomposer"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Adapter     AdapterConfig     `mapstructure:"adapter"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Memory      MemoryConfig      `mapstructure:"memory"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DecomposerConfig bounds task decomposition.
type DecomposerConfig struct {
	// MaxSubtasks caps the number of nodes per DAG; excess sub-tasks are
	// merged into the last node rather than dropped.
	MaxSubtasks int `mapstructure:"max_subtasks"`
}

// CoordinatorConfig controls DAG execution.
type CoordinatorConfig struct {
	// MaxConcurrency caps the number of nodes executing at once.
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// AdapterConfig controls per-call tool invocation policy.
type AdapterConfig struct {
	// Timeout is the per-call deadline for one tool invocation.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the number of retries after the initial attempt,
	// applied to transient and rate-limited errors only.
	MaxRetries int `mapstructure:"max_retries"`
	// BackoffBase is the first retry delay; subsequent delays double.
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}

// BreakerConfig controls the per-tool circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int `mapstructure:"failure_threshold"`
	// Cooldown is how long an open circuit rejects calls before one trial
	// call is allowed.
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// MemoryConfig controls the memory manager.
type MemoryConfig struct {
	// Retention is the maximum number of turns kept per session.
	Retention int `mapstructure:"retention"`
	// IdleTTL is how long a session may sit without a turn before it is
	// eligible for fast-store eviction.
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
	// ContextTurns is how many recent turns are handed to the decomposer.
	ContextTurns int `mapstructure:"context_turns"`
	// Path is the SQLite file for durable history. Empty means the
	// default XDG data location.
	Path string `mapstructure:"path"`
}

// RegistryConfig locates the tool catalog.
type RegistryConfig struct {
	// Catalog is the path to the YAML tool catalog. Empty means the
	// built-in defaults.
	Catalog string `mapstructure:"catalog"`
	// Watch enables fsnotify hot-reload of the catalog file.
	Watch bool `mapstructure:"watch"`
}

// LoggingConfig controls the debug log.
type LoggingConfig struct {
	// DebugLog is the path of the debug log file. Empty disables it.
	DebugLog string `mapstructure:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
//  1. Environment variables (QUERYFLOW_*)
//  2. Project config (.queryflow.yaml in current directory or parent)
//  3. User config (~/.config/queryflow/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("QUERYFLOW")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// setDefaults configures default values for every knob.
func setDefaults(v *viper.Viper) {
	v.SetDefault("decomposer.max_subtasks", 8)

	v.SetDefault("coordinator.max_concurrency", 5)

	v.SetDefault("adapter.timeout", "30s")
	v.SetDefault("adapter.max_retries", 2)
	v.SetDefault("adapter.backoff_base", "500ms")

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", "60s")

	v.SetDefault("memory.retention", 50)
	v.SetDefault("memory.idle_ttl", "30m")
	v.SetDefault("memory.context_turns", 5)
	v.SetDefault("memory.path", "")

	v.SetDefault("registry.catalog", "")
	v.SetDefault("registry.watch", false)

	v.SetDefault("logging.debug_log", "")
}

// Default returns a Config with built-in default values.
func Default() *Config {
	return &Config{
		Decomposer:  DecomposerConfig{MaxSubtasks: 8},
		Coordinator: CoordinatorConfig{MaxConcurrency: 5},
		Adapter: AdapterConfig{
			Timeout:     30 * time.Second,
			MaxRetries:  2,
			BackoffBase: 500 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         60 * time.Second,
		},
		Memory: MemoryConfig{
			Retention:    50,
			IdleTTL:      30 * time.Minute,
			ContextTurns: 5,
		},
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// DataDir returns the XDG data directory for queryflow state.
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "queryflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".queryflow")
	}
	return filepath.Join(home, ".local", "share", "queryflow")
}

// getUserConfigDir returns the XDG config directory for queryflow.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "queryflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "queryflow")
	}
	return filepath.Join(home, ".config", "queryflow")
}

// findProjectConfig searches for .queryflow.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".queryflow.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Package config defines the parley configuration surface: file-based
// settings loaded through viper, overridable by PARLEY_* environment
// variables and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/parleyhq/parley/internal/consensus"
)

// Config represents the complete parley configuration
type Config struct {
	Debate     DebateConfig     `mapstructure:"debate"`
	Consensus  ConsensusConfig  `mapstructure:"consensus"`
	Complexity ComplexityConfig `mapstructure:"complexity"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Paths      PathsConfig      `mapstructure:"paths"`
}

// DebateConfig controls debate behavior
type DebateConfig struct {
	// TargetConsensus is the score a debate aims for (default: 75)
	TargetConsensus int `mapstructure:"target_consensus"`
	// MaxRounds bounds debate rounds per session
	MaxRounds int `mapstructure:"max_rounds"`
	// ProviderTimeoutSeconds bounds a single provider invocation
	ProviderTimeoutSeconds int `mapstructure:"provider_timeout_seconds"`
}

// ProviderTimeout returns the provider timeout as a time.Duration
func (d *DebateConfig) ProviderTimeout() time.Duration {
	return time.Duration(d.ProviderTimeoutSeconds) * time.Second
}

// ConsensusConfig controls how perspectives merge into a score
type ConsensusConfig struct {
	// Weights are the pairwise comparison weights; they must sum to 1.0
	Weights consensus.Weights `mapstructure:"weights"`
}

// ComplexityConfig controls the debate-required gate
type ComplexityConfig struct {
	// Threshold is the complexity score at or above which a debate is
	// recommended (default: 40)
	Threshold int `mapstructure:"threshold"`
	// SimilarityFloor is the minimum similarity for a history record to
	// count in risk prediction (default: 0.3)
	SimilarityFloor float64 `mapstructure:"similarity_floor"`
}

// CacheConfig controls the debate result cache
type CacheConfig struct {
	// Enabled turns result caching on (default: true)
	Enabled bool `mapstructure:"enabled"`
	// TTLMinutes is how long a cached result stays eligible (default: 5)
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// TTL returns the cache TTL as a time.Duration
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ProvidersConfig describes the reasoning backends
type ProvidersConfig struct {
	CLI    CLIProviderConfig    `mapstructure:"cli"`
	Bridge BridgeProviderConfig `mapstructure:"bridge"`
}

// CLIProviderConfig describes a subprocess reasoning CLI
type CLIProviderConfig struct {
	// Name identifies the provider in output and logs (default: "codex")
	Name string `mapstructure:"name"`
	// Command is the binary to execute; availability is a PATH lookup
	Command string `mapstructure:"command"`
	// Args precede the prompt, which arrives on stdin
	Args []string `mapstructure:"args"`
	// TimeoutSeconds bounds one invocation (default: 120)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the CLI timeout as a time.Duration
func (c *CLIProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BridgeProviderConfig describes a local HTTP reasoning bridge
type BridgeProviderConfig struct {
	// Name identifies the provider in output and logs (default: "bridge")
	Name string `mapstructure:"name"`
	// Endpoint is the bridge base URL (default: http://127.0.0.1:8765)
	Endpoint string `mapstructure:"endpoint"`
	// Model optionally pins the bridge to a specific model
	Model string `mapstructure:"model"`
	// TimeoutSeconds bounds one invocation (default: 90)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the bridge timeout as a time.Duration
func (b *BridgeProviderConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Enabled turns file logging on; logs go to stderr when disabled
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// File is the log file path; empty means <data_dir>/parley.log
	File string `mapstructure:"file"`
	// MaxSizeMB rotates the log when it exceeds this size
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is how many rotated files to keep
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls where parley keeps its state
type PathsConfig struct {
	// DataDir holds sessions, cache, and history; empty means the
	// XDG data directory
	DataDir string `mapstructure:"data_dir"`
}

// ResolveDataDir returns the effective data directory, expanding ~ and
// falling back to the XDG data directory.
func (p *PathsConfig) ResolveDataDir() string {
	path := p.DataDir
	if path == "" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "parley")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return ".parley"
		}
		return filepath.Join(home, ".local", "share", "parley")
	}

	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	} else if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Debate: DebateConfig{
			TargetConsensus:        75,
			MaxRounds:              5,
			ProviderTimeoutSeconds: 120,
		},
		Consensus: ConsensusConfig{
			Weights: consensus.DefaultWeights(),
		},
		Complexity: ComplexityConfig{
			Threshold:       40,
			SimilarityFloor: 0.3,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLMinutes: 5,
		},
		Providers: ProvidersConfig{
			CLI: CLIProviderConfig{
				Name:           "codex",
				Command:        "codex",
				Args:           []string{"exec"},
				TimeoutSeconds: 120,
			},
			Bridge: BridgeProviderConfig{
				Name:           "bridge",
				Endpoint:       "http://127.0.0.1:8765",
				Model:          "",
				TimeoutSeconds: 90,
			},
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			DataDir: "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("debate.target_consensus", defaults.Debate.TargetConsensus)
	viper.SetDefault("debate.max_rounds", defaults.Debate.MaxRounds)
	viper.SetDefault("debate.provider_timeout_seconds", defaults.Debate.ProviderTimeoutSeconds)

	viper.SetDefault("consensus.weights.stance", defaults.Consensus.Weights.Stance)
	viper.SetDefault("consensus.weights.concerns", defaults.Consensus.Weights.Concerns)
	viper.SetDefault("consensus.weights.risk_flags", defaults.Consensus.Weights.RiskFlags)
	viper.SetDefault("consensus.weights.confidence", defaults.Consensus.Weights.Confidence)

	viper.SetDefault("complexity.threshold", defaults.Complexity.Threshold)
	viper.SetDefault("complexity.similarity_floor", defaults.Complexity.SimilarityFloor)

	viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("cache.ttl_minutes", defaults.Cache.TTLMinutes)

	viper.SetDefault("providers.cli.name", defaults.Providers.CLI.Name)
	viper.SetDefault("providers.cli.command", defaults.Providers.CLI.Command)
	viper.SetDefault("providers.cli.args", defaults.Providers.CLI.Args)
	viper.SetDefault("providers.cli.timeout_seconds", defaults.Providers.CLI.TimeoutSeconds)
	viper.SetDefault("providers.bridge.name", defaults.Providers.Bridge.Name)
	viper.SetDefault("providers.bridge.endpoint", defaults.Providers.Bridge.Endpoint)
	viper.SetDefault("providers.bridge.model", defaults.Providers.Bridge.Model)
	viper.SetDefault("providers.bridge.timeout_seconds", defaults.Providers.Bridge.TimeoutSeconds)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "parley")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".parley"
	}
	return filepath.Join(home, ".config", "parley")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

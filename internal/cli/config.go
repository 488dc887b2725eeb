package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the runtime configuration for spanline.
// It can be populated from CLI flags, config files, or both.
type Config struct {
	// Comment field for user documentation (ignored by the application)
	Comment string `json:"comment,omitempty"`

	// Span buffer size (direct JSON mapping to CLI flags)
	TraceBufferSize int `json:"trace_buffer_size,omitempty"`

	// OTLP receiver configuration
	OTLPHost string `json:"otlp_host,omitempty"`
	OTLPPort int    `json:"otlp_port,omitempty"`

	// Web UI / HTTP API configuration
	HTTPHost string `json:"http_host,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`

	// File reader configuration: a directory of collector file-exporter
	// JSONL output to tail in addition to the gRPC receiver.
	FileDirectory  string `json:"file_directory,omitempty"`
	FileActiveOnly bool   `json:"file_active_only,omitempty"`

	// Logging configuration
	Verbose bool `json:"verbose,omitempty"`
}

// DefaultConfig returns a Config with sensible default values:
// - 10,000 span buffer
// - OTLP on localhost with an ephemeral port
// - web UI on localhost:4380
func DefaultConfig() *Config {
	return &Config{
		TraceBufferSize: 10_000,
		OTLPHost:        "127.0.0.1",
		OTLPPort:        0, // 0 means ephemeral port assignment
		HTTPHost:        "127.0.0.1",
		HTTPPort:        4380,
		FileActiveOnly:  true,
		Verbose:         false,
	}
}

// LoadConfigFromFile loads configuration from a JSON file at the given path.
// It returns an error if the file cannot be read or parsed.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &config, nil
}

// FindProjectConfig searches for a .spanline.json config file.
// It starts in the current directory and walks up looking for the file,
// stopping when it finds a .git directory (project root) or reaches root.
func FindProjectConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for {
		configPath := filepath.Join(dir, ".spanline.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Check if we're at a git repo root (stop here even if no config)
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

// GlobalConfigPath returns the path to the global config file.
// This is ~/.config/spanline/config.json
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "spanline", "config.json")
}

// MergeConfigs merges two configs with the overlay taking precedence.
// Fields in overlay override corresponding fields in base.
// Returns a new Config with the merged values.
func MergeConfigs(base, overlay *Config) *Config {
	if base == nil {
		base = &Config{}
	}
	if overlay == nil {
		return base
	}

	merged := *base

	if overlay.TraceBufferSize > 0 {
		merged.TraceBufferSize = overlay.TraceBufferSize
	}

	if overlay.OTLPHost != "" {
		merged.OTLPHost = overlay.OTLPHost
	}
	if overlay.OTLPPort != 0 {
		merged.OTLPPort = overlay.OTLPPort
	}

	if overlay.HTTPHost != "" {
		merged.HTTPHost = overlay.HTTPHost
	}
	if overlay.HTTPPort > 0 {
		merged.HTTPPort = overlay.HTTPPort
	}

	if overlay.FileDirectory != "" {
		merged.FileDirectory = overlay.FileDirectory
	}
	if overlay.FileActiveOnly {
		merged.FileActiveOnly = overlay.FileActiveOnly
	}

	if overlay.Verbose {
		merged.Verbose = overlay.Verbose
	}

	return &merged
}

// LoadEffectiveConfig loads the effective configuration by merging:
// 1. Built-in defaults
// 2. Global config file (if exists)
// 3. Project config file (if exists)
// 4. Explicit config file (if specified via configPath)
// Later sources override earlier ones.
func LoadEffectiveConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// Layer 2: Global config (optional, errors ignored)
	globalPath := GlobalConfigPath()
	if globalPath != "" {
		if globalCfg, err := LoadConfigFromFile(globalPath); err == nil {
			config = MergeConfigs(config, globalCfg)
		}
	}

	// Layer 3: Project config (if exists and no explicit path)
	if configPath == "" {
		if projectPath, err := FindProjectConfig(); err == nil {
			projectCfg, err := LoadConfigFromFile(projectPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load project config: %w", err)
			}
			config = MergeConfigs(config, projectCfg)
		}
	} else {
		explicitCfg, err := LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = MergeConfigs(config, explicitCfg)
	}

	return config, nil
}

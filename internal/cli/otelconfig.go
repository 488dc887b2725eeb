package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OtelCollectorConfig represents the relevant parts of an OpenTelemetry
// Collector config. Only the exporters section is parsed, to find file
// exporters whose output spanline can tail.
type OtelCollectorConfig struct {
	Exporters map[string]FileExporter `yaml:"exporters"`
}

// FileExporter represents a file exporter configuration.
type FileExporter struct {
	Path string `yaml:"path"`
}

// ParseOtelConfig reads an OpenTelemetry Collector config file and extracts
// directories from file exporter paths. It looks for exporters with names
// starting with "file/" and returns the parent directories of their paths.
func ParseOtelConfig(configPath string) ([]string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read otel config: %w", err)
	}
	return parseOtelConfigData(data)
}

// parseOtelConfigData extracts file-exporter directories from raw config
// YAML.
func parseOtelConfigData(data []byte) ([]string, error) {
	var config OtelCollectorConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse otel config: %w", err)
	}

	dirSet := make(map[string]struct{})
	for name, exporter := range config.Exporters {
		if strings.HasPrefix(name, "file/") && exporter.Path != "" {
			dir := filepath.Dir(exporter.Path)
			dirSet[dir] = struct{}{}
		}
	}

	dirs := make([]string, 0, len(dirSet))
	for dir := range dirSet {
		dirs = append(dirs, dir)
	}

	return dirs, nil
}

// FindCollectorConfig looks for an OpenTelemetry Collector config file in
// the usual places: the working directory and /etc/otelcol. Returns the
// first path that exists, or an empty string.
func FindCollectorConfig() string {
	candidates := []string{
		"otel-collector.yaml",
		"otel-collector.yml",
		"otelcol.yaml",
		filepath.Join("/etc", "otelcol", "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

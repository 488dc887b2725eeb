package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
)

// DoctorCommand returns the CLI command definition for the 'doctor'
// subcommand. This command runs diagnostic checks to verify spanline is
// properly set up.
func DoctorCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Diagnose common setup and configuration issues",
		Description: `Run checks to verify spanline is properly configured.

This command checks:
  - Binary location and permissions
  - spanline config files (project and global)
  - Collector config discovery for file-exporter directories
  - Optional dependencies (otel-cli)

Exit codes:
  0 - All critical checks passed
  1 - One or more issues found`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runDoctor(version)
		},
	}
}

type checkResult struct {
	Name       string
	Status     string // "pass", "warn", "fail"
	Message    string
	Suggestion string
	IsCritical bool
}

type fsUtils interface {
	Executable() (string, error)
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	UserHomeDir() (string, error)
	Getwd() (string, error)
	LookPath(file string) (string, error)
}

type realFsUtils struct{}

func (r *realFsUtils) Executable() (string, error)           { return os.Executable() }
func (r *realFsUtils) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (r *realFsUtils) ReadFile(name string) ([]byte, error)  { return os.ReadFile(name) }
func (r *realFsUtils) UserHomeDir() (string, error)          { return os.UserHomeDir() }
func (r *realFsUtils) Getwd() (string, error)                { return os.Getwd() }
func (r *realFsUtils) LookPath(file string) (string, error)  { return exec.LookPath(file) }

func runDoctor(version string) error {
	return runDoctorWithUtils(version, &realFsUtils{})
}

func runDoctorWithUtils(version string, utils fsUtils) error {
	fmt.Printf("🔍 spanline doctor v%s\n\n", version)

	checks := []func(utils fsUtils) checkResult{
		checkBinaryLocation,
		checkBinaryExecutable,
		checkSpanlineConfig,
		checkCollectorConfig,
		checkOtelCLI,
	}

	results := make([]checkResult, 0, len(checks))
	for _, check := range checks {
		result := check(utils)
		results = append(results, result)
		printCheckResult(result)
	}

	fmt.Println()
	summary := summarizeResults(results)
	printSummary(summary)

	if summary.FailCount > 0 {
		return fmt.Errorf("found %d issues that need attention", summary.FailCount)
	}

	return nil
}

func printCheckResult(result checkResult) {
	var icon string
	switch result.Status {
	case "pass":
		icon = "✓"
	case "warn":
		icon = "⚠"
	case "fail":
		icon = "✗"
	}

	fmt.Printf("%s %s\n", icon, result.Message)

	if result.Suggestion != "" {
		fmt.Printf("  %s\n", result.Suggestion)
	}
}

type resultSummary struct {
	PassCount int
	WarnCount int
	FailCount int
}

func summarizeResults(results []checkResult) resultSummary {
	var summary resultSummary
	for _, r := range results {
		switch r.Status {
		case "pass":
			summary.PassCount++
		case "warn":
			summary.WarnCount++
		case "fail":
			summary.FailCount++
		}
	}
	return summary
}

func printSummary(summary resultSummary) {
	if summary.FailCount > 0 {
		fmt.Printf("❌ Found %d issue(s) that need attention\n", summary.FailCount)
		if summary.WarnCount > 0 {
			fmt.Printf("⚠️  %d warning(s)\n", summary.WarnCount)
		}
	} else if summary.WarnCount > 0 {
		fmt.Printf("✅ All critical checks passed!\n")
		fmt.Printf("⚠️  %d optional warning(s)\n", summary.WarnCount)
		fmt.Printf("💡 Run 'spanline serve --verbose' to start the server\n")
	} else {
		fmt.Printf("✅ All checks passed!\n")
		fmt.Printf("💡 Run 'spanline serve --verbose' to start the server\n")
	}
}

// Check 1: Binary location
func checkBinaryLocation(utils fsUtils) checkResult {
	executable, err := utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_location",
			Status:     "fail",
			Message:    "Could not determine binary location",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	absPath, err := filepath.Abs(executable)
	if err != nil {
		absPath = executable
	}

	return checkResult{
		Name:       "binary_location",
		Status:     "pass",
		Message:    fmt.Sprintf("Binary location: %s", absPath),
		IsCritical: false,
	}
}

// Check 2: Binary executable
func checkBinaryExecutable(utils fsUtils) checkResult {
	executable, err := utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not check if binary is executable",
			IsCritical: true,
		}
	}

	info, err := utils.Stat(executable)
	if err != nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not stat binary",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	if info == nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Binary info is nil after stat",
			IsCritical: true,
		}
	}

	mode := info.Mode()
	if mode&0111 == 0 {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Binary is not executable",
			Suggestion: fmt.Sprintf("Run: chmod +x %s", executable),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:       "binary_executable",
		Status:     "pass",
		Message:    "Binary is executable",
		IsCritical: false,
	}
}

// Check 3: spanline config files
func checkSpanlineConfig(utils fsUtils) checkResult {
	configPath := findSpanlineConfig(utils)
	if configPath == "" {
		return checkResult{
			Name:    "spanline_config",
			Status:  "warn",
			Message: "No spanline config found (defaults will be used)",
			Suggestion: fmt.Sprintf(`Optional. Create .spanline.json in your project or %s

  Example config:
  {
    "trace_buffer_size": 10000,
    "otlp_port": 4317,
    "http_port": 4380
  }`, globalConfigPathWith(utils)),
			IsCritical: false,
		}
	}

	data, err := utils.ReadFile(configPath)
	if err != nil {
		return checkResult{
			Name:       "spanline_config",
			Status:     "fail",
			Message:    "Could not read spanline config",
			Suggestion: fmt.Sprintf("Error reading %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return checkResult{
			Name:       "spanline_config",
			Status:     "fail",
			Message:    "spanline config is not valid JSON",
			Suggestion: fmt.Sprintf("Error parsing %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	if config.FileDirectory != "" {
		if _, err := utils.Stat(config.FileDirectory); err != nil {
			return checkResult{
				Name:       "spanline_config",
				Status:     "warn",
				Message:    fmt.Sprintf("Config found: %s", configPath),
				Suggestion: fmt.Sprintf("file_directory %s does not exist", config.FileDirectory),
				IsCritical: false,
			}
		}
	}

	return checkResult{
		Name:       "spanline_config",
		Status:     "pass",
		Message:    fmt.Sprintf("Config found: %s", configPath),
		IsCritical: false,
	}
}

// Check 4: collector config discovery
func checkCollectorConfig(utils fsUtils) checkResult {
	path := findCollectorConfigWith(utils)
	if path == "" {
		return checkResult{
			Name:       "collector_config",
			Status:     "warn",
			Message:    "Optional: no OpenTelemetry Collector config found",
			Suggestion: "Only needed when tailing file-exporter output with --file-dir",
			IsCritical: false,
		}
	}

	data, err := utils.ReadFile(path)
	if err != nil {
		return checkResult{
			Name:       "collector_config",
			Status:     "warn",
			Message:    fmt.Sprintf("Collector config found but unreadable: %s", path),
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: false,
		}
	}

	dirs, err := parseOtelConfigData(data)
	if err != nil {
		return checkResult{
			Name:       "collector_config",
			Status:     "warn",
			Message:    fmt.Sprintf("Collector config found: %s", path),
			Suggestion: fmt.Sprintf("Could not parse exporters: %v", err),
			IsCritical: false,
		}
	}

	if len(dirs) == 0 {
		return checkResult{
			Name:       "collector_config",
			Status:     "pass",
			Message:    fmt.Sprintf("Collector config found: %s (no file exporters)", path),
			IsCritical: false,
		}
	}

	return checkResult{
		Name:   "collector_config",
		Status: "pass",
		Message: fmt.Sprintf("Collector config found: %s (file exporter dirs: %s)",
			path, strings.Join(dirs, ", ")),
		Suggestion: fmt.Sprintf("Tail them with: spanline serve --file-dir %s", dirs[0]),
		IsCritical: false,
	}
}

// Check 5: otel-cli availability
func checkOtelCLI(utils fsUtils) checkResult {
	path, err := utils.LookPath("otel-cli")
	if err == nil {
		return checkResult{
			Name:    "otel_cli",
			Status:  "pass",
			Message: fmt.Sprintf("Optional: otel-cli found at %s", path),
		}
	}

	return checkResult{
		Name:    "otel_cli",
		Status:  "warn",
		Message: "Optional: otel-cli not found",
		Suggestion: `otel-cli is useful for sending test spans but not required.
  Install with: go install github.com/tobert/otel-cli@latest`,
		IsCritical: false,
	}
}

// findSpanlineConfig returns the first existing spanline config path:
// project config in the working directory, then the global config.
func findSpanlineConfig(utils fsUtils) string {
	if cwd, err := utils.Getwd(); err == nil {
		projectPath := filepath.Join(cwd, ".spanline.json")
		if _, err := utils.Stat(projectPath); err == nil {
			return projectPath
		}
	}

	globalPath := globalConfigPathWith(utils)
	if globalPath != "" {
		if _, err := utils.Stat(globalPath); err == nil {
			return globalPath
		}
	}

	return ""
}

func globalConfigPathWith(utils fsUtils) string {
	home, err := utils.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "spanline", "config.json")
}

// findCollectorConfigWith mirrors FindCollectorConfig using the fsUtils
// seam so it can be tested.
func findCollectorConfigWith(utils fsUtils) string {
	cwd, err := utils.Getwd()
	if err != nil {
		cwd = "."
	}

	candidates := []string{
		filepath.Join(cwd, "otel-collector.yaml"),
		filepath.Join(cwd, "otel-collector.yml"),
		filepath.Join(cwd, "otelcol.yaml"),
		filepath.Join("/etc", "otelcol", "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := utils.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockFsUtils struct {
	executable    string
	executableErr error
	statMap       map[string]os.FileInfo
	statErr       error
	readFileMap   map[string][]byte
	readFileErr   error
	homeDir       string
	homeDirErr    error
	cwd           string
	cwdErr        error
	lookPathMap   map[string]string
	lookPathErr   error
}

func (m *mockFsUtils) Executable() (string, error) { return m.executable, m.executableErr }
func (m *mockFsUtils) Stat(name string) (os.FileInfo, error) {
	if info, ok := m.statMap[name]; ok {
		return info, nil
	}
	return nil, m.statErr
}
func (m *mockFsUtils) ReadFile(name string) ([]byte, error) {
	if content, ok := m.readFileMap[name]; ok {
		return content, nil
	}
	return nil, m.readFileErr
}
func (m *mockFsUtils) UserHomeDir() (string, error) { return m.homeDir, m.homeDirErr }
func (m *mockFsUtils) Getwd() (string, error)       { return m.cwd, m.cwdErr }
func (m *mockFsUtils) LookPath(file string) (string, error) {
	if path, ok := m.lookPathMap[file]; ok {
		return path, nil
	}
	return "", m.lookPathErr
}

// captureDoctorOutput runs the doctor with stdout redirected and returns
// the printed text plus the returned error.
func captureDoctorOutput(t *testing.T, utils fsUtils) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = oldStdout }()

	var buf bytes.Buffer
	outC := make(chan string)
	go func() {
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	err := runDoctorWithUtils("test-version", utils)
	w.Close()
	return <-outC, err
}

func TestDoctorNoConfigs(t *testing.T) {
	// No configs anywhere, otel-cli missing. Everything optional is
	// missing, but nothing is critical, so the doctor passes with
	// warnings.
	utils := &mockFsUtils{
		executable: "/usr/local/bin/spanline",
		homeDir:    "/home/testuser",
		cwd:        "/home/testuser/project",
		statMap: map[string]os.FileInfo{
			"/usr/local/bin/spanline": &mockFileInfo{mode: 0755},
		},
		statErr:     os.ErrNotExist,
		lookPathErr: os.ErrNotExist,
	}

	out, err := captureDoctorOutput(t, utils)

	assert.NoError(t, err)
	assert.Contains(t, out, "✓ Binary location: /usr/local/bin/spanline")
	assert.Contains(t, out, "⚠ No spanline config found")
	assert.Contains(t, out, "⚠ Optional: no OpenTelemetry Collector config found")
	assert.Contains(t, out, "⚠ Optional: otel-cli not found")
	assert.Contains(t, out, "✅ All critical checks passed!")
}

func TestDoctorFullSetup(t *testing.T) {
	projectConfig := filepath.Join("/home/testuser/project", ".spanline.json")
	collectorConfig := filepath.Join("/home/testuser/project", "otel-collector.yaml")

	utils := &mockFsUtils{
		executable: "/usr/local/bin/spanline",
		homeDir:    "/home/testuser",
		cwd:        "/home/testuser/project",
		statMap: map[string]os.FileInfo{
			"/usr/local/bin/spanline": &mockFileInfo{mode: 0755},
			projectConfig:             &mockFileInfo{mode: 0644},
			collectorConfig:           &mockFileInfo{mode: 0644},
		},
		readFileMap: map[string][]byte{
			projectConfig: []byte(`{"trace_buffer_size": 5000, "http_port": 4380}`),
			collectorConfig: []byte(`
exporters:
  file/traces:
    path: /tank/otel/traces/traces.jsonl
`),
		},
		lookPathMap: map[string]string{
			"otel-cli": "/usr/local/bin/otel-cli",
		},
	}

	out, err := captureDoctorOutput(t, utils)

	assert.NoError(t, err)
	assert.Contains(t, out, "✓ Config found: "+projectConfig)
	assert.Contains(t, out, "file exporter dirs: /tank/otel/traces")
	assert.Contains(t, out, "spanline serve --file-dir /tank/otel/traces")
	assert.Contains(t, out, "✓ Optional: otel-cli found at /usr/local/bin/otel-cli")
	assert.Contains(t, out, "✅ All checks passed!")
}

func TestDoctorInvalidConfig(t *testing.T) {
	projectConfig := filepath.Join("/home/testuser/project", ".spanline.json")

	utils := &mockFsUtils{
		executable: "/usr/local/bin/spanline",
		homeDir:    "/home/testuser",
		cwd:        "/home/testuser/project",
		statMap: map[string]os.FileInfo{
			"/usr/local/bin/spanline": &mockFileInfo{mode: 0755},
			projectConfig:             &mockFileInfo{mode: 0644},
		},
		readFileMap: map[string][]byte{
			projectConfig: []byte(`{not json`),
		},
		statErr:     os.ErrNotExist,
		lookPathErr: os.ErrNotExist,
	}

	out, err := captureDoctorOutput(t, utils)

	assert.Error(t, err)
	assert.Contains(t, out, "✗ spanline config is not valid JSON")
	assert.Contains(t, out, "❌ Found 1 issue(s) that need attention")
}

func TestDoctorNonExecutableBinary(t *testing.T) {
	utils := &mockFsUtils{
		executable: "/usr/local/bin/spanline",
		homeDir:    "/home/testuser",
		cwd:        "/home/testuser/project",
		statMap: map[string]os.FileInfo{
			"/usr/local/bin/spanline": &mockFileInfo{mode: 0644},
		},
		statErr:     os.ErrNotExist,
		lookPathErr: os.ErrNotExist,
	}

	out, err := captureDoctorOutput(t, utils)

	assert.Error(t, err)
	assert.Contains(t, out, "✗ Binary is not executable")
	assert.Contains(t, out, "chmod +x /usr/local/bin/spanline")
}

// mockFileInfo implements os.FileInfo for testing purposes
type mockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	isDir   bool
	sys     interface{}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() interface{}   { return m.sys }

// Package filereader reads OTLP trace data from JSONL files written by the
// OpenTelemetry Collector's file exporter. It feeds spans into the same
// store used by the gRPC receiver, so timeline and query logic work
// unchanged regardless of how spans arrive.
package filereader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"google.golang.org/protobuf/encoding/protojson"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

const (
	// Buffer sizes for JSONL line scanning. OTLP JSON can be large,
	// especially for batched spans with many attributes.
	jsonlBufferInitial = 1 * 1024 * 1024  // 1MB initial buffer
	jsonlBufferMax     = 10 * 1024 * 1024 // 10MB maximum line size
)

// SpanReceiver is the interface storage must implement to receive spans.
type SpanReceiver interface {
	ReceiveSpans(ctx context.Context, resourceSpans []*tracepb.ResourceSpans) error
}

// FileSource reads OTLP trace data from a directory of JSONL files.
// It watches for new data and feeds it into the span store.
type FileSource struct {
	directory  string
	receiver   SpanReceiver
	verbose    bool
	activeOnly bool // Only load active files, skip rotated archives

	watcher *fsnotify.Watcher

	// Track file read positions to only read new data
	mu          sync.Mutex
	fileOffsets map[string]int64

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds configuration for a FileSource.
type Config struct {
	Directory string // Base directory (e.g., /tank/otel)
	Verbose   bool   // Enable verbose logging

	// ActiveOnly when true only loads active files like traces.jsonl,
	// skipping rotated archives like traces-2025-12-09T13-10-56.jsonl.
	// This prevents loading gigabytes of historical data on startup.
	ActiveOnly bool
}

// New creates a new FileSource that reads from the given directory.
// Trace JSONL files can live directly in the directory or in a traces/
// subdirectory, matching both common file-exporter layouts.
func New(cfg Config, receiver SpanReceiver) (*FileSource, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("directory is required")
	}

	info, err := os.Stat(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %s: %w", cfg.Directory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Directory)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FileSource{
		directory:   cfg.Directory,
		receiver:    receiver,
		verbose:     cfg.Verbose,
		activeOnly:  cfg.ActiveOnly,
		watcher:     watcher,
		fileOffsets: make(map[string]int64),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins watching the directory and loading initial data.
// It returns after initial load completes; watching continues in background.
func (fs *FileSource) Start(ctx context.Context) error {
	if fs.verbose {
		log.Printf("📁 FileSource: starting with directory %s\n", fs.directory)
	}

	for _, dir := range fs.traceDirs() {
		if err := fs.watcher.Add(dir); err != nil {
			log.Printf("⚠️  FileSource: could not watch %s: %v\n", dir, err)
		} else if fs.verbose {
			log.Printf("📁 FileSource: watching %s\n", dir)
		}
	}

	// Initial load of existing files
	if err := fs.loadInitialData(ctx); err != nil {
		return fmt.Errorf("initial data load failed: %w", err)
	}

	// Start background watcher
	fs.wg.Add(1)
	go fs.watchLoop()

	return nil
}

// Stop stops the file watcher and waits for goroutines to finish.
func (fs *FileSource) Stop() {
	fs.cancel()
	fs.watcher.Close()
	fs.wg.Wait()
}

// Directory returns the base directory being watched.
func (fs *FileSource) Directory() string {
	return fs.directory
}

// traceDirs returns the directories that may contain trace JSONL files:
// the base directory plus a traces/ subdirectory when it exists.
func (fs *FileSource) traceDirs() []string {
	dirs := []string{fs.directory}
	sub := filepath.Join(fs.directory, "traces")
	if info, err := os.Stat(sub); err == nil && info.IsDir() {
		dirs = append(dirs, sub)
	}
	return dirs
}

// loadInitialData reads all existing trace JSONL files into storage.
func (fs *FileSource) loadInitialData(ctx context.Context) error {
	for _, dir := range fs.traceDirs() {
		files, err := fs.findJSONLFiles(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		for _, file := range files {
			count, err := fs.loadTraceFile(ctx, file)
			if err != nil {
				log.Printf("⚠️  FileSource: error loading %s: %v\n", file, err)
				continue
			}
			if fs.verbose && count > 0 {
				log.Printf("📁 FileSource: loaded %d trace batches from %s\n", count, filepath.Base(file))
			}
		}
	}

	return nil
}

// findJSONLFiles returns .jsonl files in a directory, sorted by modification
// time. When activeOnly is true, only active files (e.g., traces.jsonl) are
// returned; rotated archives (e.g., traces-2025-12-09T13-10-56.jsonl) are
// skipped.
func (fs *FileSource) findJSONLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var files []fileInfo

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".jsonl") && !strings.Contains(name, ".jsonl.") {
			continue
		}

		// Rotated archives carry a timestamp between the base name and
		// the extension.
		if fs.activeOnly && isRotatedName(name) {
			if fs.verbose {
				log.Printf("📁 FileSource: skipping archived file %s (activeOnly mode)\n", name)
			}
			continue
		}

		path := filepath.Join(dir, name)
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: path, modTime: info.ModTime()})
	}

	// Oldest first so data loads in chronological order
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	result := make([]string, len(files))
	for i, f := range files {
		result[i] = f.path
	}
	return result, nil
}

// isRotatedName reports whether a JSONL filename looks like a rotated
// archive, e.g. traces-2025-12-09T13-10-56.jsonl.
func isRotatedName(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.ContainsRune(base, '-')
}

// loadTraceFile reads a JSONL file containing traces and feeds them to the
// receiver. Returns the number of batches processed.
func (fs *FileSource) loadTraceFile(ctx context.Context, path string) (int, error) {
	return fs.processFile(ctx, path, func(line []byte) error {
		var data tracepb.TracesData
		if err := protojson.Unmarshal(line, &data); err != nil {
			return fmt.Errorf("parse trace JSON: %w", err)
		}
		if len(data.ResourceSpans) > 0 {
			return fs.receiver.ReceiveSpans(ctx, data.ResourceSpans)
		}
		return nil
	})
}

// processFile reads a JSONL file from the last known offset, calling handler
// for each line. Returns the number of lines processed.
func (fs *FileSource) processFile(ctx context.Context, path string, handler func([]byte) error) (int, error) {
	fs.mu.Lock()
	offset := fs.fileOffsets[path]
	fs.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	// Seek to last read position
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			// File might have been rotated, start from beginning
			offset = 0
		}
	}

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, jsonlBufferInitial)
	scanner.Buffer(buf, jsonlBufferMax)

	count := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if err := handler(line); err != nil {
			// Log but continue - don't let one bad line stop everything
			if fs.verbose {
				log.Printf("⚠️  FileSource: error processing line in %s: %v\n", filepath.Base(path), err)
			}
			continue
		}
		count++
	}

	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading %s: %w", path, err)
	}

	// Update offset
	newOffset, _ := file.Seek(0, io.SeekCurrent)
	fs.mu.Lock()
	fs.fileOffsets[path] = newOffset
	fs.mu.Unlock()

	return count, nil
}

// watchLoop runs the file watcher event loop.
func (fs *FileSource) watchLoop() {
	defer fs.wg.Done()

	for {
		select {
		case <-fs.ctx.Done():
			return

		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}

			// Only care about writes and creates
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			path := event.Name
			if !strings.HasSuffix(path, ".jsonl") && !strings.Contains(path, ".jsonl.") {
				continue
			}
			if fs.activeOnly && isRotatedName(filepath.Base(path)) {
				continue
			}

			count, err := fs.loadTraceFile(fs.ctx, path)
			if err != nil {
				log.Printf("⚠️  FileSource: error reading %s: %v\n", path, err)
			} else if fs.verbose && count > 0 {
				log.Printf("📁 FileSource: loaded %d new trace batches from %s\n", count, filepath.Base(path))
			}

		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  FileSource: watcher error: %v\n", err)
		}
	}
}

// Stats returns statistics about the file source.
type Stats struct {
	Directory    string   `json:"directory"`
	WatchedDirs  []string `json:"watched_dirs"`
	FilesTracked int      `json:"files_tracked"`
}

// Stats returns current statistics.
func (fs *FileSource) Stats() Stats {
	fs.mu.Lock()
	filesTracked := len(fs.fileOffsets)
	fs.mu.Unlock()

	return Stats{
		Directory:    fs.directory,
		WatchedDirs:  fs.watcher.WatchList(),
		FilesTracked: filesTracked,
	}
}

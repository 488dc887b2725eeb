package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"google.golang.org/protobuf/encoding/protojson"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/brokle-ai/spanline/internal/storage"
	"github.com/brokle-ai/spanline/internal/viz"
)

// Line scanning limits for JSONL input, matching the file reader.
const (
	renderBufferInitial = 1 * 1024 * 1024
	renderBufferMax     = 10 * 1024 * 1024
)

// RenderCommand returns the CLI command definition for the 'render'
// subcommand. It reads OTLP JSON trace files and prints text waterfalls
// without starting any servers.
func RenderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render trace timelines from OTLP JSON files",
		ArgsUsage: "FILE [FILE...]",
		Description: `Reads OTLP trace data from JSON or JSONL files (as written by the
collector's file exporter, or a single ExportTraceServiceRequest/
TracesData document) and prints waterfall timelines to stdout.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "trace",
				Usage: "Render only the trace with this ID",
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Output width in columns",
				Value: 80,
			},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Also print a per-service summary",
			},
		},
		Action: runRender,
	}
}

func runRender(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("at least one input file is required")
	}

	// An in-memory store gives us the same parsing and indexing path the
	// live receiver uses.
	store := storage.NewStore(renderStoreCapacity)

	for _, path := range args {
		if err := loadTraceJSON(ctx, store, path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}

	var spans []*storage.StoredSpan
	if traceID := cmd.String("trace"); traceID != "" {
		spans = store.Spans().SpansByTraceID(traceID)
		if len(spans) == 0 {
			return fmt.Errorf("trace %q not found in input", traceID)
		}
	} else {
		spans = store.Spans().AllSpans()
	}

	if len(spans) == 0 {
		return fmt.Errorf("no spans found in input")
	}

	width := cmd.Int("width")
	fmt.Print(viz.Waterfall(storage.TimelineSpans(spans), width))

	if cmd.Bool("summary") {
		fmt.Println()
		fmt.Print(viz.ServiceSummary(serviceStats(spans), width))
	}

	return nil
}

const renderStoreCapacity = 100_000

// loadTraceJSON reads a file of OTLP trace JSON. Each line is tried as a
// TracesData document, which also covers single-document files since the
// collector writes one JSON object per line.
func loadTraceJSON(ctx context.Context, store *storage.Store, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, renderBufferInitial)
	scanner.Buffer(buf, renderBufferMax)

	loaded := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var data tracepb.TracesData
		if err := protojson.Unmarshal(line, &data); err != nil {
			return fmt.Errorf("parse trace JSON: %w", err)
		}
		if len(data.ResourceSpans) == 0 {
			continue
		}
		if err := store.ReceiveSpans(ctx, data.ResourceSpans); err != nil {
			return err
		}
		loaded++
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	if loaded == 0 {
		return fmt.Errorf("no trace data found")
	}
	return nil
}

// serviceStats aggregates per-service span and error counts.
func serviceStats(spans []*storage.StoredSpan) []viz.ServiceStats {
	byName := make(map[string]*viz.ServiceStats)
	var order []string
	for _, span := range spans {
		st, ok := byName[span.ServiceName]
		if !ok {
			st = &viz.ServiceStats{Name: span.ServiceName}
			byName[span.ServiceName] = st
			order = append(order, span.ServiceName)
		}
		st.SpanCount++
		if span.StatusCode == "ERROR" {
			st.ErrorCount++
		}
	}

	result := make([]viz.ServiceStats, 0, len(order))
	for _, name := range order {
		result = append(result, *byName[name])
	}
	return result
}

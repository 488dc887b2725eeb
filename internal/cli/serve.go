package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/brokle-ai/spanline/internal/filereader"
	"github.com/brokle-ai/spanline/internal/otlpreceiver"
	"github.com/brokle-ai/spanline/internal/storage"
	"github.com/brokle-ai/spanline/internal/viz"
	"github.com/brokle-ai/spanline/internal/webui"
)

// ServeCommand returns the CLI command definition for the 'serve' subcommand.
// This command starts the OTLP gRPC receiver and the web UI.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the OTLP receiver and trace viewer",
		Description: `Starts an OTLP gRPC receiver and an HTTP server with the trace
viewer UI and its JSON API. Point your application's OTLP exporter at
the gRPC endpoint and open the UI in a browser to watch timelines.

A collector file-exporter directory can be tailed in addition to the
gRPC receiver with --file-dir.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a spanline config file",
			},
			&cli.IntFlag{
				Name:  "trace-buffer-size",
				Usage: "Number of spans to buffer",
			},
			&cli.StringFlag{
				Name:  "otlp-host",
				Usage: "OTLP server bind address",
			},
			&cli.IntFlag{
				Name:  "otlp-port",
				Usage: "OTLP server port (0 for ephemeral)",
			},
			&cli.StringFlag{
				Name:  "http-host",
				Usage: "Web UI bind address",
			},
			&cli.IntFlag{
				Name:  "http-port",
				Usage: "Web UI port",
			},
			&cli.StringFlag{
				Name:  "file-dir",
				Usage: "Directory of collector file-exporter JSONL output to tail",
			},
			&cli.StringFlag{
				Name:  "otel-config",
				Usage: "Collector config to read file-exporter directories from",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
			},
		},
		Action: runServe,
	}
}

// flagOverrides builds a Config overlay from explicitly set CLI flags.
func flagOverrides(cmd *cli.Command) *Config {
	return &Config{
		TraceBufferSize: cmd.Int("trace-buffer-size"),
		OTLPHost:        cmd.String("otlp-host"),
		OTLPPort:        cmd.Int("otlp-port"),
		HTTPHost:        cmd.String("http-host"),
		HTTPPort:        cmd.Int("http-port"),
		FileDirectory:   cmd.String("file-dir"),
		Verbose:         cmd.Bool("verbose"),
	}
}

// runServe is the action handler for the serve command.
// It wires together all components: store, OTLP receiver, file reader,
// and the web UI.
func runServe(cliCtx context.Context, cmd *cli.Command) error {
	cfg, err := LoadEffectiveConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	cfg = MergeConfigs(cfg, flagOverrides(cmd))

	// --otel-config resolves the file directory out of a collector config
	// when no explicit directory was given.
	if otelConfig := cmd.String("otel-config"); otelConfig != "" && cfg.FileDirectory == "" {
		dirs, err := ParseOtelConfig(otelConfig)
		if err != nil {
			return err
		}
		if len(dirs) == 0 {
			return fmt.Errorf("no file exporters found in %s", otelConfig)
		}
		cfg.FileDirectory = dirs[0]
	}

	if cfg.Verbose {
		log.Println("🔧 Configuration:")
		log.Printf("  Trace buffer: %d spans\n", cfg.TraceBufferSize)
		log.Printf("  OTLP bind: %s:%d\n", cfg.OTLPHost, cfg.OTLPPort)
		log.Printf("  Web UI bind: %s:%d\n", cfg.HTTPHost, cfg.HTTPPort)
		if cfg.FileDirectory != "" {
			log.Printf("  File directory: %s\n", cfg.FileDirectory)
		}
		log.Println()
	}

	// 1. Create the span store with configured buffer size
	store := storage.NewStore(cfg.TraceBufferSize)

	if cfg.Verbose {
		log.Printf("✅ Created span store (capacity: %d spans)\n", cfg.TraceBufferSize)
	}

	// 2. Create and start OTLP gRPC receiver
	otlpServer, err := otlpreceiver.NewServer(
		otlpreceiver.Config{
			Host: cfg.OTLPHost,
			Port: cfg.OTLPPort,
		},
		store,
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP server: %w", err)
	}

	ctx, cancel := context.WithCancel(cliCtx)
	defer cancel()

	otlpErrChan := make(chan error, 1)
	go func() {
		otlpErrChan <- otlpServer.Start(ctx)
	}()

	// Get the actual endpoint (important for ephemeral ports)
	endpoint := otlpServer.Endpoint()

	log.Printf("🌐 OTLP gRPC server listening on %s\n", endpoint)
	if cfg.Verbose {
		log.Printf("   Programs can send traces with: OTEL_EXPORTER_OTLP_ENDPOINT=%s\n", endpoint)
	}

	// 3. Optionally tail a collector file-exporter directory
	if cfg.FileDirectory != "" {
		fileSource, err := filereader.New(filereader.Config{
			Directory:  cfg.FileDirectory,
			Verbose:    cfg.Verbose,
			ActiveOnly: cfg.FileActiveOnly,
		}, store)
		if err != nil {
			return fmt.Errorf("failed to create file reader: %w", err)
		}
		if err := fileSource.Start(ctx); err != nil {
			return fmt.Errorf("failed to start file reader: %w", err)
		}
		defer fileSource.Stop()

		log.Printf("📁 Tailing trace files in %s\n", cfg.FileDirectory)
	} else if cfg.Verbose {
		// Point at discoverable collector output when no file dir was given.
		if path := FindCollectorConfig(); path != "" {
			if dirs, err := ParseOtelConfig(path); err == nil && len(dirs) > 0 {
				log.Printf("💡 Collector config %s exports files to %s; tail them with --file-dir\n",
					path, dirs[0])
			}
		}
	}

	// 4. Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		if cfg.Verbose {
			log.Printf("📡 Received signal %v, initiating graceful shutdown...\n", sig)
		}
		cancel()
		otlpServer.Stop()
	}()

	// 5. Run the web UI server (blocks until context cancelled)
	uiAddr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	log.Printf("🎯 Trace viewer ready at http://%s/ui/\n", uiAddr)

	uiServer := webui.New(store)
	if err := uiServer.ListenAndServe(ctx, uiAddr); err != nil {
		select {
		case otlpErr := <-otlpErrChan:
			if otlpErr != nil {
				return fmt.Errorf("OTLP server error: %w", otlpErr)
			}
		default:
		}
		return fmt.Errorf("web UI server error: %w", err)
	}

	if cfg.Verbose {
		printShutdownReport(store)
	}

	return nil
}

// printShutdownReport dumps final activity to the log so a verbose session
// ends with a summary of what was seen.
func printShutdownReport(store *storage.Store) {
	stats := store.Stats()
	log.Println()
	log.Print(viz.StatsOverview(viz.BufferStats{
		SpanCount:     stats.Spans.SpanCount,
		SpanCapacity:  stats.Spans.Capacity,
		TraceCount:    stats.Spans.TraceCount,
		BookmarkCount: stats.Bookmarks,
	}))

	traces := store.Activity().RecentTraces(10)
	if len(traces) > 0 {
		rows := make([]viz.ActivityTrace, 0, len(traces))
		for _, t := range traces {
			rows = append(rows, viz.ActivityTrace{
				TraceID:    t.TraceID,
				Service:    t.Service,
				RootSpan:   t.RootSpan,
				Status:     t.Status,
				DurationMs: t.DurationMs,
			})
		}
		log.Print(viz.RecentTraces(rows))
	}

	errs := store.Activity().RecentErrors(10)
	if len(errs) > 0 {
		rows := make([]viz.ActivityError, 0, len(errs))
		for _, e := range errs {
			rows = append(rows, viz.ActivityError{
				TraceID:   e.TraceID,
				Service:   e.Service,
				SpanName:  e.SpanName,
				ErrorMsg:  e.ErrorMsg,
				Timestamp: e.Timestamp,
			})
		}
		log.Print(viz.RecentErrors(rows))
	}
}

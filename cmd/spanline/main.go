package main

import (
	"context"
	"fmt"
	"os"

	cliframework "github.com/urfave/cli/v3"

	"github.com/brokle-ai/spanline/internal/cli"
)

const version = "0.1.0-dev"

func main() {
	app := &cliframework.Command{
		Name:    "spanline",
		Usage:   "OTLP trace receiver with timeline visualization",
		Version: version,
		Commands: []*cliframework.Command{
			cli.ServeCommand(),
			cli.RenderCommand(),
			cli.DoctorCommand(version),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ error: %v\n", err)
		os.Exit(1)
	}
}

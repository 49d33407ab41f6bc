package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nrednav/cuid2"
	"github.com/onkernel/nasattach/cmd/nasattach/config"
	"github.com/onkernel/nasattach/lib/otel"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := Main(os.Args); err != nil {
		slog.Error("nasattach terminated", "error", err)
		os.Exit(1)
	}
}

func Main(args []string) error {
	cfg := config.Load()

	cli.VersionFlag = &cli.BoolFlag{
		Name: "version", Aliases: []string{"V"},
		Usage: "print the version",
	}

	app := &cli.App{
		Name:            "nasattach",
		Usage:           "provision an NFS file system on the array and mount it on every host of a cluster",
		Version:         cfg.Version,
		HideHelpCommand: true,
		Commands: []*cli.Command{
			provisionCommand(cfg),
			discoverCommand(cfg),
			teardownCommand(cfg),
		},
	}
	return app.Run(args)
}

// withApp starts telemetry, wires the clients and runs fn with a context
// cancelled on SIGINT/SIGTERM. Cleanup runs before withApp returns.
func withApp(cfg *config.Config, runID string, fn func(ctx context.Context, app *application) error) error {
	if err := cfg.Validate(true, true); err != nil {
		return err
	}

	otelProvider, otelShutdown, err := otel.Init(context.Background(), cfg.OtelConfig(runID))
	if err != nil {
		slog.Warn("failed to initialize OpenTelemetry, continuing without telemetry", "error", err)
	}
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				slog.Warn("error shutting down OpenTelemetry", "error", err)
			}
		}()
	}

	app, cleanup, err := initializeApp(cfg, otelProvider)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, app)
}

// newRunID returns the id used for artifacts and telemetry of one invocation.
func newRunID() string {
	return cuid2.Generate()
}

// exitCode turns a non-zero code into a cli exit error without a message.
func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return cli.Exit("", code)
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   "text",
		Usage:   "output format: text, json or yaml",
	}
}

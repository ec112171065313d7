// Command nutriscan decodes product barcodes from images, looks up their
// nutrition facts and checks them against a user's nutrient thresholds.
// It runs either as a one-shot CLI or as an HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// appFactory builds the App for a command. Tests substitute their own.
type appFactory func(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, NewApp))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, factory appFactory) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}

	logger, closeLog, err := newLogger(cfg, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	defer func() { _ = closeLog() }()

	cli := NewCLI(cfg, logger, factory)
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, errNoProduct) {
			return 2
		}
		logger.Error("command failed", "error", err)
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	return 0
}

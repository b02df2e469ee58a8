package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"github.com/inkwell-notes/inkwell/internal/config"
	"github.com/inkwell-notes/inkwell/internal/daemon"
	"github.com/inkwell-notes/inkwell/internal/plugin"
	"github.com/inkwell-notes/inkwell/internal/plugin/builtin/backlinks"
	"github.com/inkwell-notes/inkwell/internal/plugin/builtin/wordcount"
)

// builtinPlugins is the compile-time plugin table hosted by this daemon.
var builtinPlugins = []plugin.Descriptor{
	backlinks.Descriptor,
	wordcount.Descriptor,
}

func main() {
	configPath := os.Getenv("INKWELL_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := initLogger(cfg.Logging)
	logger.Info("Starting Inkwell daemon",
		"version", daemon.Version,
		"vault", cfg.Vault.Path,
	)

	d := daemon.New(cfg, builtinPlugins, logger)
	if err := d.Start(context.Background()); err != nil {
		var running *daemon.AlreadyRunningError
		if errors.As(err, &running) {
			logger.Error("another daemon owns this machine",
				"pid", running.PID,
				"port", running.Port,
			)
			os.Exit(1)
		}
		log.Fatalf("Failed to start daemon: %v", err)
	}

	// The daemon stops itself on SIGINT/SIGTERM/SIGHUP.
	<-d.Done()
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

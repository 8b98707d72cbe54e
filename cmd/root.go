package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/cjrutherford/qd-messages/internal/app"
	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/consts"
	"github.com/cjrutherford/qd-messages/internal/logger"
	"github.com/cjrutherford/qd-messages/internal/tree"
)

// Build information, set by main.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Run parses CLI flags, sets up logging and config, and starts the app.
func Run() error {
	configPath := flag.String("config-path", config.DefaultPath(), "path to config file")
	logPath := flag.String("log-path", logger.DefaultPath(), "path to log file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	backend := flag.String("backend", "", "directory backend (local, slack); overrides the config file")
	seed := flag.String("seed", "", "YAML layout loaded into an empty local directory")
	dumpTree := flag.Bool("dump-tree", false, "print the normalized channel tree as JSON and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("%s %s (%s, %s)\n", consts.Name, Version, Commit, Date)
		return nil
	}

	// Tokens may come from a .env file in the working directory.
	_ = godotenv.Load()

	if err := consts.EnsureCacheDir(); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	closer, err := logger.Setup(*logPath, level)
	if err != nil {
		return err
	}
	defer closer.Close()

	slog.Info("starting "+consts.Name, "version", Version, "config", *configPath, "log", *logPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := applyOverrides(cfg, *backend, *seed); err != nil {
		return err
	}

	if *dumpTree {
		return runDumpTree(context.Background(), cfg, os.Stdout)
	}
	return app.New(cfg).Run()
}

// applyOverrides applies flag values on top of the loaded config.
func applyOverrides(cfg *config.Config, backend, seed string) error {
	if backend != "" {
		cfg.Directory.Backend = backend
	}
	if seed != "" {
		cfg.Directory.Seed = seed
	}
	return cfg.Validate()
}

// runDumpTree writes the normalized tree of the configured backend to w.
func runDumpTree(ctx context.Context, cfg *config.Config, w io.Writer) error {
	backend, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.WaitReady(ctx); err != nil {
		return err
	}
	nodes, err := backend.ChannelFolderTree(ctx)
	if err != nil {
		return err
	}
	res, err := tree.Normalize(nodes)
	if err != nil {
		return err
	}
	for _, warn := range res.Warnings {
		slog.Warn("tree warning", "error", warn)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Entries)
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"patternguard/internal/cache"
	"patternguard/internal/config"
	"patternguard/internal/logging"
	"patternguard/internal/scanner"
	"patternguard/internal/version"
)

var (
	// logLevelFlag is the CLI --log-level flag value
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "patternguard",
	Short: "patternguard - project convention detector",
	Long: `patternguard inspects a source project and infers the conventions it follows
for authentication, API response shaping, and error handling. Every verdict
carries a confidence score and the evidence behind it, so downstream tooling
can decide how much to trust it.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("patternguard version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, or error (default: info)")
}

// newLogger builds the command logger. When command output is JSON the
// diagnostics switch to JSON too, so both streams stay machine-readable.
func newLogger(outputFormat string, cfg *config.Config) *logging.Logger {
	format := logging.Format(cfg.Logging.Format)
	if outputFormat == "json" {
		format = logging.JSONFormat
	}
	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	return logging.NewLogger(logging.Config{
		Format: format,
		Level:  logging.ParseLevel(level),
	})
}

// mustLoadConfig loads the project config or exits.
func mustLoadConfig(root string) *config.Config {
	cfg, err := config.LoadConfig(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// resolveRoot turns the optional positional argument into an absolute
// scan root, defaulting to the current directory.
func resolveRoot(args []string) string {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving root %q: %v\n", root, err)
		os.Exit(1)
	}
	return abs
}

// buildScanner assembles a scanner from config plus flag overrides.
// Precedence: CLI flag > config file > built-in default. The returned
// cleanup closes the persistent store when one was opened.
func buildScanner(root string, cfg *config.Config, logger *logging.Logger, noCache bool) (*scanner.Scanner, func()) {
	var store cache.Store
	cleanup := func() {}
	if cfg.Cache.Persist && !noCache {
		s, err := cache.OpenStore(root, logger)
		if err != nil {
			logger.Warn("persistent cache unavailable, continuing in-memory", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			store = s
			cleanup = func() { _ = s.Close() }
		}
	}

	opts := scanner.Options{
		MaxFiles:    cfg.Scan.MaxFiles,
		MaxFileSize: cfg.Scan.MaxFileSizeBytes,
		Timeout:     time.Duration(cfg.Scan.TimeoutMs) * time.Millisecond,
		Concurrency: cfg.Scan.Concurrency,
		Exclude:     cfg.Scan.Exclude,
	}
	if scanMaxFiles > 0 {
		opts.MaxFiles = scanMaxFiles
	}
	if scanTimeout > 0 {
		opts.Timeout = scanTimeout
	}
	if scanConcurrency > 0 {
		opts.Concurrency = scanConcurrency
	}
	if len(scanExclude) > 0 {
		opts.Exclude = append(opts.Exclude, scanExclude...)
	}

	return scanner.New(opts, cache.New(logger, store), logger), cleanup
}

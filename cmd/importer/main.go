// Command importer runs one price import synchronously against the
// configured store and prints the finished run as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cryptorecs/internal/config"
	"cryptorecs/internal/importer"
	"cryptorecs/internal/infrastructure"
	"cryptorecs/internal/operations"
	"cryptorecs/internal/store"
	"cryptorecs/internal/validation"
	"cryptorecs/pkg/contracts"
	"cryptorecs/pkg/contracts/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 for a completed run, 1 otherwise
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("importer", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "YAML configuration file (defaults to config.yaml lookup)")
	sourceDir := flags.String("dir", "", "directory containing price files (overrides input.source_dir)")
	pattern := flags.String("pattern", "", "file glob (overrides input.pattern)")
	checkOnly := flags.Bool("check", false, "validate the input files and print them without importing")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if *showVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "importer: %v\n", err)
		return 1
	}
	if *sourceDir != "" {
		cfg.Input.SourceDir = *sourceDir
	}
	if *pattern != "" {
		cfg.Input.Pattern = *pattern
	}

	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "importer: %v\n", err)
		return 1
	}
	logger = infrastructure.WithComponent(logger, "importer_cli")

	if *checkOnly {
		return check(cfg.Input, logger, stdout)
	}

	finished, err := importOnce(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "import_failed", slog.String("error", err.Error()))
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(finished); err != nil {
		logger.ErrorContext(ctx, "encode_run_failed", slog.String("error", err.Error()))
		return 1
	}

	if finished.Status != domain.RunStatusCompleted {
		return 1
	}
	return 0
}

// newLogger keeps stdout free for the run document
func newLogger(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, error) {
	if cfg.Output == "console" {
		return infrastructure.NewLoggerWithWriter(stderr, infrastructure.ParseLogLevel(cfg.Level)), nil
	}
	return infrastructure.NewLogger(cfg)
}

// check prints the files an import would read
func check(cfg config.InputConfig, logger *slog.Logger, stdout io.Writer) int {
	report, err := validation.NewInputValidator(logger).ValidateSourceDir(cfg.SourceDir, cfg.Pattern)
	if err != nil {
		logger.Error("check_failed", slog.String("error", err.Error()))
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return 1
	}
	if len(report.Files) == 0 {
		return 1
	}
	return 0
}

func importOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Run, error) {
	st, err := store.Open(cfg.Storage, logger)
	if err != nil {
		return domain.Run{}, fmt.Errorf("open price store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.WarnContext(ctx, "store_close_failed", slog.String("error", err.Error()))
		}
	}()

	job, err := importer.NewJob(cfg.Input, importer.NewStoreWriter(st), logger)
	if err != nil {
		return domain.Run{}, fmt.Errorf("build import job: %w", err)
	}

	launcher := operations.NewLauncher(logger)
	return launcher.Run(ctx, job)
}

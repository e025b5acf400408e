// Package cmd wires the CLI commands.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vicluzy/pst-extract/config"
	"github.com/vicluzy/pst-extract/mailbox"
	_ "github.com/vicluzy/pst-extract/mbox"
	"github.com/vicluzy/pst-extract/progress"
	"github.com/vicluzy/pst-extract/runner"
	"github.com/vicluzy/pst-extract/sink"
	"github.com/vicluzy/pst-extract/stats"
)

var rootCmd = &cobra.Command{
	Use:   "pst-extract [container ...]",
	Short: "Extract mailbox containers into normalized JSONL batches, attachments and chat transcripts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cmd)
		if err != nil {
			return err
		}

		logger, cleanup, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = cleanup()
		}()

		slog.SetDefault(logger)
		logger.Info("starting extraction", "containers", len(args), "out", cfg.OutDir, "zip", cfg.ZipPath)

		sources := make([]runner.Source, 0, len(args))
		for _, path := range args {
			sources = append(sources, runner.FileSource(path))
		}

		return run(cfg, logger, sources)
	},
}

func init() {
	config.RegisterFlags(rootCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, sources []runner.Source) error {
	snk, err := buildSink(cfg)
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}

	bar := progress.New(len(sources), cfg.LogLevel)
	progress.NewReporter(r, bar, logger)

	summary, runErr := r.Run(sources, snk)
	bar.Stop()

	if err := snk.Close(); err != nil {
		if runErr == nil {
			return err
		}
		logger.Warn("closing output failed", "err", err)
	}
	if runErr != nil {
		return runErr
	}

	reportOutcome(logger, cfg, summary)
	return nil
}

func buildSink(cfg config.Config) (sink.Sink, error) {
	if cfg.ZipPath != "" {
		file, err := os.Create(cfg.ZipPath)
		if err != nil {
			return nil, fmt.Errorf("create zip file: %w", err)
		}
		return sink.NewZipSink(file), nil
	}
	return sink.NewDirSink(cfg.OutDir), nil
}

func reportOutcome(logger *slog.Logger, cfg config.Config, summary stats.RunSummary) {
	target := cfg.OutDir
	if cfg.ZipPath != "" {
		target = cfg.ZipPath
	}

	logger.Info("extraction complete",
		"target", target,
		"emails", summary.TotalEmails,
		"attachments", summary.TotalAttachments,
		"teamsMessages", summary.TotalTeams,
		"failedContainers", len(summary.FailedFiles),
	)
	for _, f := range summary.FailedFiles {
		logger.Warn("container failed", "name", f.Name, "reason", f.Reason)
	}
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("pst-extract-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}

// supportedFormats is used in help output of subcommands.
func supportedFormats() string {
	exts := mailbox.Extensions()
	if len(exts) == 0 {
		return "none"
	}
	out := exts[0]
	for _, e := range exts[1:] {
		out += ", " + e
	}
	return out
}

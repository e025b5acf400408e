package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Config captures all command-line options required to run an extraction.
type Config struct {
	OutDir         string
	ZipPath        string
	MaxTokens      int
	LogLevel       string
	LogDir         string
	IncludeSubject []string
	IncludeBody    []string
	ExcludeSubject []string
	ExcludeBody    []string
}

// RegisterFlags attaches the shared extraction flags to the provided command
// as persistent flags so subcommands inherit them.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("out", "", "Output directory (defaults to extraction_<timestamp>)")
	flags.String("zip", "", "Write a single zip archive instead of a directory")
	flags.Int("max-tokens", 2500, "Approximate token budget per email batch file")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (empty: stdout only)")
	flags.StringArray("include-subject", nil, "Regex allow-list applied to record subjects (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to record bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-subject", nil, "Regex block-list applied to record subjects (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to record bodies (mutually exclusive with include flags)")
}

// LoadConfig converts the parsed Cobra flags into a Config struct with
// validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	outDir, err := flags.GetString("out")
	if err != nil {
		return Config{}, err
	}
	zipPath, err := flags.GetString("zip")
	if err != nil {
		return Config{}, err
	}
	maxTokens, err := flags.GetInt("max-tokens")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	includeSubject, err := flags.GetStringArray("include-subject")
	if err != nil {
		return Config{}, err
	}
	includeBody, err := flags.GetStringArray("include-body")
	if err != nil {
		return Config{}, err
	}
	excludeSubject, err := flags.GetStringArray("exclude-subject")
	if err != nil {
		return Config{}, err
	}
	excludeBody, err := flags.GetStringArray("exclude-body")
	if err != nil {
		return Config{}, err
	}

	if outDir == "" && zipPath == "" {
		outDir = fmt.Sprintf("extraction_%s", time.Now().Format("20060102T150405"))
	}
	if outDir != "" {
		outDir = filepath.Clean(outDir)
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		OutDir:         outDir,
		ZipPath:        zipPath,
		MaxTokens:      maxTokens,
		LogLevel:       logLevel,
		LogDir:         logDir,
		IncludeSubject: includeSubject,
		IncludeBody:    includeBody,
		ExcludeSubject: excludeSubject,
		ExcludeBody:    excludeBody,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.OutDir != "" && cfg.ZipPath != "" {
		return fmt.Errorf("--out and --zip are mutually exclusive")
	}
	if cfg.MaxTokens <= 0 {
		return fmt.Errorf("--max-tokens must be positive")
	}

	includeActive := len(cfg.IncludeSubject) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeSubject) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

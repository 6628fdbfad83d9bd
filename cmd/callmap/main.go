package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/callmap"
	"github.com/jward/callmap/internal/config"
	"github.com/jward/callmap/internal/metrics"
	"github.com/jward/callmap/scripts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		if errors.Is(err, callmap.ErrUsage) {
			fmt.Fprintln(os.Stderr, "Run 'callmap --help' for usage.")
		}
		os.Exit(1)
	}
}

// flags holds the command line values. Only flags that were set override
// the loaded configuration.
type flags struct {
	configPath  string
	db          string
	script      string
	workers     int
	logLevel    string
	logFormat   string
	metricsOut  string
	maxFileSize string
	indent      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "callmap <path>",
		Short: "Attribute the calls in Python source files to libraries",
		Long: "Callmap parses Python files with tree-sitter and reports, for each file, " +
			"the modules it imports and the library each of its calls most likely belongs to.\n" +
			"A directory contributes its direct *.py children.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: expected exactly one path, got %d", callmap.ErrUsage, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			return run(cmd, cfg, args[0], f.indent, stdout, stderr)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "config file (default: .callmap.yaml in the working directory)")
	fl.StringVar(&f.db, "db", "", "SQLite database caching reports by content hash")
	fl.StringVar(&f.script, "script", "", "Risor hook script run on every report (embedded:hooks/<name>.risor selects a built-in)")
	fl.IntVar(&f.workers, "workers", 0, "files analyzed concurrently (default: one per CPU)")
	fl.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "log level: debug|info|warn|error")
	fl.StringVar(&f.logFormat, "log-format", config.DefaultLogFormat, "log format: text|json")
	fl.StringVar(&f.metricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit")
	fl.StringVar(&f.maxFileSize, "max-file-size", "10MiB", "skip files larger than this (bytes or a size such as 512KiB; 0 disables)")
	fl.BoolVar(&f.indent, "indent", false, "indent the JSON output")
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

// loadConfig reads the configuration and applies the flags that were set.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("db") {
		cfg.DB = f.db
	}
	if changed("script") {
		cfg.Script = f.script
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if changed("metrics-out") {
		cfg.MetricsOut = f.metricsOut
	}
	if changed("max-file-size") {
		n, err := config.ParseSize(f.maxFileSize)
		if err != nil {
			return nil, err
		}
		cfg.MaxFileSize = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, cfg *config.Config, path string, indent bool, stdout, stderr io.Writer) error {
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	m := metrics.New()

	opts := []callmap.Option{
		callmap.WithLogger(logger),
		callmap.WithWorkers(cfg.Workers),
		callmap.WithMaxFileSize(cfg.MaxFileSize),
		callmap.WithMetrics(m),
	}
	if cfg.DB != "" {
		opts = append(opts, callmap.WithDatabase(cfg.DB))
	}
	if name, ok := strings.CutPrefix(cfg.Script, scripts.Prefix); ok {
		opts = append(opts, callmap.WithScriptsFS(scripts.FS), callmap.WithScript(name))
	} else if cfg.Script != "" {
		opts = append(opts, callmap.WithScript(cfg.Script))
	}

	engine, err := callmap.New(opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	corpus, err := engine.AnalyzePaths(cmd.Context(), []string{path})
	if err != nil {
		return err
	}
	if err := writeReport(stdout, corpus, indent); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if cfg.MetricsOut != "" {
		if err := m.WriteTextfile(cfg.MetricsOut); err != nil {
			logger.Warn("cannot write metrics",
				slog.String("path", cfg.MetricsOut),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// newLogger builds the stderr logger for diagnostics.
func newLogger(lc config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := lc.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(lc.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidLogFormat, lc.Format)
	}
}

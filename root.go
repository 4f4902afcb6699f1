package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/expedientes-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagSheetID    string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Config

// CLIFlags is a snapshot of the persistent flags for one invocation.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Quiet      bool
}

// CLIContext carries the resolved config and logger to subcommands through
// the command context.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Config
	Logger *slog.Logger

	closeLog func() error
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext installed by PersistentPreRunE. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		panic("CLIContext not installed; PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "expedientes",
		Short:         "Case files on Google Drive and Sheets",
		Long:          "Create case files (expedientes) as Google Drive folders indexed in a Google Sheet.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			ctx = shutdownContext(ctx, cc.Logger)
			cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cc, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext); ok && cc.closeLog != nil {
				return cc.closeLog()
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagSheetID, "sheet", "", "index spreadsheet ID")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable info logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newOpenCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newOrphansCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext resolves the effective configuration from the four-layer
// override chain and builds the logger it describes.
func loadCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	if err := loadConfig(cmd); err != nil {
		return nil, err
	}

	logger, closeLog, err := buildLogger(resolvedCfg)
	if err != nil {
		return nil, err
	}

	return &CLIContext{
		Flags: CLIFlags{
			ConfigPath: flagConfigPath,
			JSON:       flagJSON,
			Quiet:      flagQuiet,
		},
		Cfg:      resolvedCfg,
		Logger:   logger,
		closeLog: closeLog,
	}, nil
}

// loadConfig resolves the effective configuration and stores it in
// resolvedCfg.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	// Only pass --sheet to the resolver if the user explicitly set it.
	if cmd.Flags().Changed("sheet") {
		sheet := flagSheetID
		cli.SheetID = &sheet
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// logLevel returns the level from the config, overridden by --verbose,
// --debug and --quiet because CLI flags always win.
func logLevel(cfg *config.Config) slog.Level {
	level := slog.LevelWarn

	if cfg != nil {
		switch strings.ToLower(cfg.Logging.LogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}

	return level
}

// buildLogger creates the process logger. Output goes to log_file when set,
// otherwise stderr. log_format "auto" picks text on a terminal and JSON
// everywhere else. The returned func closes the log file.
func buildLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	var (
		out      io.Writer = os.Stderr
		closeLog           = func() error { return nil }
		format             = "auto"
	)

	if cfg != nil {
		format = cfg.Logging.LogFormat

		if cfg.Logging.LogFile != "" {
			f, err := os.OpenFile(cfg.Logging.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return nil, nil, fmt.Errorf("opening log file: %w", err)
			}

			out = f
			closeLog = f.Close
		}
	}

	opts := &slog.HandlerOptions{Level: logLevel(cfg)}

	if useJSONLogs(format, out) {
		return slog.New(slog.NewJSONHandler(out, opts)), closeLog, nil
	}

	return slog.New(slog.NewTextHandler(out, opts)), closeLog, nil
}

func useJSONLogs(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "json":
		return true
	case "text":
		return false
	}

	f, ok := out.(*os.File)
	if !ok {
		return true
	}

	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Canceled.")
		os.Exit(130)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

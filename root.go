package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/classroom-go/internal/auth"
	"github.com/tonimelisma/classroom-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Resolved

// logFilePermissions matches the token file: logs can contain course names.
const logFilePermissions = 0o600

// logDirPermissions is used when creating the log file's directory.
const logDirPermissions = 0o700

// skipConfigCommands lists commands that must run without a loadable
// config. config init writes the file the others read. Matching uses
// CommandPath() so that a future subcommand with the same leaf name is not
// skipped by accident.
var skipConfigCommands = map[string]bool{
	"classroom-go config init": true,
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "classroom-go",
		Short:   "Google Classroom submission helper",
		Long:    "Sign in with Google, list courses and assignments, and turn in files as coursework.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newCoursesCmd())
	cmd.AddCommand(newAssignmentsCmd())
	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in resolvedCfg.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
	}

	// Only serve has --listen; pass it on only when explicitly set.
	if cmd.Flags().Changed("listen") {
		addr, err := cmd.Flags().GetString("listen")
		if err != nil {
			return err
		}

		cli.ListenAddr = &addr
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli, bootstrapLogger())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// bootstrapLogger is used before the config is loaded. Only warnings are
// shown unless --verbose is set.
func bootstrapLogger() *slog.Logger {
	level := slog.LevelWarn

	switch {
	case flagVerbose:
		level = slog.LevelDebug
	case flagQuiet:
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// logLevel returns the effective level. Config-file log level provides the
// baseline; --verbose and --quiet override it because CLI flags always win.
func logLevel() slog.Level {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return level
}

// newLogHandler picks the handler for format. "auto" is text on a terminal
// and JSON otherwise.
func newLogHandler(w io.Writer, format string, level slog.Level, terminal bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		if terminal {
			return slog.NewTextHandler(w, opts)
		}

		return slog.NewJSONHandler(w, opts)
	}
}

// buildLogger creates the command logger from the resolved config and CLI
// flags. When log_file is set, records go to stderr and are appended to the
// file; the returned func closes it and must always be called.
func buildLogger() (*slog.Logger, func(), error) {
	var (
		out       io.Writer = os.Stderr
		closeLog            = func() {}
		format              = "auto"
		logToFile string
	)

	if resolvedCfg != nil {
		format = resolvedCfg.Logging.LogFormat
		logToFile = resolvedCfg.Logging.LogFile
	}

	if logToFile != "" {
		if err := os.MkdirAll(filepath.Dir(logToFile), logDirPermissions); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}

		f, err := os.OpenFile(logToFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePermissions)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}

		out = io.MultiWriter(os.Stderr, f)
		closeLog = func() { f.Close() }
	}

	fd := os.Stderr.Fd()
	terminal := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)

	return slog.New(newLogHandler(out, format, logLevel(), terminal)), closeLog, nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if errors.Is(err, auth.ErrClientSecretsMissing) {
		path := config.DefaultClientSecretsPath()
		if resolvedCfg != nil {
			path = resolvedCfg.ClientSecretsPath
		}

		fmt.Fprintf(os.Stderr, "Download the OAuth client JSON from the Google Cloud console and save it as %s\n", path)
	}

	os.Exit(1)
}

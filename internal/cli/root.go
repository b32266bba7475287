// Package cli implements the mapsync command line.
//
// Every command reads the same configuration (see internal/config) and, when
// it touches engine state, opens the SQLite store named by the database
// setting. Commands that change the engine drive the change-feed adapter
// through a journaling dispatcher, so `mapsync replay` can rebuild the same
// state from the journal.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/mapsync/internal/config"
)

// DefaultConfigPath is read when --config is not given. A missing file is
// not an error.
const DefaultConfigPath = "mapsync.toml"

// RootOptions holds global flags for all commands and the configuration
// resolved from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides the configured database when set
	Namespace  string // overrides the configured namespace when set

	config config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the mapsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "mapsync",
		Short: "mapsync - declarative scenes for imperative map engines",
		Long: `mapsync keeps a map engine in step with a declarative scene.

Scenes are written in CUE. Applying a scene diffs it against the last
committed scene and pushes the difference through the change-feed adapter
into a SQLite-backed headless engine. Every delivered event is journaled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", DefaultConfigPath, "path to TOML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Namespace, "namespace", "", "engine id prefix (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewVisibilityCommand(opts))
	cmd.AddCommand(NewShapeCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

// resolve validates the global flags, loads the configuration and builds
// the logger. Flags win over the file and the environment.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Namespace != "" {
		cfg.Namespace = o.Namespace
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Logs always go to stderr so JSON output on stdout stays parseable.
	logger, err := cfg.Logger(cmd.ErrOrStderr(), o.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log configuration", err)
	}

	o.config = cfg
	o.logger = logger
	return nil
}

// Config returns the resolved configuration. Valid after the root command's
// pre-run.
func (o *RootOptions) Config() config.Config {
	return o.config
}

// Logger returns the resolved logger, or a discarding one before pre-run.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

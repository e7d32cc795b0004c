package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/fragdb/internal/config"
)

// RootOptions holds global flags for all commands, and the settings
// resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DataDir    string // overrides data_dir
	Store      string // overrides store
	Node       string // overrides node_id
	Metrics    bool

	// Config is the loaded config with flag overrides applied.
	Config config.Config

	// Logger writes diagnostics to stderr.
	Logger *slog.Logger

	// now overrides the wall clock used for new timestamps (for testing).
	now func() time.Time

	registry *prometheus.Registry
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fragdb CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fragdb",
		Short: "fragdb - fragment store for synchronized documents",
		Long: `Inspect and edit a fragdb store.

A store holds documents and the append-only fragment log of each document.
Every fragment is stamped with a hybrid logical timestamp that names the
replica which produced it, so replicas can ask for "everything since T that
did not come from me".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "config file (default ./"+config.DefaultPath+" if present)")
	pf.StringVar(&opts.DataDir, "data-dir", "", "directory holding store files")
	pf.StringVar(&opts.Store, "store", "", "store name")
	pf.StringVar(&opts.Node, "node", "", "replica node id (16 hex characters)")
	pf.BoolVar(&opts.Metrics, "metrics", false, "print store metrics to stderr after the command")

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewDocCommand(opts))
	cmd.AddCommand(NewAppendCommand(opts))
	cmd.AddCommand(NewFragmentsCommand(opts))
	cmd.AddCommand(NewSinceCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewClockCommand(opts))

	return cmd
}

// resolve loads the config file, applies flag overrides and sets up logging.
// The config file may be absent when it is the default one, or when init is
// about to create it.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	path, optional := o.ConfigPath, cmd.Name() == "init"
	if path == "" {
		path, optional = config.DefaultPath, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	if o.Store != "" {
		cfg.Store = o.Store
	}
	if o.Node != "" {
		cfg.NodeID = o.Node
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}
	o.Config = cfg

	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if o.Metrics {
		o.registry = prometheus.NewRegistry()
	}
	return nil
}

// writeMetrics dumps the registry in the Prometheus text format.
func (o *RootOptions) writeMetrics(w io.Writer) error {
	if o.registry == nil {
		return nil
	}
	families, err := o.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// Main runs the CLI with args and returns the process exit code.
// Errors are reported through the output formatter.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	return runCommand(ctx, newRootCommand(opts), opts, args, stdout, stderr)
}

// runCommand executes a root command built by newRootCommand(opts) and
// writes --metrics output once the command has finished.
func runCommand(ctx context.Context, cmd *cobra.Command, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)

	// Metrics are written for failed commands too, rollbacks included.
	if mErr := opts.writeMetrics(stderr); mErr != nil && err == nil {
		err = WrapExitError(ExitFailure, "failed to write metrics", mErr)
	}
	if err == nil {
		return ExitSuccess
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	_ = f.Error(errorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fragdb/internal/config"
	"github.com/roach88/fragdb/internal/hlc"
)

// initResult is the output of init.
type initResult struct {
	Store         string `json:"store"`
	Path          string `json:"path"`
	NodeID        string `json:"node_id,omitempty"`
	ConfigPath    string `json:"config_path"`
	ConfigWritten bool   `json:"config_written"`
}

func (r initResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Store %q ready at %s\n", r.Store, r.Path)
	if r.ConfigWritten {
		fmt.Fprintf(w, "Wrote %s (node_id %s)\n", r.ConfigPath, r.NodeID)
	}
	return nil
}

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the store and a config file",
		Long: `Create the configured store if it does not exist, and write a config file
with a new replica node id if none exists yet.

An existing config file is never modified.

Example:
  fragdb init --data-dir ./data --store notes`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := initResult{Store: opts.Config.Store}

			err := withStore(opts, func(db *DB) error {
				result.Path = db.Path()
				return nil
			})
			if err != nil {
				return err
			}

			result.ConfigPath = opts.ConfigPath
			if result.ConfigPath == "" {
				result.ConfigPath = config.DefaultPath
			}

			cfg := opts.Config
			result.NodeID = cfg.NodeID

			_, err = os.Stat(result.ConfigPath)
			switch {
			case err == nil:
				opts.Logger.Debug("config exists, leaving it unchanged", "path", result.ConfigPath)
			case errors.Is(err, fs.ErrNotExist):
				if cfg.NodeID == "" {
					cfg.NodeID = hlc.NewNodeID()
					result.NodeID = cfg.NodeID
				}
				if err := config.Write(result.ConfigPath, cfg); err != nil {
					return WrapExitError(ExitCommandError, "failed to write config", err)
				}
				result.ConfigWritten = true
				opts.Logger.Info("config written", "path", result.ConfigPath, "node_id", cfg.NodeID)
			default:
				return WrapExitError(ExitCommandError, "failed to check config", err)
			}

			return newFormatter(opts, cmd).Success(result)
		},
	}
}

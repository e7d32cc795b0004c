package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/fragdb/internal/store"
)

// transferResult is the summary printed by export and import.
type transferResult struct {
	Path      string `json:"path"`
	Documents int    `json:"documents"`
	Fragments int    `json:"fragments"`
}

func (r transferResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s: %d document(s), %d fragment(s)\n", r.Path, r.Documents, r.Fragments)
	return err
}

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var (
		documentID string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write documents and fragments as JSON Lines",
		Long: `Write every document followed by its fragments as JSON Lines.

Each line is one record: {"kind":"document",...} or {"kind":"fragment",...},
with metadata and payloads base64 encoded. Fragments are streamed one at a
time, so exporting a large document does not load it into memory.

Without --output the stream goes to stdout and the summary is only logged.

Examples:
  fragdb export > backup.jsonl
  fragdb export --doc notes/today --output today.jsonl`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if documentID != "" {
				id, err := normalizeID(documentID)
				if err != nil {
					return err
				}
				documentID = id
			}

			// The dump is spooled to a temp file so a failed export never
			// leaves partial records in the output.
			dir := ""
			if output != "" {
				dir = filepath.Dir(output)
			}
			spool, err := os.CreateTemp(dir, ".fragdb-export-*")
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create output file", err)
			}
			defer func() {
				spool.Close()
				os.Remove(spool.Name())
			}()

			var stats store.DumpStats
			err = withStore(opts, func(db *DB) error {
				ctx := cmd.Context()
				bw := bufio.NewWriter(spool)
				var err error
				stats, err = store.WithResult(ctx, db, func(tx *Tx) (store.DumpStats, error) {
					if documentID != "" {
						return tx.DumpDocument(ctx, bw, documentID)
					}
					return tx.Dump(ctx, bw)
				})
				if err != nil {
					return WrapExitError(ExitFailure, "export failed", err)
				}
				if err := bw.Flush(); err != nil {
					return WrapExitError(ExitCommandError, "failed to write export", err)
				}
				return nil
			})
			if err != nil {
				return err
			}
			opts.Logger.Info("export finished", "documents", stats.Documents, "fragments", stats.Fragments)

			if output == "" {
				if _, err := spool.Seek(0, io.SeekStart); err != nil {
					return WrapExitError(ExitCommandError, "failed to write export", err)
				}
				if _, err := io.Copy(cmd.OutOrStdout(), spool); err != nil {
					return WrapExitError(ExitCommandError, "failed to write export", err)
				}
				return nil
			}

			if err := publish(spool, output); err != nil {
				return WrapExitError(ExitCommandError, "failed to write export", err)
			}
			return newFormatter(opts, cmd).Success(transferResult{
				Path:      output,
				Documents: stats.Documents,
				Fragments: stats.Fragments,
			})
		},
	}

	cmd.Flags().StringVar(&documentID, "doc", "", "export only this document")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

// publish moves a finished spool file to path, replacing any existing file.
func publish(spool *os.File, path string) error {
	if err := spool.Chmod(0o644); err != nil {
		return err
	}
	if err := spool.Sync(); err != nil {
		return err
	}
	if err := spool.Close(); err != nil {
		return err
	}
	return os.Rename(spool.Name(), path)
}

// NewImportCommand creates the import command.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Load an export into the store",
		Long: `Load a JSON Lines export into the store in one transaction.

Records are added in file order. A document id or fragment key that already
exists fails the import with CONFLICT and nothing from the file is kept.

Examples:
  fragdb import backup.jsonl
  fragdb export --store a | fragdb import --store b -`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			var r io.Reader = cmd.InOrStdin()
			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to open import file", err)
				}
				defer f.Close()
				r = f
			}

			return withStore(opts, func(db *DB) error {
				ctx := cmd.Context()
				stats, err := store.WithResult(ctx, db, func(tx *Tx) (store.DumpStats, error) {
					return tx.Restore(ctx, bufio.NewReader(r))
				})
				if err != nil {
					return WrapExitError(ExitFailure, "import failed", err)
				}

				opts.Logger.Info("import finished", "documents", stats.Documents, "fragments", stats.Fragments)
				return newFormatter(opts, cmd).Success(transferResult{
					Path:      path,
					Documents: stats.Documents,
					Fragments: stats.Fragments,
				})
			})
		},
	}
}

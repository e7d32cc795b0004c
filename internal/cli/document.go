package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fragdb/internal/store"
)

// documentView is the output form of a document.
type documentView struct {
	ID       string `json:"id"`
	Metadata []byte `json:"metadata"`
}

func (d documentView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\t%q\n", d.ID, d.Metadata)
	return err
}

// documentList is the output of doc list.
type documentList struct {
	Documents []documentView `json:"documents"`
	Total     int            `json:"total"`
}

func (l documentList) WriteText(w io.Writer) error {
	if l.Total == 0 {
		_, err := fmt.Fprintln(w, "No documents found.")
		return err
	}
	for _, d := range l.Documents {
		if err := d.WriteText(w); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d document(s)\n", l.Total)
	return err
}

// NewDocCommand creates the doc command group.
func NewDocCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Create, read and list documents",
	}

	cmd.AddCommand(newDocAddCommand(rootOpts))
	cmd.AddCommand(newDocGetCommand(rootOpts))
	cmd.AddCommand(newDocListCommand(rootOpts))
	cmd.AddCommand(newDocMetaCommand(rootOpts))

	return cmd
}

func newDocAddCommand(opts *RootOptions) *cobra.Command {
	var metadata string

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Create a document",
		Long: `Create a new document with optional metadata.

Fails with CONFLICT if a document with the same id exists.

Example:
  fragdb doc add notes/today --meta '{"title":"Today"}'`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := normalizeID(args[0])
			if err != nil {
				return err
			}
			return withStore(opts, func(db *DB) error {
				err := db.WithTransaction(cmd.Context(), func(tx *Tx) error {
					return tx.AddDocument(cmd.Context(), id, []byte(metadata))
				})
				if err != nil {
					return WrapExitError(ExitFailure, "failed to add document", err)
				}
				opts.Logger.Info("document added", "id", id)
				return newFormatter(opts, cmd).Success(documentView{ID: id, Metadata: []byte(metadata)})
			})
		},
	}

	cmd.Flags().StringVar(&metadata, "meta", "", "document metadata")

	return cmd
}

func newDocGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a document",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := normalizeID(args[0])
			if err != nil {
				return err
			}
			return withStore(opts, func(db *DB) error {
				doc, err := store.WithResult(cmd.Context(), db, func(tx *Tx) (store.Document, error) {
					return tx.GetDocument(cmd.Context(), id)
				})
				if err != nil {
					return WrapExitError(ExitFailure, "failed to get document", err)
				}
				return newFormatter(opts, cmd).Success(documentView(doc))
			})
		},
	}
}

func newDocListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents in id order",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, func(db *DB) error {
				docs, err := store.WithResult(cmd.Context(), db, func(tx *Tx) ([]store.Document, error) {
					return tx.GetDocuments(cmd.Context())
				})
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list documents", err)
				}

				list := documentList{Documents: make([]documentView, 0, len(docs)), Total: len(docs)}
				for _, d := range docs {
					list.Documents = append(list.Documents, documentView(d))
				}
				return newFormatter(opts, cmd).Success(list)
			})
		},
	}
}

func newDocMetaCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "meta <id> <metadata>",
		Short: "Replace the metadata of a document",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := normalizeID(args[0])
			if err != nil {
				return err
			}
			metadata := []byte(args[1])
			return withStore(opts, func(db *DB) error {
				err := db.WithTransaction(cmd.Context(), func(tx *Tx) error {
					return tx.SetMetadata(cmd.Context(), id, metadata)
				})
				if err != nil {
					return WrapExitError(ExitFailure, "failed to set metadata", err)
				}
				opts.Logger.Info("metadata replaced", "id", id)
				return newFormatter(opts, cmd).Success(documentView{ID: id, Metadata: metadata})
			})
		},
	}
}

// withStore opens the configured store for the duration of fn.
func withStore(opts *RootOptions, fn func(db *DB) error) error {
	db, err := openStore(opts)
	if err != nil {
		return err
	}
	defer closeStore(opts, db)
	return fn(db)
}

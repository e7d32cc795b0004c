package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fragdb/internal/hlc"
	"github.com/roach88/fragdb/internal/store"
)

// fragmentList is the output of append, fragments and since.
type fragmentList struct {
	DocumentID string         `json:"document_id"`
	Fragments  []fragmentView `json:"fragments"`
	Total      int            `json:"total"`
}

func newFragmentList(documentID string, frags []Fragment) fragmentList {
	return fragmentList{
		DocumentID: documentID,
		Fragments:  newFragmentViews(frags),
		Total:      len(frags),
	}
}

func (l fragmentList) WriteText(w io.Writer) error {
	if l.Total == 0 {
		_, err := fmt.Fprintf(w, "No fragments found for %s.\n", l.DocumentID)
		return err
	}
	for _, f := range l.Fragments {
		if _, err := fmt.Fprintf(w, "%s\t%q\n", f.Timestamp, f.Payload); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d fragment(s)\n", l.Total)
	return err
}

// NewAppendCommand creates the append command.
func NewAppendCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "append <document-id> <payload>...",
		Short: "Append fragments to a document",
		Long: `Append one fragment per payload to an existing document.

Each fragment is stamped by this replica's clock. The clock resumes after the
newest fragment already in the document, so new fragments always sort last.
All payloads are appended in one transaction: if any fails, none are kept.

Example:
  fragdb append notes/today "insert 0 hello" "insert 5 world"`,
		Args: minimumArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := normalizeID(args[0])
			if err != nil {
				return err
			}
			payloads := args[1:]

			return withStore(opts, func(db *DB) error {
				ctx := cmd.Context()
				frags, err := store.WithResult(ctx, db, func(tx *Tx) ([]Fragment, error) {
					if _, err := tx.GetDocument(ctx, id); err != nil {
						return nil, err
					}

					latest, err := latestTimestamp(ctx, tx, id)
					if err != nil {
						return nil, err
					}
					clock, err := newClock(opts, latest)
					if err != nil {
						return nil, err
					}

					frags := make([]Fragment, 0, len(payloads))
					for _, p := range payloads {
						ts, err := clock.Now()
						if err != nil {
							return nil, err
						}
						frags = append(frags, Fragment{DocumentID: id, Timestamp: ts, Payload: []byte(p)})
					}
					return frags, tx.AddFragments(ctx, frags...)
				})
				if err != nil {
					return WrapExitError(ExitFailure, "failed to append fragments", err)
				}

				opts.Logger.Info("fragments appended", "document", id, "count", len(frags))
				return newFormatter(opts, cmd).Success(newFragmentList(id, frags))
			})
		},
	}
}

// latestTimestamp returns the greatest timestamp stored for a document,
// or the zero Timestamp if it has no fragments.
func latestTimestamp(ctx context.Context, tx *Tx, documentID string) (hlc.Timestamp, error) {
	var latest hlc.Timestamp
	err := tx.OnEachFragment(ctx, documentID, func(f Fragment) error {
		if f.Timestamp.Compare(latest) > 0 {
			latest = f.Timestamp
		}
		return nil
	})
	return latest, err
}

// NewFragmentsCommand creates the fragments command.
func NewFragmentsCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "fragments <document-id>",
		Short: "List the fragments of a document in timestamp order",
		Long: `List the fragments of a document in timestamp order.

With --limit, the scan stops after that many fragments instead of reading
the whole log.

Examples:
  fragdb fragments notes/today
  fragdb fragments notes/today --limit 10 --format json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := normalizeID(args[0])
			if err != nil {
				return err
			}
			if limit < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --limit %d", limit))
			}

			return withStore(opts, func(db *DB) error {
				ctx := cmd.Context()
				frags, err := store.WithResult(ctx, db, func(tx *Tx) ([]Fragment, error) {
					if limit == 0 {
						return tx.GetFragments(ctx, id)
					}
					frags := make([]Fragment, 0, min(limit, 256))
					err := tx.OnEachFragment(ctx, id, func(f Fragment) error {
						frags = append(frags, f)
						if len(frags) == limit {
							return store.ErrStopIteration
						}
						return nil
					})
					return frags, err
				})
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read fragments", err)
				}
				return newFormatter(opts, cmd).Success(newFragmentList(id, frags))
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many fragments (0 = all)")

	return cmd
}

// NewSinceCommand creates the since command.
func NewSinceCommand(opts *RootOptions) *cobra.Command {
	var exclude string

	cmd := &cobra.Command{
		Use:   "since <document-id> <timestamp>",
		Short: "List fragments at or after a timestamp",
		Long: `List the fragments of a document stamped at or after a timestamp,
leaving out those produced by the replica given with --exclude.

This is the query a replica runs to find what a peer has not seen yet: the
bound is inclusive, and the peer's own fragments are skipped.

Example:
  fragdb since notes/today 2024-01-02T03:04:05.006Z-0000-0123456789abcdef \
    --exclude 0123456789abcdef`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := normalizeID(args[0])
			if err != nil {
				return err
			}
			since, err := parseTimestamp(args[1])
			if err != nil {
				return err
			}
			if exclude != "" {
				if err := hlc.ValidateNodeID(exclude); err != nil {
					return WrapExitError(ExitCommandError, "invalid --exclude", err)
				}
			}

			return withStore(opts, func(db *DB) error {
				ctx := cmd.Context()
				frags, err := store.WithResult(ctx, db, func(tx *Tx) ([]Fragment, error) {
					return tx.GetFragmentsSince(ctx, id, since, exclude)
				})
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read fragments", err)
				}
				return newFormatter(opts, cmd).Success(newFragmentList(id, frags))
			})
		},
	}

	cmd.Flags().StringVar(&exclude, "exclude", "", "origin node id to leave out")

	return cmd
}

package cli

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/fragdb/internal/hlc"
	"github.com/roach88/fragdb/internal/store"
)

// DB is the store type every command works with.
type DB = store.DB[hlc.Timestamp]

// Tx is a transaction over DB.
type Tx = store.Tx[hlc.Timestamp]

// Fragment is a fragment stamped with an hlc timestamp.
type Fragment = store.Fragment[hlc.Timestamp]

// openStore opens the configured store, attaching metrics when --metrics is set.
func openStore(opts *RootOptions) (*DB, error) {
	storeOpts := append(opts.Config.StoreOptions(), store.WithLogger(opts.Logger))
	if opts.registry != nil {
		m, err := store.NewMetrics(opts.registry)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		storeOpts = append(storeOpts, store.WithMetrics(m))
	}

	opts.Logger.Debug("opening store", "data_dir", opts.Config.DataDir, "store", opts.Config.Store)
	db, err := store.OpenNamed(opts.Config.DataDir, opts.Config.Store, hlc.Parse, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return db, nil
}

// closeStore closes db, logging instead of failing the command.
func closeStore(opts *RootOptions, db *DB) {
	if err := db.Close(); err != nil {
		opts.Logger.Error("error closing store", "error", err)
	}
}

// normalizeID returns a document id in Unicode NFC, so ids typed on
// different systems address the same document.
func normalizeID(id string) (string, error) {
	id = norm.NFC.String(strings.TrimSpace(id))
	if id == "" {
		return "", NewExitError(ExitCommandError, "document id is empty")
	}
	return id, nil
}

// nodeID returns the configured replica id, or a fresh one for this process.
func nodeID(opts *RootOptions) string {
	if opts.Config.NodeID != "" {
		return opts.Config.NodeID
	}
	id := hlc.NewNodeID()
	opts.Logger.Warn("no node_id configured, using a temporary one", "node_id", id)
	return id
}

// newClock returns a clock for this replica that issues timestamps after last.
func newClock(opts *RootOptions, last hlc.Timestamp) (*hlc.Clock, error) {
	clockOpts := []hlc.Option{hlc.WithLast(last)}
	if opts.now != nil {
		clockOpts = append(clockOpts, hlc.WithWallClock(opts.now))
	}
	clock, err := hlc.NewClock(nodeID(opts), clockOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid node id", err)
	}
	return clock, nil
}

// parseTimestamp reads a timestamp argument.
func parseTimestamp(s string) (hlc.Timestamp, error) {
	ts, err := hlc.Parse(strings.TrimSpace(s))
	if err != nil {
		return hlc.Timestamp{}, WrapExitError(ExitCommandError, "invalid timestamp", err)
	}
	return ts, nil
}

// fragmentView is the output form of a fragment.
type fragmentView struct {
	DocumentID string `json:"document_id"`
	Timestamp  string `json:"timestamp"`
	Origin     string `json:"origin"`
	Time       string `json:"time"`
	Payload    []byte `json:"payload"`
}

func newFragmentView(f Fragment) fragmentView {
	return fragmentView{
		DocumentID: f.DocumentID,
		Timestamp:  f.Timestamp.String(),
		Origin:     f.Timestamp.Origin(),
		Time:       f.Timestamp.Time().Format(time.RFC3339Nano),
		Payload:    f.Payload,
	}
}

func newFragmentViews(frags []Fragment) []fragmentView {
	views := make([]fragmentView, 0, len(frags))
	for _, f := range frags {
		views = append(views, newFragmentView(f))
	}
	return views
}

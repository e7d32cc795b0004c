package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fragdb/internal/hlc"
	"github.com/roach88/fragdb/internal/testutil"
)

// Replica ids used as fragment origins.
const (
	nodeA = testutil.ReplicaA
	nodeB = testutil.ReplicaB
	nodeC = testutil.ReplicaC
)

// createTestDB opens an isolated store in the test's temp dir.
func createTestDB(t *testing.T, opts ...Option) *DB[hlc.Timestamp] {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, hlc.Parse, opts...)
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { db.Close() })
	return db
}

// frag builds a fragment stamped ms after testutil.Epoch by node.
func frag(documentID string, ms int64, node string, payload string) Fragment[hlc.Timestamp] {
	return Fragment[hlc.Timestamp]{
		DocumentID: documentID,
		Timestamp:  testutil.Stamp(ms, 0, node),
		Payload:    []byte(payload),
	}
}

// seed commits documents and fragments in one transaction.
func seed(t *testing.T, db *DB[hlc.Timestamp], docs []Document, frags ...Fragment[hlc.Timestamp]) {
	t.Helper()
	ctx := context.Background()
	err := db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		for _, d := range docs {
			if err := tx.AddDocument(ctx, d.ID, d.Metadata); err != nil {
				return err
			}
		}
		return tx.AddFragments(ctx, frags...)
	})
	require.NoError(t, err, "seed failed")
}

// readFragments returns the committed fragments of a document.
func readFragments(t *testing.T, db *DB[hlc.Timestamp], documentID string) []Fragment[hlc.Timestamp] {
	t.Helper()
	ctx := context.Background()
	frags, err := WithResult(ctx, db, func(tx *Tx[hlc.Timestamp]) ([]Fragment[hlc.Timestamp], error) {
		return tx.GetFragments(ctx, documentID)
	})
	require.NoError(t, err)
	return frags
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fragdb/internal/hlc"
)

func TestAddDocument(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		return tx.AddDocument(ctx, "doc1", []byte(`{"title":"notes"}`))
	}))

	doc, err := WithResult(ctx, db, func(tx *Tx[hlc.Timestamp]) (Document, error) {
		return tx.GetDocument(ctx, "doc1")
	})
	require.NoError(t, err)
	assert.Equal(t, "doc1", doc.ID)
	assert.Equal(t, []byte(`{"title":"notes"}`), doc.Metadata)
}

func TestAddDocument_NilMetadataStoredEmpty(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	seed(t, db, []Document{{ID: "doc1"}})

	doc, err := WithResult(ctx, db, func(tx *Tx[hlc.Timestamp]) (Document, error) {
		return tx.GetDocument(ctx, "doc1")
	})
	require.NoError(t, err)
	assert.Empty(t, doc.Metadata)
}

func TestAddDocument_Conflict(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	seed(t, db, []Document{{ID: "doc1", Metadata: []byte("original")}})

	err := db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		return tx.AddDocument(ctx, "doc1", []byte("replacement"))
	})
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "doc1", se.Key)

	doc, err := WithResult(ctx, db, func(tx *Tx[hlc.Timestamp]) (Document, error) {
		return tx.GetDocument(ctx, "doc1")
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), doc.Metadata, "conflicting insert must not overwrite")
}

func TestAddDocument_ConflictWithinTransaction(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		if err := tx.AddDocument(ctx, "doc1", nil); err != nil {
			return err
		}
		return tx.AddDocument(ctx, "doc1", nil)
	})
	assert.True(t, IsConflict(err))

	docs, err := WithResult(ctx, db, func(tx *Tx[hlc.Timestamp]) ([]Document, error) {
		return tx.GetDocuments(ctx)
	})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSetMetadata(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	seed(t, db, []Document{{ID: "doc1", Metadata: []byte("v1")}}, frag("doc1", 1, nodeA, "p"))

	require.NoError(t, db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		return tx.SetMetadata(ctx, "doc1", []byte("v2"))
	}))

	doc, err := WithResult(ctx, db, func(tx *Tx[hlc.Timestamp]) (Document, error) {
		return tx.GetDocument(ctx, "doc1")
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), doc.Metadata)
	assert.Len(t, readFragments(t, db, "doc1"), 1, "fragments are untouched")
}

func TestSetMetadata_VisibleLaterInSameTransaction(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	seed(t, db, []Document{{ID: "doc1", Metadata: []byte("v1")}})

	doc, err := WithResult(ctx, db, func(tx *Tx[hlc.Timestamp]) (Document, error) {
		if err := tx.SetMetadata(ctx, "doc1", []byte("v2")); err != nil {
			return Document{}, err
		}
		return tx.GetDocument(ctx, "doc1")
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), doc.Metadata)
}

func TestSetMetadata_NotFound(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	seed(t, db, []Document{{ID: "doc1", Metadata: []byte("v1")}})

	err := db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		return tx.SetMetadata(ctx, "missing", []byte("v2"))
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	docs, err := WithResult(ctx, db, func(tx *Tx[hlc.Timestamp]) ([]Document, error) {
		return tx.GetDocuments(ctx)
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []byte("v1"), docs[0].Metadata)
}

func TestSetMetadata_NotFoundLeavesTransactionUsable(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		if err := tx.SetMetadata(ctx, "doc1", []byte("v1")); !IsNotFound(err) {
			return err
		}
		return tx.AddDocument(ctx, "doc1", []byte("v1"))
	})
	require.NoError(t, err)

	doc, err := WithResult(ctx, db, func(tx *Tx[hlc.Timestamp]) (Document, error) {
		return tx.GetDocument(ctx, "doc1")
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), doc.Metadata)
}

func TestAddFragments(t *testing.T) {
	db := createTestDB(t)
	seed(t, db, []Document{{ID: "doc1"}},
		frag("doc1", 3, nodeA, "third"),
		frag("doc1", 1, nodeB, "first"),
		frag("doc1", 2, nodeC, "second"),
	)

	frags := readFragments(t, db, "doc1")
	require.Len(t, frags, 3)
	assert.Equal(t, []byte("first"), frags[0].Payload)
	assert.Equal(t, []byte("second"), frags[1].Payload)
	assert.Equal(t, []byte("third"), frags[2].Payload)
	assert.Equal(t, nodeB, frags[0].Timestamp.Origin())
}

func TestAddFragments_Empty(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		return tx.AddFragments(ctx)
	}))
}

func TestAddFragments_SameTimeDifferentDocuments(t *testing.T) {
	db := createTestDB(t)
	seed(t, db, []Document{{ID: "doc1"}, {ID: "doc2"}},
		frag("doc1", 1, nodeA, "one"),
		frag("doc2", 1, nodeA, "two"),
	)

	assert.Len(t, readFragments(t, db, "doc1"), 1)
	assert.Len(t, readFragments(t, db, "doc2"), 1)
}

func TestAddFragments_DuplicateAbortsWholeCall(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	seed(t, db, []Document{{ID: "doc1"}}, frag("doc1", 2, nodeA, "existing"))

	err := db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		return tx.AddFragments(ctx,
			frag("doc1", 1, nodeA, "new"),
			frag("doc1", 2, nodeA, "dup"),
			frag("doc1", 3, nodeA, "never"),
		)
	})
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, fragmentKey("doc1", stampA(2).String()), se.Key)

	frags := readFragments(t, db, "doc1")
	require.Len(t, frags, 1)
	assert.Equal(t, []byte("existing"), frags[0].Payload, "stored payload must not be overwritten")
}

func TestAddFragments_DuplicateWithinOneCall(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	seed(t, db, []Document{{ID: "doc1"}})

	err := db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		return tx.AddFragments(ctx, frag("doc1", 1, nodeA, "a"), frag("doc1", 1, nodeA, "b"))
	})
	assert.True(t, IsConflict(err))
	assert.Empty(t, readFragments(t, db, "doc1"))
}

func TestAddFragments_RejectsUnreadableTimestamp(t *testing.T) {
	tests := []struct {
		name string
		ts   hlc.Timestamp
	}{
		{"empty node", hlc.Timestamp{Millis: 5}},
		{"short node", hlc.Timestamp{Millis: 5, Node: "abc"}},
		{"year past 9999", hlc.Timestamp{
			Millis: time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
			Node:   nodeA,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := createTestDB(t)
			ctx := context.Background()
			seed(t, db, []Document{{ID: "doc1"}}, frag("doc1", 1, nodeA, "kept"))

			err := db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
				return tx.AddFragments(ctx, Fragment[hlc.Timestamp]{
					DocumentID: "doc1",
					Timestamp:  tt.ts,
					Payload:    []byte("bad"),
				})
			})
			require.Error(t, err)
			assert.True(t, IsInvalidTimestamp(err))

			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, fragmentKey("doc1", tt.ts.String()), se.Key)

			frags := readFragments(t, db, "doc1")
			require.Len(t, frags, 1, "the document log must stay readable")
			assert.Equal(t, []byte("kept"), frags[0].Payload)
		})
	}
}

func TestAddFragments_InvalidTimestampAbortsTransaction(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	seed(t, db, []Document{{ID: "doc1"}})

	err := db.WithTransaction(ctx, func(tx *Tx[hlc.Timestamp]) error {
		if err := tx.AddFragments(ctx, frag("doc1", 1, nodeA, "good")); err != nil {
			return err
		}
		_ = tx.AddFragments(ctx, Fragment[hlc.Timestamp]{DocumentID: "doc1"})
		return nil
	})
	assert.True(t, IsInvalidTimestamp(err))
	assert.Empty(t, readFragments(t, db, "doc1"))
}

// stampA is the timestamp frag assigns to ms on nodeA.
func stampA(ms int64) hlc.Timestamp {
	return frag("", ms, nodeA, "").Timestamp
}

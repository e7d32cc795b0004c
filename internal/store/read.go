package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetDocument retrieves a single document by id.
// Returns a NOT_FOUND error if absent.
func (t *Tx[T]) GetDocument(ctx context.Context, id string) (Document, error) {
	if err := t.check(); err != nil {
		return Document{}, err
	}

	doc, err := t.readDocument(ctx, "get document", id)
	if err != nil {
		return Document{}, t.failUnlessNotFound(err)
	}
	return doc, nil
}

// GetDocuments returns every document ordered by id.
//
// Returns an empty slice (not nil) if the store has no documents.
func (t *Tx[T]) GetDocuments(ctx context.Context) ([]Document, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, metadata
		FROM documents
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, t.fail(fmt.Errorf("query documents: %w", err))
	}
	defer rows.Close()

	documents := []Document{}
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Metadata); err != nil {
			return nil, t.fail(fmt.Errorf("scan document: %w", err))
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, t.fail(fmt.Errorf("iterate documents: %w", err))
	}

	return documents, nil
}

// GetFragments returns every fragment of a document in store order
// (ascending stored timestamp).
//
// Returns an empty slice (not nil) if the document has no fragments.
func (t *Tx[T]) GetFragments(ctx context.Context, documentID string) ([]Fragment[T], error) {
	fragments := []Fragment[T]{}
	err := t.scan(ctx, "get fragments", documentID, func(f Fragment[T]) error {
		fragments = append(fragments, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fragments, nil
}

// GetFragmentsSince returns the fragments of a document whose timestamp is
// at or after since and whose origin is not excludeOrigin, in scan order.
//
// Every fragment of the document is scanned and its stored timestamp parsed;
// there is no timestamp index. The bound is inclusive: a fragment stamped
// exactly since is returned unless it came from excludeOrigin.
func (t *Tx[T]) GetFragmentsSince(ctx context.Context, documentID string, since T, excludeOrigin string) ([]Fragment[T], error) {
	fragments := []Fragment[T]{}
	err := t.scan(ctx, "get fragments since", documentID, func(f Fragment[T]) error {
		if f.Timestamp.Compare(since) >= 0 && f.Timestamp.Origin() != excludeOrigin {
			fragments = append(fragments, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fragments, nil
}

// OnEachFragment calls visit once per fragment of a document, in store order,
// without holding the fragment set in memory. Each call returns before the
// next row is read.
//
// A document without fragments produces zero calls and a nil error.
// If visit returns ErrStopIteration the scan ends and OnEachFragment returns
// nil; any other visit error ends the scan and is returned unchanged.
func (t *Tx[T]) OnEachFragment(ctx context.Context, documentID string, visit func(Fragment[T]) error) error {
	err := t.scan(ctx, "each fragment", documentID, visit)
	if errors.Is(err, ErrStopIteration) {
		return nil
	}
	return err
}

// readDocument loads one document row. Caller has already run check.
func (t *Tx[T]) readDocument(ctx context.Context, op, id string) (Document, error) {
	var doc Document
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, metadata
		FROM documents
		WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, notFoundError(op, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc, nil
}

// scan streams the fragments of one document through the document_id index.
//
// Storage and decoding failures abort the transaction. Errors returned by
// visit are handed back untouched and do not; the caller decides whether
// they end the transaction.
func (t *Tx[T]) scan(ctx context.Context, op, documentID string, visit func(Fragment[T]) error) error {
	if err := t.check(); err != nil {
		return err
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT document_id, timestamp, payload
		FROM fragments
		WHERE document_id = ?
		ORDER BY timestamp ASC
	`, documentID)
	if err != nil {
		return t.fail(fmt.Errorf("%s: query: %w", op, err))
	}
	defer rows.Close()

	for rows.Next() {
		f, err := t.scanFragment(op, rows)
		if err != nil {
			return t.fail(err)
		}
		t.scanned++

		if err := visit(f); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return t.fail(fmt.Errorf("%s: iterate: %w", op, err))
	}
	return nil
}

// scanFragment decodes the current row, parsing the stored timestamp.
func (t *Tx[T]) scanFragment(op string, rows *sql.Rows) (Fragment[T], error) {
	var f Fragment[T]
	var raw string
	if err := rows.Scan(&f.DocumentID, &raw, &f.Payload); err != nil {
		return Fragment[T]{}, fmt.Errorf("%s: scan fragment: %w", op, err)
	}

	ts, err := t.db.parse(raw)
	if err != nil {
		return Fragment[T]{}, &Error{
			Code: ErrCodeCorrupt,
			Op:   op,
			Key:  fragmentKey(f.DocumentID, raw),
			Err:  err,
		}
	}
	f.Timestamp = ts
	return f, nil
}

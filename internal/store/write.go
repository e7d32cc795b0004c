package store

import (
	"context"
	"fmt"
)

// AddDocument inserts a new document.
// Fails with a CONFLICT error if id already exists.
func (t *Tx[T]) AddDocument(ctx context.Context, id string, metadata []byte) error {
	if err := t.check(); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO documents (id, metadata)
		VALUES (?, ?)
	`, id, blob(metadata))
	if err != nil {
		if isConstraintViolation(err) {
			return t.fail(conflictError("add document", id, err))
		}
		return t.fail(fmt.Errorf("add document: %w", err))
	}

	return nil
}

// SetMetadata replaces the metadata of an existing document.
// Fails with a NOT_FOUND error if id does not exist.
//
// This is read-modify-write: the stored record is read, its metadata is
// replaced, and the record is written back.
func (t *Tx[T]) SetMetadata(ctx context.Context, id string, metadata []byte) error {
	if err := t.check(); err != nil {
		return err
	}

	doc, err := t.readDocument(ctx, "set metadata", id)
	if err != nil {
		return t.failUnlessNotFound(err)
	}
	doc.Metadata = metadata

	_, err = t.tx.ExecContext(ctx, `
		UPDATE documents SET metadata = ? WHERE id = ?
	`, blob(doc.Metadata), doc.ID)
	if err != nil {
		return t.fail(fmt.Errorf("set metadata: %w", err))
	}

	return nil
}

// AddFragments inserts fragments in the given order.
//
// Each insert is add-only: an existing (document_id, timestamp) pair fails
// with a CONFLICT error instead of being overwritten. The first failure stops
// the call and aborts the transaction, so none of the fragments become
// visible.
//
// A timestamp whose stored form the store's ParseFunc cannot read back fails
// with INVALID_TIMESTAMP before anything is written for it.
//
// Note: The referenced documents are not checked; callers keep fragments
// attached to existing documents.
func (t *Tx[T]) AddFragments(ctx context.Context, fragments ...Fragment[T]) error {
	if err := t.check(); err != nil {
		return err
	}
	if len(fragments) == 0 {
		return nil
	}

	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO fragments (document_id, timestamp, payload)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return t.fail(fmt.Errorf("add fragments: prepare: %w", err))
	}
	defer stmt.Close()

	for _, f := range fragments {
		documentID, ts := f.Key()
		if err := t.checkStoredForm(documentID, ts); err != nil {
			return t.fail(err)
		}
		if _, err := stmt.ExecContext(ctx, documentID, ts, blob(f.Payload)); err != nil {
			if isConstraintViolation(err) {
				return t.fail(conflictError("add fragments", fragmentKey(documentID, ts), err))
			}
			return t.fail(fmt.Errorf("add fragments: %w", err))
		}
		t.appended++
	}

	return nil
}

// checkStoredForm rejects timestamps that a later scan could not decode.
func (t *Tx[T]) checkStoredForm(documentID, ts string) error {
	key := fragmentKey(documentID, ts)
	parsed, err := t.db.parse(ts)
	if err != nil {
		return &Error{Code: ErrCodeInvalidTimestamp, Op: "add fragments", Key: key, Err: err}
	}
	if back := parsed.String(); back != ts {
		return &Error{
			Code: ErrCodeInvalidTimestamp,
			Op:   "add fragments",
			Key:  key,
			Err:  fmt.Errorf("stored form reads back as %q", back),
		}
	}
	return nil
}

// blob maps nil to an empty slice so NOT NULL BLOB columns accept it.
func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

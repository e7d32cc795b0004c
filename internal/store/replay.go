package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DumpStats counts the records written or read by Dump and Restore.
type DumpStats struct {
	Documents int `json:"documents"`
	Fragments int `json:"fragments"`
}

// Dump writes every document followed by its fragments as JSON Lines,
// documents in id order and fragments in store order.
//
// Fragments are streamed with OnEachFragment, so a large document is never
// held in memory. Fragments whose document does not exist are not dumped.
func (t *Tx[T]) Dump(ctx context.Context, w io.Writer) (DumpStats, error) {
	docs, err := t.GetDocuments(ctx)
	if err != nil {
		return DumpStats{}, fmt.Errorf("dump: %w", err)
	}

	enc := newRecordEncoder(w)
	var stats DumpStats
	for _, doc := range docs {
		n, err := t.dumpDocument(ctx, enc, doc)
		stats.Documents++
		stats.Fragments += n
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// DumpDocument writes one document and its fragments as JSON Lines.
// Returns a NOT_FOUND error if the document does not exist.
func (t *Tx[T]) DumpDocument(ctx context.Context, w io.Writer, documentID string) (DumpStats, error) {
	doc, err := t.GetDocument(ctx, documentID)
	if err != nil {
		return DumpStats{}, err
	}

	n, err := t.dumpDocument(ctx, newRecordEncoder(w), doc)
	return DumpStats{Documents: 1, Fragments: n}, err
}

func (t *Tx[T]) dumpDocument(ctx context.Context, enc *json.Encoder, doc Document) (int, error) {
	if err := enc.Encode(documentRecord(doc)); err != nil {
		return 0, fmt.Errorf("dump document %q: %w", doc.ID, err)
	}

	count := 0
	err := t.OnEachFragment(ctx, doc.ID, func(f Fragment[T]) error {
		if err := enc.Encode(fragmentRecord(f)); err != nil {
			return fmt.Errorf("dump fragment %q: %w", fragmentKey(f.Key()), err)
		}
		count++
		return nil
	})
	return count, err
}

// Restore reads a Dump stream and inserts every record in stream order.
//
// Documents go through AddDocument and fragments through AddFragments, so
// an id or key already present fails with a CONFLICT error and, inside
// WithTransaction, nothing from the stream is kept.
func (t *Tx[T]) Restore(ctx context.Context, r io.Reader) (DumpStats, error) {
	dec := json.NewDecoder(r)
	var stats DumpStats

	for n := 1; ; n++ {
		var rec DumpRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("restore: record %d: %w", n, err)
		}
		if err := rec.validate(); err != nil {
			return stats, fmt.Errorf("restore: record %d: %w", n, err)
		}

		switch rec.Kind {
		case RecordDocument:
			if err := t.AddDocument(ctx, rec.DocumentID, rec.Metadata); err != nil {
				return stats, err
			}
			stats.Documents++
		case RecordFragment:
			ts, err := t.db.parse(rec.Timestamp)
			if err != nil {
				return stats, fmt.Errorf("restore: record %d: %w", n, err)
			}
			f := Fragment[T]{DocumentID: rec.DocumentID, Timestamp: ts, Payload: rec.Payload}
			if err := t.AddFragments(ctx, f); err != nil {
				return stats, err
			}
			stats.Fragments++
		}
	}
}

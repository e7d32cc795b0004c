package store

import (
	"encoding/json"
	"fmt"
	"io"
)

// Record kinds in a dump stream.
const (
	RecordDocument = "document"
	RecordFragment = "fragment"
)

// DumpRecord is one JSON line of a dump. Byte fields are base64 encoded.
type DumpRecord struct {
	Kind       string `json:"kind"`
	DocumentID string `json:"document_id"`
	Timestamp  string `json:"timestamp,omitempty"` // Fragments only
	Metadata   []byte `json:"metadata,omitempty"`  // Documents only
	Payload    []byte `json:"payload,omitempty"`   // Fragments only
}

func documentRecord(doc Document) DumpRecord {
	return DumpRecord{
		Kind:       RecordDocument,
		DocumentID: doc.ID,
		Metadata:   doc.Metadata,
	}
}

func fragmentRecord[T Timestamp[T]](f Fragment[T]) DumpRecord {
	return DumpRecord{
		Kind:       RecordFragment,
		DocumentID: f.DocumentID,
		Timestamp:  f.Timestamp.String(),
		Payload:    f.Payload,
	}
}

// newRecordEncoder returns an encoder writing one record per line.
// HTML escaping is disabled so document ids round-trip byte for byte.
func newRecordEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// validate checks the fields required by the record's kind.
func (r DumpRecord) validate() error {
	switch r.Kind {
	case RecordDocument:
		if r.Timestamp != "" || r.Payload != nil {
			return fmt.Errorf("document record %q carries fragment fields", r.DocumentID)
		}
	case RecordFragment:
		if r.Timestamp == "" {
			return fmt.Errorf("fragment record for %q has no timestamp", r.DocumentID)
		}
		if r.Metadata != nil {
			return fmt.Errorf("fragment record %q carries metadata", fragmentKey(r.DocumentID, r.Timestamp))
		}
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	return nil
}

package store

// Timestamp is the capability set the store needs from a logical timestamp.
// Implementations must be totally ordered, and String must sort the same way
// Compare does.
type Timestamp[T any] interface {
	// String returns the stored form.
	String() string

	// Origin returns the id of the replica that produced the timestamp.
	Origin() string

	// Compare returns -1, 0 or +1.
	Compare(other T) int
}

// ParseFunc reads a stored timestamp back into its typed form.
type ParseFunc[T any] func(string) (T, error)

// Document is one synchronized unit.
type Document struct {
	ID       string
	Metadata []byte // Opaque to the store
}

// Fragment is one immutable operation record of a document.
type Fragment[T Timestamp[T]] struct {
	DocumentID string
	Timestamp  T
	Payload    []byte // Opaque to the store
}

// Key returns the composite primary key in its stored form.
func (f Fragment[T]) Key() (documentID, timestamp string) {
	return f.DocumentID, f.Timestamp.String()
}

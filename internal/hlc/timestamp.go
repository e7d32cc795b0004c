package hlc

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// millisLayout is fixed width for years 0000-9999, which keeps String sortable.
const millisLayout = "2006-01-02T15:04:05.000Z"

// NodeIDLength is the number of lowercase hex characters in a node id.
const NodeIDLength = 16

// encodedLength is len(millis) + "-" + 4 hex counter + "-" + node.
const encodedLength = len(millisLayout) + 1 + 4 + 1 + NodeIDLength

// Range of Millis that millisLayout can encode.
var (
	minMillis = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	maxMillis = time.Date(9999, time.December, 31, 23, 59, 59, 999_000_000, time.UTC).UnixMilli()
)

// MaxCounter is the largest counter value a timestamp can carry.
const MaxCounter = 0xffff

// Timestamp is a hybrid logical timestamp.
type Timestamp struct {
	Millis  int64
	Counter uint16
	Node    string
}

// String returns the sortable stored form.
func (t Timestamp) String() string {
	return fmt.Sprintf("%s-%04x-%s",
		time.UnixMilli(t.Millis).UTC().Format(millisLayout),
		t.Counter,
		t.Node,
	)
}

// Origin returns the node id of the replica that produced the timestamp.
func (t Timestamp) Origin() string {
	return t.Node
}

// Compare orders by millis, then counter, then node id.
func (t Timestamp) Compare(other Timestamp) int {
	if c := cmp.Compare(t.Millis, other.Millis); c != 0 {
		return c
	}
	if c := cmp.Compare(t.Counter, other.Counter); c != 0 {
		return c
	}
	return strings.Compare(t.Node, other.Node)
}

// Time returns the physical component as a UTC time.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(t.Millis).UTC()
}

// IsZero reports whether t is the zero Timestamp.
func (t Timestamp) IsZero() bool {
	return t == Timestamp{}
}

// Validate reports whether t has a stored form that Parse accepts.
func (t Timestamp) Validate() error {
	if t.Millis < minMillis || t.Millis > maxMillis {
		return fmt.Errorf("timestamp millis %d outside years 0000-9999", t.Millis)
	}
	return ValidateNodeID(t.Node)
}

// MarshalText encodes t in its stored form.
func (t Timestamp) MarshalText() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes the stored form.
func (t *Timestamp) UnmarshalText(text []byte) error {
	ts, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = ts
	return nil
}

// Parse reads the stored form produced by String.
// Only the canonical encoding is accepted, so Parse(s).String() == s.
func Parse(s string) (Timestamp, error) {
	if len(s) != encodedLength {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: length %d, want %d", s, len(s), encodedLength)
	}

	millisEnd := len(millisLayout)
	counterEnd := millisEnd + 1 + 4
	if s[millisEnd] != '-' || s[counterEnd] != '-' {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: missing separator", s)
	}

	wall, err := time.Parse(millisLayout, s[:millisEnd])
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}

	counter, err := strconv.ParseUint(s[millisEnd+1:counterEnd], 16, 16)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: counter: %w", s, err)
	}

	node := s[counterEnd+1:]
	if err := ValidateNodeID(node); err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}

	ts := Timestamp{
		Millis:  wall.UnixMilli(),
		Counter: uint16(counter),
		Node:    node,
	}
	if ts.String() != s {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: not in canonical form", s)
	}
	return ts, nil
}

// MustParse is Parse for constants in tests and fixtures. It panics on error.
func MustParse(s string) Timestamp {
	ts, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ts
}

// ValidateNodeID checks that id is NodeIDLength lowercase hex characters.
func ValidateNodeID(id string) error {
	if len(id) != NodeIDLength {
		return fmt.Errorf("node id %q: length %d, want %d", id, len(id), NodeIDLength)
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("node id %q: invalid character %q", id, c)
		}
	}
	return nil
}

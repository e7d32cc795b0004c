package hlc

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxDrift bounds how far ahead of the wall clock a timestamp may be.
const DefaultMaxDrift = time.Minute

// Clock is a hybrid logical clock owned by one replica.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	mu       sync.Mutex
	node     string
	last     Timestamp
	wall     func() time.Time
	maxDrift time.Duration
}

// Option configures a Clock.
type Option func(*Clock)

// WithWallClock overrides time.Now. Used by tests.
func WithWallClock(now func() time.Time) Option {
	return func(c *Clock) {
		c.wall = now
	}
}

// WithMaxDrift overrides DefaultMaxDrift.
func WithMaxDrift(d time.Duration) Option {
	return func(c *Clock) {
		c.maxDrift = d
	}
}

// WithLast resumes the clock from a previously issued timestamp,
// e.g. the newest fragment found in the store at startup.
func WithLast(ts Timestamp) Option {
	return func(c *Clock) {
		c.last = Timestamp{Millis: ts.Millis, Counter: ts.Counter}
	}
}

// NewClock creates a clock for the given node id.
func NewClock(node string, opts ...Option) (*Clock, error) {
	if err := ValidateNodeID(node); err != nil {
		return nil, fmt.Errorf("new clock: %w", err)
	}
	c := &Clock{
		node:     node,
		wall:     time.Now,
		maxDrift: DefaultMaxDrift,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.last.Node = node
	return c, nil
}

// Node returns the clock's node id.
func (c *Clock) Node() string {
	return c.node
}

// Last returns the most recently issued timestamp without advancing.
func (c *Clock) Last() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Now returns a timestamp for a local event.
// Each call returns a timestamp strictly greater than every earlier one.
func (c *Clock) Now() (Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	phys := c.wall().UnixMilli()
	millis := max(c.last.Millis, phys)

	counter := 0
	if millis == c.last.Millis {
		counter = int(c.last.Counter) + 1
	}

	return c.advance(phys, millis, counter, Timestamp{})
}

// Observe merges a timestamp received from another replica and returns
// a local timestamp greater than both it and every earlier local timestamp.
func (c *Clock) Observe(remote Timestamp) (Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remote.Node == c.node {
		return Timestamp{}, &ClockError{
			Code:    ErrCodeDuplicateNode,
			Message: "remote timestamp carries this clock's node id",
			Remote:  remote,
		}
	}

	phys := c.wall().UnixMilli()
	if ahead := time.Duration(remote.Millis-phys) * time.Millisecond; ahead > c.maxDrift {
		return Timestamp{}, newDriftError(ahead, c.maxDrift, remote)
	}

	millis := max(c.last.Millis, phys, remote.Millis)

	var counter int
	switch {
	case millis == c.last.Millis && millis == remote.Millis:
		counter = int(max(c.last.Counter, remote.Counter)) + 1
	case millis == c.last.Millis:
		counter = int(c.last.Counter) + 1
	case millis == remote.Millis:
		counter = int(remote.Counter) + 1
	}

	return c.advance(phys, millis, counter, remote)
}

// advance validates and records the next timestamp. Caller holds c.mu.
func (c *Clock) advance(phys, millis int64, counter int, remote Timestamp) (Timestamp, error) {
	if ahead := time.Duration(millis-phys) * time.Millisecond; ahead > c.maxDrift {
		return Timestamp{}, newDriftError(ahead, c.maxDrift, remote)
	}
	if counter > MaxCounter {
		return Timestamp{}, newOverflowError(remote)
	}

	c.last = Timestamp{
		Millis:  millis,
		Counter: uint16(counter),
		Node:    c.node,
	}
	return c.last, nil
}

// NewNodeID returns a random node id taken from the random bits of a UUIDv7.
func NewNodeID() string {
	u := uuid.Must(uuid.NewV7())
	return hex.EncodeToString(u[8:])
}

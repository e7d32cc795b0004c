package testutil

import (
	"time"

	"github.com/roach88/fragdb/internal/hlc"
)

// Fixed node ids for tests. They sort ReplicaA < ReplicaB < ReplicaC.
const (
	ReplicaA = "00000000000000aa"
	ReplicaB = "00000000000000bb"
	ReplicaC = "00000000000000cc"
)

// Stamp builds a timestamp offset ms milliseconds after Epoch.
func Stamp(ms int64, counter uint16, node string) hlc.Timestamp {
	return hlc.Timestamp{
		Millis:  Epoch.Add(time.Duration(ms) * time.Millisecond).UnixMilli(),
		Counter: counter,
		Node:    node,
	}
}

// NewReplicaClock returns an hlc.Clock for node driven by wall.
// Panics if node is not a valid node id.
func NewReplicaClock(node string, wall *ManualClock) *hlc.Clock {
	c, err := hlc.NewClock(node, hlc.WithWallClock(wall.Now))
	if err != nil {
		panic(err)
	}
	return c
}

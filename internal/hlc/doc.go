// Package hlc implements a hybrid logical clock used to stamp fragments.
//
// A Timestamp combines wall-clock milliseconds, a 16-bit counter and the
// node id of the replica that produced it. Its string form sorts the same
// way Compare orders timestamps:
//
//	2024-01-02T03:04:05.006Z-000a-0123456789abcdef
//	└──────── millis ──────┘ └ctr┘ └─── node ───┘
//
// The store only relies on three capabilities of a timestamp: String, Origin
// and Compare, plus Parse to read the stored form back. Nothing in this
// package depends on the store.
//
// # Clock rules
//
//   - Now stamps a local event: max(last, wall), counter bumped on ties.
//   - Observe merges a remote timestamp: max(last, wall, remote), counter
//     bumped past whichever inputs share the winning millis.
//   - Timestamps more than MaxDrift ahead of the wall clock are rejected.
//   - A counter past 0xffff is rejected rather than wrapped.
package hlc

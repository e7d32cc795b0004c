// Package store provides SQLite-backed durable storage for documents and
// their append-only fragment logs.
//
// The store holds two collections:
//   - Documents: keyed by caller-assigned id, carrying opaque metadata
//   - Fragments: keyed by (document_id, timestamp), carrying an opaque payload,
//     with a non-unique secondary index on document_id
//
// Timestamps are opaque to the store. It only needs the capabilities in the
// Timestamp constraint: a sortable string form, the origin replica, and a
// total order. The DB is parameterised by the concrete timestamp type and
// a ParseFunc that reads the stored form back.
//
// # Transactions
//
// Every read and write goes through a Tx obtained from DB.WithTransaction.
// All operations inside one WithTransaction call commit together or none do:
//   - body returns an error: rollback, the error is returned unchanged
//   - an operation fails but body returns nil: rollback, the first
//     operation failure is returned. A NOT_FOUND lookup is not a failure
//     here; the transaction stays usable.
//   - body panics: rollback, the panic continues
//
// A Tx is only valid inside the call that created it. Later use returns
// ErrTxClosed.
//
// # Causal filter
//
// GetFragmentsSince scans every fragment of a document and keeps those with
// timestamp >= since whose origin differs from the excluded replica. The
// lower bound is inclusive; callers own the watermark policy.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL by default: Balance durability/performance
//   - busy_timeout=5000 by default: Wait for locks up to 5 seconds
//   - One open connection: concurrent transactions queue on the pool
//
// Schema versioning uses PRAGMA user_version. A file written by a newer
// schema is refused with a SCHEMA_MISMATCH error.
package store

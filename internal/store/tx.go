package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

const (
	outcomeCommit   = "commit"
	outcomeRollback = "rollback"
)

// Tx is a read-write unit of work over documents and fragments.
// It is only valid inside the WithTransaction call that created it.
type Tx[T Timestamp[T]] struct {
	tx   *sql.Tx
	db   *DB[T]
	done atomic.Bool

	// failed is the first operation error; it forces rollback.
	failed error

	appended int
	scanned  int
}

// WithTransaction runs body inside one transaction spanning both collections.
//
// If body returns nil and no operation failed, the transaction commits.
// Otherwise it rolls back: a body error is returned unchanged, and an
// operation failure the body swallowed is returned in its place. A panic in
// body rolls back and keeps unwinding.
//
// WithTransaction returns only after the commit or rollback has finished.
//
// Transactions on one DB run one at a time over a single connection. Calling
// WithTransaction on the same DB from inside body waits for the outer
// transaction to finish, so it never returns unless ctx carries a deadline or
// is canceled. Do the nested work through the outer Tx instead.
func (d *DB[T]) WithTransaction(ctx context.Context, body func(tx *Tx[T]) error) error {
	start := time.Now()

	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Code: ErrCodeTxFailed, Op: "begin transaction", Err: err}
	}

	tx := &Tx[T]{tx: sqlTx, db: d}
	committed := false
	defer func() {
		tx.done.Store(true)
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			d.logger.Warn("rollback failed", "error", rbErr)
		}
		d.metrics.observeTx(outcomeRollback, start, tx.appended, tx.scanned)
		d.logger.Debug("transaction rolled back", "duration", time.Since(start))
	}()

	if err := body(tx); err != nil {
		return err
	}
	if tx.failed != nil {
		return tx.failed
	}

	if err := sqlTx.Commit(); err != nil {
		return &Error{Code: ErrCodeTxFailed, Op: "commit", Err: err}
	}
	committed = true

	d.metrics.observeTx(outcomeCommit, start, tx.appended, tx.scanned)
	d.logger.Debug("transaction committed",
		"duration", time.Since(start),
		"appended", tx.appended,
		"scanned", tx.scanned,
	)
	return nil
}

// WithResult is WithTransaction for bodies that produce a value.
// The value is returned only if the transaction commits.
func WithResult[T Timestamp[T], R any](ctx context.Context, d *DB[T], body func(tx *Tx[T]) (R, error)) (R, error) {
	var out R
	err := d.WithTransaction(ctx, func(tx *Tx[T]) error {
		r, err := body(tx)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}

// check guards every operation against use after finish or after a failure.
func (t *Tx[T]) check() error {
	if t.done.Load() {
		return ErrTxClosed
	}
	if t.failed != nil {
		return fmt.Errorf("%w: %w", ErrTxAborted, t.failed)
	}
	return nil
}

// fail records the first operation failure and returns err.
func (t *Tx[T]) fail(err error) error {
	if t.failed == nil {
		t.failed = err
	}
	return err
}

// failUnlessNotFound records err unless it is a NOT_FOUND lookup, which has
// no side effects and leaves the transaction usable.
func (t *Tx[T]) failUnlessNotFound(err error) error {
	if IsNotFound(err) {
		return err
	}
	return t.fail(err)
}

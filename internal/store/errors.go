package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Error represents a store failure the caller is expected to act on.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed, e.g. "add document".
	Op string

	// Key identifies the record involved, if any.
	Key string

	// Err is the underlying driver error, if any.
	Err error
}

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the requested document does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict indicates an insert whose primary key already exists.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeSchemaMismatch indicates the database file has an incompatible schema.
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// ErrCodeTxFailed indicates the transaction could not begin or commit.
	ErrCodeTxFailed ErrorCode = "TX_FAILED"

	// ErrCodeCorrupt indicates a stored value could not be decoded.
	ErrCodeCorrupt ErrorCode = "CORRUPT"

	// ErrCodeInvalidTimestamp indicates a fragment timestamp whose stored form
	// does not parse back to the same value.
	ErrCodeInvalidTimestamp ErrorCode = "INVALID_TIMESTAMP"
)

var (
	// ErrTxClosed is returned when a Tx is used after its WithTransaction returned.
	ErrTxClosed = errors.New("store: transaction already finished")

	// ErrTxAborted is returned by operations after an earlier operation in the
	// same transaction failed.
	ErrTxAborted = errors.New("store: transaction aborted by an earlier failure")

	// ErrStopIteration may be returned from an OnEachFragment visitor to end
	// the scan early. OnEachFragment then returns nil.
	ErrStopIteration = errors.New("store: stop iteration")
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Code)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key=%s)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error is a NOT_FOUND store error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsConflict returns true if the error is a CONFLICT store error.
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsSchemaMismatch returns true if the error is a SCHEMA_MISMATCH store error.
func IsSchemaMismatch(err error) bool {
	return hasCode(err, ErrCodeSchemaMismatch)
}

// IsCorrupt returns true if the error is a CORRUPT store error.
func IsCorrupt(err error) bool {
	return hasCode(err, ErrCodeCorrupt)
}

// IsInvalidTimestamp returns true if the error is an INVALID_TIMESTAMP store error.
func IsInvalidTimestamp(err error) bool {
	return hasCode(err, ErrCodeInvalidTimestamp)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func notFoundError(op, key string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, Key: key}
}

func conflictError(op, key string, err error) *Error {
	return &Error{Code: ErrCodeConflict, Op: op, Key: key, Err: err}
}

// isConstraintViolation reports whether err is a SQLite primary key or
// unique constraint failure.
func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// fragmentKey renders the composite fragment key for error messages.
func fragmentKey(documentID, timestamp string) string {
	return documentID + "@" + timestamp
}

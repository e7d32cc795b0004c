package hlc

import (
	"errors"
	"fmt"
	"time"
)

// ClockError represents a timestamp the clock refused to produce or accept.
type ClockError struct {
	// Code identifies the error category.
	Code ClockErrorCode

	// Message is a human-readable description.
	Message string

	// Remote is the offending remote timestamp, if any.
	Remote Timestamp
}

// ClockErrorCode categorizes clock errors.
type ClockErrorCode string

const (
	// ErrCodeDrift indicates a timestamp too far ahead of the wall clock.
	ErrCodeDrift ClockErrorCode = "CLOCK_DRIFT"

	// ErrCodeCounterOverflow indicates more than MaxCounter events in one millisecond.
	ErrCodeCounterOverflow ClockErrorCode = "COUNTER_OVERFLOW"

	// ErrCodeDuplicateNode indicates a remote timestamp carrying our own node id.
	ErrCodeDuplicateNode ClockErrorCode = "DUPLICATE_NODE"
)

// Error implements the error interface.
func (e *ClockError) Error() string {
	if !e.Remote.IsZero() {
		return fmt.Sprintf("%s: %s (remote=%s)", e.Code, e.Message, e.Remote)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDriftError returns true if the error is a clock drift error.
func IsDriftError(err error) bool {
	return hasCode(err, ErrCodeDrift)
}

// IsOverflowError returns true if the error is a counter overflow error.
func IsOverflowError(err error) bool {
	return hasCode(err, ErrCodeCounterOverflow)
}

// IsDuplicateNodeError returns true if the error is a duplicate node error.
func IsDuplicateNodeError(err error) bool {
	return hasCode(err, ErrCodeDuplicateNode)
}

func hasCode(err error, code ClockErrorCode) bool {
	var ce *ClockError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func newDriftError(ahead, maxDrift time.Duration, remote Timestamp) *ClockError {
	return &ClockError{
		Code:    ErrCodeDrift,
		Message: fmt.Sprintf("timestamp is %s ahead of wall clock (max %s)", ahead, maxDrift),
		Remote:  remote,
	}
}

func newOverflowError(remote Timestamp) *ClockError {
	return &ClockError{
		Code:    ErrCodeCounterOverflow,
		Message: fmt.Sprintf("counter exceeds %d within one millisecond", MaxCounter),
		Remote:  remote,
	}
}

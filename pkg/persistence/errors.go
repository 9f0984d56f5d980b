// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrInvalidRecord indicates a record is missing the fields that identify it.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrCorruptRecord indicates a stored record could not be decoded.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrUnhealthy indicates the backing store is not reachable.
	ErrUnhealthy = errors.New("persistence unhealthy")
)

// RecordError wraps repository errors with the operation and record that failed.
type RecordError struct {
	Op     string // Operation being performed (e.g., "SaveWorkflow", "TenantByIdentifier")
	Record string // Record kind (e.g., "workflow", "tenant")
	Key    string // Identifying key if applicable
	Err    error  // Underlying error
}

func (e *RecordError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Record, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Record, e.Key, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for record errors.
func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRecordError creates a new record error with context.
func NewRecordError(op, record, key string, err error) *RecordError {
	return &RecordError{
		Op:     op,
		Record: record,
		Key:    key,
		Err:    err,
	}
}

// IsInvalidRecord checks if an error indicates an invalid record was given.
func IsInvalidRecord(err error) bool {
	return errors.Is(err, ErrInvalidRecord)
}

// IsCorruptRecord checks if an error indicates a stored record could not be decoded.
func IsCorruptRecord(err error) bool {
	return errors.Is(err, ErrCorruptRecord)
}

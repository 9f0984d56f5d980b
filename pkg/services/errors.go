// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/herald/pkg/attachments"
	"github.com/dukex/herald/pkg/payload"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest        = errors.New("invalid request")
	ErrBulkSize              = errors.New("bulk trigger requires between 1 and 100 events")
	ErrTransactionIDRequired = errors.New("transaction id is required")

	// Unprocessable triggers (422 Unprocessable Entity).
	ErrWorkflowNotFound = errors.New("workflow not found")

	// System errors (500 Internal Server Error).
	ErrDispatchPanic = errors.New("dispatch panicked")
)

// Error codes for API responses.
const (
	CodeInvalidRequest           = "INVALID_REQUEST"
	CodeWorkflowNotFound         = "WORKFLOW_NOT_FOUND"
	CodeReservedVariablesMissing = "RESERVED_VARIABLES_MISSING"
	CodePayloadValidationFailed  = "PAYLOAD_VALIDATION_FAILED"
	CodeInvalidAttachment        = "INVALID_ATTACHMENT"
	CodeDispatchFailed           = "DISPATCH_FAILED"
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ReservedVariablesError lists the reserved trigger-context fields a workflow
// declares but the trigger did not provide, as "<type>.<name>".
type ReservedVariablesError struct {
	Missing []string
}

func (e *ReservedVariablesError) Error() string {
	return "Missing reserved variables: " + strings.Join(e.Missing, ", ")
}

// DispatchError is a system failure that was already traced for RequestID.
type DispatchError struct {
	RequestID string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	var reservedErr *ReservedVariablesError

	var payloadErr *payload.ValidationError

	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrBulkSize) ||
		errors.Is(err, ErrTransactionIDRequired) ||
		errors.Is(err, attachments.ErrInvalidAttachment) ||
		errors.As(err, &reservedErr) ||
		errors.As(err, &payloadErr)
}

// IsNotFoundError checks if an error names a trigger that cannot be processed, HTTP 422.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsClientError reports whether err was caused by the request rather than the system.
func IsClientError(err error) bool {
	return IsValidationError(err) || IsNotFoundError(err)
}

// ErrorCode returns the API error code of err.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Code != "" {
		return serviceErr.Code
	}

	var reservedErr *ReservedVariablesError
	if errors.As(err, &reservedErr) {
		return CodeReservedVariablesMissing
	}

	var payloadErr *payload.ValidationError
	if errors.As(err, &payloadErr) {
		return CodePayloadValidationFailed
	}

	switch {
	case IsNotFoundError(err):
		return CodeWorkflowNotFound
	case errors.Is(err, attachments.ErrInvalidAttachment):
		return CodeInvalidAttachment
	case IsValidationError(err):
		return CodeInvalidRequest
	default:
		return CodeDispatchFailed
	}
}

// ErrorMessages flattens err into the messages reported for a failed bulk item.
func ErrorMessages(err error) []string {
	var payloadErr *payload.ValidationError
	if errors.As(err, &payloadErr) {
		messages := make([]string, 0, len(payloadErr.Errors))
		for _, fieldErr := range payloadErr.Errors {
			messages = append(messages, fieldErr.Field+": "+fieldErr.Message)
		}

		return messages
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		return []string{serviceErr.Message}
	}

	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		return []string{dispatchErr.Err.Error()}
	}

	return []string{err.Error()}
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Controller.Submit. The API layer maps them to
// HTTP status codes.
var (
	// ErrUnavailable indicates the engine refuses new work until its
	// unavailable window ends. API layer maps this to 503 Service Unavailable.
	ErrUnavailable = errors.New("engine is temporarily unavailable")

	// ErrDuplicate indicates an equivalent command is already pending.
	// API layer maps this to 409 Conflict.
	ErrDuplicate = errors.New("an equivalent command is already pending")

	// ErrUnknownKind indicates the submitted kind is not a known command kind.
	// API layer maps this to 400 Bad Request.
	ErrUnknownKind = errors.New("unknown command kind")
)

// ControllerError wraps unexpected failures of a controller operation.
type ControllerError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ControllerError.
func (e *ControllerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("controller %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("controller %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ControllerError) Unwrap() error {
	return e.Err
}

// NewControllerError creates a new ControllerError.
func NewControllerError(operation, message string, err error) *ControllerError {
	return &ControllerError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

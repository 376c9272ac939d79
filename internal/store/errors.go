package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all persister implementations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write would violate a uniqueness
	// constraint, such as two queue rows with the same command identity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when a row violates a schema constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a transaction cannot be
	// started or committed.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrCommandNotFound indicates that no queue row holds the identity.
	ErrCommandNotFound = fmt.Errorf("%w: command", ErrNotFound)

	// ErrCommandExists indicates that a queue row with the identity exists.
	ErrCommandExists = fmt.Errorf("%w: command", ErrDuplicate)
)

// StoreError adds the entity and operation to a persistence failure.
type StoreError struct {
	Entity    string // e.g. "queue_command"
	Operation string // e.g. "save"
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap supports errors.Is and errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{Entity: entity, Operation: operation, Message: message, Err: err}
}

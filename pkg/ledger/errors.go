package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
)

// Domain-level error values returned by the ledger service.
var (
	ErrNotFound             = errors.New("not found")
	ErrLocked               = errors.New("account locked")
	ErrAuthFailed           = errors.New("authentication failed")
	ErrConflict             = errors.New("conflict")
	ErrPersistence          = errors.New("persistence failure")
	ErrInvalidPIN           = errors.New("invalid pin")
	ErrInvalidAccountType   = errors.New("invalid account type")
	ErrInvalidBalance       = errors.New("invalid balance")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

func (operationError OperationError) Operation() string {
	return operationError.operation
}

func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// PersistenceError reports a storage failure. Callers can only match it
// against ErrPersistence; the driver error is kept for diagnostics.
type PersistenceError struct {
	cause error
}

func (persistenceError PersistenceError) Error() string {
	return ErrPersistence.Error()
}

func (persistenceError PersistenceError) Unwrap() error {
	return ErrPersistence
}

// Cause returns the underlying storage error for logging.
func (persistenceError PersistenceError) Cause() error {
	return persistenceError.cause
}

// normalizeStoreError maps a store failure onto the ledger taxonomy.
// Context cancellation passes through untouched.
func normalizeStoreError(operation string, subject string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrNotFound):
		return WrapError(operation, subject, codeNotFound, ErrNotFound)
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, store.ErrStale):
		return WrapError(operation, subject, codeConflict, ErrConflict)
	default:
		return WrapError(operation, subject, codePersistence, PersistenceError{cause: err})
	}
}

// DiagnosticCause returns the storage error behind a persistence failure, or
// err itself when there is none.
func DiagnosticCause(err error) error {
	var persistenceError PersistenceError
	if errors.As(err, &persistenceError) {
		return persistenceError.Cause()
	}
	return err
}

// NormalizeStoreError maps a store failure onto the ledger taxonomy for
// services that persist through the same units of work.
func NormalizeStoreError(operation string, subject string, err error) error {
	return normalizeStoreError(operation, subject, err)
}

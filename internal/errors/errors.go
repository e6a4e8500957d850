package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a uas error code.
type ErrorCode string

const (
	ErrNoSnapshotFound ErrorCode = "NO_SNAPSHOT_FOUND" // fatal at startup
	ErrCorruptSnapshot ErrorCode = "CORRUPT_SNAPSHOT"  // fatal at startup
	ErrSnapshotExists  ErrorCode = "SNAPSHOT_EXISTS"
	ErrInvalidInput    ErrorCode = "INVALID_INPUT"  // reported through Presenter.NotifyInvalid, never returned
	ErrInputClosed     ErrorCode = "INPUT_CLOSED"   // input stream ended mid-session
	ErrSlotOccupied    ErrorCode = "SLOT_OCCUPIED"  // traversal invariant violated
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrConflict        ErrorCode = "CONFLICT"
	ErrInternal        ErrorCode = "INTERNAL"
)

// UasError represents a structured error with code and details.
type UasError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *UasError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *UasError) Unwrap() error {
	return e.cause
}

// NewNoSnapshotFound is returned when a saves directory holds no well-formed snapshot.
func NewNoSnapshotFound(dir string) *UasError {
	return &UasError{
		Code:    ErrNoSnapshotFound,
		Message: fmt.Sprintf("no snapshot found in %s (run 'uas init' to seed a tree)", dir),
		Details: map[string]any{"dir": dir},
	}
}

// NewCorruptSnapshot is returned when a snapshot's contents cannot be parsed.
func NewCorruptSnapshot(name string, err error) *UasError {
	msg := fmt.Sprintf("snapshot %s is corrupt", name)
	if err != nil {
		msg = fmt.Sprintf("snapshot %s is corrupt: %v", name, err)
	}
	return &UasError{
		Code:    ErrCorruptSnapshot,
		Message: msg,
		Details: map[string]any{"snapshot": name},
		cause:   err,
	}
}

// NewSnapshotExists is returned when a save would overwrite a different snapshot.
func NewSnapshotExists(name string) *UasError {
	return &UasError{
		Code:    ErrSnapshotExists,
		Message: fmt.Sprintf("snapshot %s already exists with different content", name),
		Details: map[string]any{"snapshot": name},
	}
}

// NewInputClosed wraps the error that ended the input stream.
func NewInputClosed(err error) *UasError {
	return &UasError{
		Code:    ErrInputClosed,
		Message: "input closed",
		cause:   err,
	}
}

// NewSlotOccupied reports a graft onto a slot that already holds a value.
func NewSlotOccupied(position int) *UasError {
	return &UasError{
		Code:    ErrSlotOccupied,
		Message: fmt.Sprintf("slot %d is already occupied", position),
		Details: map[string]any{"position": position},
	}
}

// NewInvalidRequest creates an error for invalid parameters.
func NewInvalidRequest(msg string) *UasError {
	return &UasError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewConflict creates an error for general conflicts.
func NewConflict(msg string) *UasError {
	return &UasError{
		Code:    ErrConflict,
		Message: msg,
	}
}

// NewInternal creates an error for unexpected internal errors.
func NewInternal(err error) *UasError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &UasError{
		Code:    ErrInternal,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err, or any error it wraps, is a UasError with the given code.
func Is(err error, code ErrorCode) bool {
	var uErr *UasError
	if stderrors.As(err, &uErr) {
		return uErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost UasError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var uErr *UasError
	if stderrors.As(err, &uErr) {
		return uErr.Code
	}
	return ""
}

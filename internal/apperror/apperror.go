package apperror

import (
	"errors"
	"fmt"
)

// Kinds of failure surfaced to the user. Every workflow error wraps one of these.
var (
	ErrAuth       = errors.New("auth error")
	ErrStore      = errors.New("store error")
	ErrUpload     = errors.New("upload error")
	ErrValidation = errors.New("validation error")
)

// Store sub-kinds. They wrap ErrStore so errors.Is(err, ErrStore) still holds.
var (
	ErrNotFound         = fmt.Errorf("not found: %w", ErrStore)
	ErrPermissionDenied = fmt.Errorf("permission denied: %w", ErrStore)
	ErrConflict         = fmt.Errorf("conflict: %w", ErrStore)
)

// Error carries a machine-readable code next to the raw, user-visible message.
type Error struct {
	Kind    error  // one of the sentinels above
	Code    string // e.g. "email-already-in-use"
	Message string
	Err     error // optional cause
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Is matches both the kind and the wrapped cause.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Auth(code, message string) *Error {
	return &Error{Kind: ErrAuth, Code: code, Message: message}
}

func Validation(field, message string) *Error {
	return &Error{Kind: ErrValidation, Code: "invalid-" + field, Message: message}
}

func NotFound(collection, id string) *Error {
	return &Error{
		Kind:    ErrNotFound,
		Code:    "not-found",
		Message: fmt.Sprintf("%s not found with id %s", collection, id),
	}
}

func PermissionDenied(message string) *Error {
	return &Error{Kind: ErrPermissionDenied, Code: "permission-denied", Message: message}
}

func Conflict(collection, id string) *Error {
	return &Error{
		Kind:    ErrConflict,
		Code:    "already-exists",
		Message: fmt.Sprintf("%s already exists with id %s", collection, id),
	}
}

// Store wraps a backend failure of the document store.
func Store(message string, err error) *Error {
	return &Error{Kind: ErrStore, Code: "store-unavailable", Message: withCause(message, err), Err: err}
}

// Upload wraps a backend failure of the blob store.
func Upload(message string, err error) *Error {
	return &Error{Kind: ErrUpload, Code: "upload-failed", Message: withCause(message, err), Err: err}
}

// CodeOf returns the code of the first *Error in the chain, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

func withCause(message string, err error) string {
	if err == nil {
		return message
	}
	return message + ": " + err.Error()
}

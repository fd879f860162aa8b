package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface lets the handler layer map domain errors
// without enumerating concrete types.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors for errors.Is matching across layers.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrEngineDestroyed is returned by persistence-engine operations
	// after Destroy has been called.
	ErrEngineDestroyed = errors.New("persistence engine destroyed")

	// ErrSessionExpired is returned when an editor session token refers
	// to a session that has been evicted.
	ErrSessionExpired = errors.New("session expired")
)

// ValidationCode identifies a structural rule a save configuration broke.
type ValidationCode string

const (
	CodeUnlockTimeNotInFuture    ValidationCode = "UnlockTimeNotInFuture"
	CodeInvalidPrice             ValidationCode = "InvalidPrice"
	CodeInvalidEncryptionMethod  ValidationCode = "InvalidEncryptionMethod"
	CodeInvalidMonetizationTerms ValidationCode = "InvalidMonetizationTerms"
	CodeInvalidStorageMethod     ValidationCode = "InvalidStorageMethod"
	CodeInvalidMetadata          ValidationCode = "InvalidMetadata"
	CodeInvalidPreviewLength     ValidationCode = "InvalidPreviewLength"
)

// ValidationError is one caller-fixable rule violation. Validation never
// fails fast: callers receive every violation at once as ValidationErrors.
type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Field   string         `json:"field"`
	Message string         `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates all violations found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return "invalid save configuration: " + strings.Join(msgs, "; ")
}

// Is allows errors.Is(err, ErrValidation) to match aggregated violations.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// StatusCode implements HTTPError.
func (e ValidationErrors) StatusCode() int {
	return http.StatusBadRequest
}

// StoreWriteError wraps a failed key-value store write. The engine keeps
// the dirty flag set when surfacing this, so a retry re-attempts with the
// same content.
type StoreWriteError struct {
	Key string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write failed for key %q: %v", e.Key, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// StoreReadError wraps a failed key-value store read.
type StoreReadError struct {
	Key string
	Err error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("store read failed for key %q: %v", e.Key, e.Err)
}

func (e *StoreReadError) Unwrap() error { return e.Err }

// DeserializationError indicates a stored value could not be decoded into
// a persisted version.
type DeserializationError struct {
	Key string
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cannot decode stored version %q: %v", e.Key, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// Domain error types implementing HTTPError.
type (
	// NotFoundError indicates a resource was not found.
	NotFoundError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure.
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates the reader failed the access gate.
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

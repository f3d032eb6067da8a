// Package errors provides the unified error taxonomy for the live document
// subsystem. Every failure crossing a package boundary is classified here so
// that callers can branch on kind (not-found vs. permission vs. stale session)
// without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	// Reference and permission errors surfaced to the UI boundary.
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypePermission     ErrorType = "PERMISSION"
	ErrorTypeSessionInvalid ErrorType = "SESSION_INVALID"

	// Model errors. Illformed means elaboration itself failed; validation
	// failures are not errors at all (they ride in the ValidatedModel union).
	ErrorTypeIllformed ErrorType = "ILLFORMED"

	// Migration errors.
	ErrorTypeNoMigration         ErrorType = "NO_MIGRATION"
	ErrorTypeMigrationStructural ErrorType = "MIGRATION_STRUCTURAL"

	// Housekeeping errors.
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeConflict    ErrorType = "CONFLICT"
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
)

// Error is the single error type used across all layers. It carries a
// classification, a stable code for programmatic handling, and the operation
// and resource that failed.
type Error struct {
	Type      ErrorType
	Code      string
	Message   string
	Operation string
	Resource  string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("[%s:%s] %s (resource %s)", e.Type, e.Code, e.Message, e.Resource)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two classified errors by type and code, so sentinel-style
// comparisons like errors.Is(err, ErrReferenceNotFound) work across wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type && (other.Code == "" || e.Code == other.Code)
}

// WithOperation returns a copy annotated with the failing operation.
func (e *Error) WithOperation(op string) *Error {
	clone := *e
	clone.Operation = op
	return &clone
}

// Sentinels for errors.Is comparisons. Constructors below produce richer
// instances that still match these.
var (
	ErrReferenceNotFound   = &Error{Type: ErrorTypeNotFound, Code: "REFERENCE_NOT_FOUND"}
	ErrPermissions         = &Error{Type: ErrorTypePermission, Code: "INSUFFICIENT_PERMISSIONS"}
	ErrSessionInvalid      = &Error{Type: ErrorTypeSessionInvalid, Code: "SESSION_INVALID"}
	ErrNoMigrationDefined  = &Error{Type: ErrorTypeNoMigration, Code: "NO_MIGRATION_DEFINED"}
	ErrMigrationStructural = &Error{Type: ErrorTypeMigrationStructural, Code: "MIGRATION_STRUCTURAL"}
)

// NewReferenceNotFound reports that a reference does not exist (or is hidden
// from the caller by design). Distinct from NewPermissions so the UI can show
// a not-found page rather than a permission dialog.
func NewReferenceNotFound(refID string) *Error {
	return &Error{
		Type:     ErrorTypeNotFound,
		Code:     "REFERENCE_NOT_FOUND",
		Message:  "reference not found",
		Resource: refID,
	}
}

// NewPermissions reports that the principal lacks the permission level the
// operation requires. Never retried automatically.
func NewPermissions(refID, required string) *Error {
	return &Error{
		Type:     ErrorTypePermission,
		Code:     "INSUFFICIENT_PERMISSIONS",
		Message:  fmt.Sprintf("requires %s permission", required),
		Resource: refID,
	}
}

// NewSessionInvalid reports a stale or forged session. Continuing to operate
// on a stale session risks writing unauthorized changes, so callers must
// force re-authentication.
func NewSessionInvalid(cause error) *Error {
	return &Error{
		Type:    ErrorTypeSessionInvalid,
		Code:    "SESSION_INVALID",
		Message: "session is no longer valid",
		Cause:   cause,
	}
}

// NewIllformed reports that elaboration of formal content failed. This error
// never crosses the pipeline boundary as a thrown error; it is encoded in the
// Illformed tag of the validated model union.
func NewIllformed(msg string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeIllformed,
		Code:    "ILLFORMED_MODEL",
		Message: msg,
		Cause:   cause,
	}
}

// NewNoMigrationDefined reports that no inclusion or pushforward connects the
// two theories. Terminal for the requested action.
func NewNoMigrationDefined(from, to string) *Error {
	return &Error{
		Type:    ErrorTypeNoMigration,
		Code:    "NO_MIGRATION_DEFINED",
		Message: fmt.Sprintf("no migration defined from theory %q to %q", from, to),
	}
}

// NewMigrationStructural reports a pushforward whose result does not preserve
// the judgment set. The engine only rewrites type annotations in place; a
// migration that needs to add or remove cells is outside its contract.
func NewMigrationStructural(from, to string) *Error {
	return &Error{
		Type:    ErrorTypeMigrationStructural,
		Code:    "MIGRATION_STRUCTURAL",
		Message: fmt.Sprintf("pushforward from %q to %q is not cell-preserving", from, to),
	}
}

// NewValidation creates a validation error for malformed input.
func NewValidation(msg string) *Error {
	return &Error{Type: ErrorTypeValidation, Code: "INVALID_INPUT", Message: msg}
}

// NewConflict creates a conflict error.
func NewConflict(msg, resource string) *Error {
	return &Error{Type: ErrorTypeConflict, Code: "CONFLICT", Message: msg, Resource: resource}
}

// NewInternal creates an internal error wrapping its cause.
func NewInternal(msg string, cause error) *Error {
	return &Error{Type: ErrorTypeInternal, Code: "INTERNAL", Message: msg, Cause: cause}
}

// NewUnavailable reports a dependency that is temporarily unreachable, for
// example when the backend circuit breaker is open. Retryable.
func NewUnavailable(msg string, cause error) *Error {
	return &Error{
		Type:      ErrorTypeUnavailable,
		Code:      "UNAVAILABLE",
		Message:   msg,
		Retryable: true,
		Cause:     cause,
	}
}

// AsError extracts the classified error from err's chain, if any.
func AsError(err error, target **Error) bool {
	return errors.As(err, target)
}

// TypeOf returns the classification of err, or ErrorTypeInternal for
// unclassified errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }

// IsPermission reports whether err is a permission error.
func IsPermission(err error) bool { return TypeOf(err) == ErrorTypePermission }

// IsSessionInvalid reports whether err indicates a stale session.
func IsSessionInvalid(err error) bool { return TypeOf(err) == ErrorTypeSessionInvalid }

// IsNoMigrationDefined reports whether err is a missing-migration error.
func IsNoMigrationDefined(err error) bool { return TypeOf(err) == ErrorTypeNoMigration }

// IsRetryable reports whether the failed operation may be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// Wrap annotates err with an operation name, preserving classification.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e.WithOperation(op)
	}
	return &Error{Type: ErrorTypeInternal, Code: "INTERNAL", Message: op, Cause: err}
}

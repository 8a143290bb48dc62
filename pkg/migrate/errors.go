// Package migrate provides the core types and orchestration for Flowport
// migration pipelines. A pipeline fetches entities from a vendor, transforms
// them into the target workflow model, and optionally pushes them to the
// target platform, with checkpointing and retry as cross-cutting concerns.
package migrate

import (
	"errors"
	"fmt"
	"time"
)

// ErrorClass classifies an error for retry and recovery decisions.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on
	// retry. Examples: network timeouts, vendor 5xx responses.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates vendor or target rate limiting.
	// Retried with a longer backoff, honoring Retry-After when present.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates a state conflict on the target, such as
	// an entity created concurrently by another run.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error. Examples:
	// invalid credentials, malformed vendor payloads, policy denials.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Error is a classified migration error with vendor and entity context.
type Error struct {
	// Class is the error classification used by the retry loop.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Vendor is the vendor the error originated from, if applicable.
	Vendor string `json:"vendor,omitempty"`

	// Entity is the vendor entity reference that caused the error.
	Entity string `json:"entity,omitempty"`

	// Operation is the pipeline stage (fetch, transform, push).
	Operation string `json:"operation,omitempty"`

	// RetryAfter carries a server-provided backoff hint for throttled
	// errors. Zero means no hint.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Entity != "" && e.Operation != "":
		return fmt.Sprintf("[%s] %s (entity=%s, op=%s): %s",
			e.Class, e.Message, e.Entity, e.Operation, e.unwrapMessage())
	case e.Entity != "":
		return fmt.Sprintf("[%s] %s (entity=%s): %s",
			e.Class, e.Message, e.Entity, e.unwrapMessage())
	default:
		return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *Error {
	return &Error{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *Error {
	return &Error{Class: ErrorClassThrottled, Message: message, Err: err}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *Error {
	return &Error{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *Error {
	return &Error{Class: ErrorClassPermanent, Message: message, Err: err}
}

// WithVendor adds vendor context to an error.
func (e *Error) WithVendor(vendor string) *Error {
	e.Vendor = vendor
	return e
}

// WithEntity adds entity context to an error.
func (e *Error) WithEntity(entity string) *Error {
	e.Entity = entity
	return e
}

// WithOperation adds pipeline stage context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds an error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithRetryAfter records a server-provided backoff hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// IsTransient reports whether err is classified as transient.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsThrottled reports whether err is classified as throttled.
func IsThrottled(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassThrottled
	}
	return false
}

// IsConflict reports whether err is classified as a conflict.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsPermanent reports whether err is classified as permanent.
func IsPermanent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable reports whether err can be retried. Transient, throttled,
// and conflict errors are retryable; anything else is not.
func IsRetryable(err error) bool {
	return IsTransient(err) || IsThrottled(err) || IsConflict(err)
}

// RetryAfterHint extracts a server-provided backoff hint, if any.
func RetryAfterHint(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// Common error codes.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeVendorFailed  = "VENDOR_FAILED"
	ErrCodeTargetFailed  = "TARGET_FAILED"
	ErrCodePolicyDenied  = "POLICY_DENIED"
	ErrCodeParse         = "PARSE_ERROR"
)

// Package errs provides the unified error type used across all of ConnRi.
//
// Every subsystem (pool manager, query executor, drivers) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the
// Is* predicates to handle errors without importing driver-specific packages.
//
// Usage:
//
//	// In a driver — wrap native errors:
//	return errs.Wrap(errs.ErrKindQuery, "statement failed", pgErr)
//
//	// In a caller — check error kind:
//	if errs.IsAcquireTimeout(err) {
//	    // back off and retry at the application level
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing driver-specific codes.
// Both backends (Postgres, MySQL) map their native errors to one of these
// kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindConfig                   // missing or invalid pool configuration
	ErrKindConnection               // cannot reach or authenticate to the store
	ErrKindExhaustedRetries         // init failed within the retry budget
	ErrKindNotConnected             // operation attempted before a successful init
	ErrKindAcquireTimeout           // no free handle within the acquire timeout
	ErrKindQuery                    // SQL syntax or runtime execution error
	ErrKindTransaction              // unit of work, commit, or rollback failure
	ErrKindShuttingDown             // operation attempted during shutdown drain
	ErrKindShutdown                 // shutdown itself failed
	ErrKindTimeout                  // statement exceeded its deadline
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindConfig:
		return "config"
	case ErrKindConnection:
		return "connection"
	case ErrKindExhaustedRetries:
		return "exhausted_retries"
	case ErrKindNotConnected:
		return "not_connected"
	case ErrKindAcquireTimeout:
		return "acquire_timeout"
	case ErrKindQuery:
		return "query"
	case ErrKindTransaction:
		return "transaction"
	case ErrKindShuttingDown:
		return "shutting_down"
	case ErrKindShutdown:
		return "shutdown"
	case ErrKindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all ConnRi subsystems.
// Drivers and the pool manager produce it; callers inspect it via the
// Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging

	// Attempts is set on ErrKindExhaustedRetries errors: the total number
	// of initialization attempts made (1 initial + retries).
	Attempts int
}

func (e *Error) Error() string {
	if e.Kind == ErrKindExhaustedRetries {
		if e.Cause != nil {
			return fmt.Sprintf("[%s] %s after %d attempts: %v", e.Kind, e.Message, e.Attempts, e.Cause)
		}
		return fmt.Sprintf("[%s] %s after %d attempts", e.Kind, e.Message, e.Attempts)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Exhausted creates the terminal init failure: the last underlying error and
// the total attempt count are both preserved.
func Exhausted(msg string, attempts int, cause error) *Error {
	return &Error{Kind: ErrKindExhaustedRetries, Message: msg, Attempts: attempts, Cause: cause}
}

// --- Predicates ---

// IsConfig reports whether err was caused by missing or invalid configuration.
func IsConfig(err error) bool {
	return kindOf(err) == ErrKindConfig
}

// IsConnection reports whether err is a connectivity or auth failure.
func IsConnection(err error) bool {
	return kindOf(err) == ErrKindConnection
}

// IsExhaustedRetries reports whether err is a terminal init failure
// after the full retry budget was spent.
func IsExhaustedRetries(err error) bool {
	return kindOf(err) == ErrKindExhaustedRetries
}

// IsNotConnected reports whether err was raised because the pool is not
// in a usable state (never initialized, or already stopped).
func IsNotConnected(err error) bool {
	return kindOf(err) == ErrKindNotConnected
}

// IsAcquireTimeout reports whether err means no handle became free within
// the configured acquire timeout.
func IsAcquireTimeout(err error) bool {
	return kindOf(err) == ErrKindAcquireTimeout
}

// IsQuery reports whether err is a statement execution failure.
func IsQuery(err error) bool {
	return kindOf(err) == ErrKindQuery
}

// IsTransaction reports whether err is a transaction failure (unit of work,
// commit, or rollback).
func IsTransaction(err error) bool {
	return kindOf(err) == ErrKindTransaction
}

// IsShuttingDown reports whether err was raised because shutdown had begun.
func IsShuttingDown(err error) bool {
	return kindOf(err) == ErrKindShuttingDown
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// Attempts returns the init attempt count carried by an exhausted-retries
// error, or 0 if err is not one.
func Attempts(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == ErrKindExhaustedRetries {
		return e.Attempts
	}
	return 0
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

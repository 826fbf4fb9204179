// Package perrors provides centralized error definitions and classification
// helpers for the parley engine. It defines the engine's error taxonomy as
// sentinel errors, domain error types with contextual fields, and helpers for
// deciding whether an error is retryable or safe to show to users.
//
// Creating errors:
//
//	err := perrors.NewProviderError("invocation timed out", perrors.ErrProviderUnavailable).
//		WithProvider("codex-cli")
//
// Checking errors:
//
//	if perrors.Is(err, perrors.ErrProviderUnavailable) { ... }
//	if perrors.IsRetryable(err) { ... }
package perrors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers can import only this
// package for error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrProviderUnavailable indicates a provider could not produce a
	// perspective: not installed, not responding, or over its timeout.
	ErrProviderUnavailable = New("provider unavailable")
	// ErrInvalidRequest indicates a debate request failed validation.
	ErrInvalidRequest = New("invalid request")
	// ErrSessionNotFound indicates a debate session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrStorageFailure indicates a durable read or write failed.
	ErrStorageFailure = New("storage failure")
	// ErrStateViolation indicates an operation was attempted in a session
	// state that does not permit it.
	ErrStateViolation = New("invalid session state for operation")
)

var (
	// ErrNoPerspectives indicates consensus was requested with zero
	// recorded perspectives.
	ErrNoPerspectives = New("no perspectives to score")
	// ErrDebateNotRequired indicates the complexity gate scored the request
	// below the debate threshold.
	ErrDebateNotRequired = New("debate not required")
	// ErrDebateRequired indicates a complexity check found the request
	// complex enough to warrant a debate.
	ErrDebateRequired = New("debate required")
	// ErrPartialConsensus indicates consensus was reached with fewer
	// perspectives than expected.
	ErrPartialConsensus = New("partial consensus")
	// ErrBelowTarget indicates the consensus score came in under the
	// requested target.
	ErrBelowTarget = New("consensus below target")
	// ErrCanceled indicates a debate was canceled before completion.
	ErrCanceled = New("debate canceled")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// EngineError is the base interface for all parley errors. It extends the
// standard error interface with classification methods.
type EngineError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// ProviderError represents a failure while invoking a reasoning provider.
//
// Example:
//
//	err := perrors.NewProviderError("health check failed", perrors.ErrProviderUnavailable).
//		WithProvider("copilot-bridge")
type ProviderError struct {
	baseError
	Provider string
	Role     string
}

// NewProviderError creates a new ProviderError. Provider failures are
// retryable by default: a provider missing one round may answer the next.
func NewProviderError(message string, cause error) *ProviderError {
	return &ProviderError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
	}
}

// WithProvider adds the provider identity to the error context.
func (e *ProviderError) WithProvider(name string) *ProviderError {
	e.Provider = name
	return e
}

// WithRole adds the debate role (primary/counter) to the error context.
func (e *ProviderError) WithRole(role string) *ProviderError {
	e.Role = role
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ProviderError) WithRetryable(r bool) *ProviderError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ProviderError) Error() string {
	var parts []string
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.Role != "" {
		parts = append(parts, fmt.Sprintf("role=%s", e.Role))
	}

	prefix := "provider error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("provider error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ProviderError) Is(target error) bool {
	if _, ok := target.(*ProviderError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SessionError represents errors related to debate session lifecycle.
//
// Example:
//
//	err := perrors.NewSessionError("cannot submit perspective", perrors.ErrStateViolation).
//		WithSessionID(id).WithState("consensus_ready")
type SessionError struct {
	baseError
	SessionID string
	State     string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithState adds the session state to the error context.
func (e *SessionError) WithState(state string) *SessionError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}

	prefix := "session error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("session error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StorageError represents a durable read or write failure. Storage errors
// are retryable: callers should retry with bounded backoff and surface the
// failure only after retries are exhausted.
type StorageError struct {
	baseError
	Op  string
	Key string
}

// NewStorageError creates a new StorageError.
func NewStorageError(message string, cause error) *StorageError {
	return &StorageError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: false,
		},
	}
}

// WithOp adds the storage operation (save, load, delete) to the error context.
func (e *StorageError) WithOp(op string) *StorageError {
	e.Op = op
	return e
}

// WithKey adds the storage key to the error context.
func (e *StorageError) WithKey(key string) *StorageError {
	e.Key = key
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *StorageError) WithRetryable(r bool) *StorageError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *StorageError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}

	prefix := "storage error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("storage error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StorageError) Is(target error) bool {
	if _, ok := target.(*StorageError); ok {
		return true
	}
	if errors.Is(target, ErrStorageFailure) {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents an invalid debate request.
//
// Example:
//
//	err := perrors.NewValidationError("topic cannot be empty").WithField("topic")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidRequest) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var engineErr EngineError
	if As(err, &engineErr) {
		return engineErr.IsRetryable()
	}

	return Is(err, ErrStorageFailure)
}

// IsUserFacing returns true if the error message is safe to display to end
// users. Errors that don't implement EngineError are considered internal.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var engineErr EngineError
	if As(err, &engineErr) {
		return engineErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error. Returns SeverityError
// for errors that don't implement EngineError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var engineErr EngineError
	if As(err, &engineErr) {
		return engineErr.Severity()
	}

	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

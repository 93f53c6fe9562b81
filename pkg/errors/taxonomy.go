package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// ErrorCategory represents the category of error
type ErrorCategory string

const (
	CategoryInfrastructure ErrorCategory = "infrastructure"
	CategoryValidation     ErrorCategory = "validation"
	CategoryOperation      ErrorCategory = "operation"
	CategorySystem         ErrorCategory = "system"
	CategoryUnknown        ErrorCategory = "unknown"
)

const (
	// Infrastructure Errors (1xxx)
	ErrPublishFailed      = "TRIP-1001" // Notification publish failed
	ErrStoreUnavailable   = "TRIP-1002" // Snapshot store unreachable
	ErrTimeout            = "TRIP-1003" // Operation timeout
	ErrRateLimit          = "TRIP-1004" // Notification rate limit exceeded
	ErrServiceUnavailable = "TRIP-1005" // Dependency service down

	// Validation Errors (3xxx)
	ErrInvalidInput        = "TRIP-3001" // Invalid role output
	ErrMissingRequired     = "TRIP-3002" // Missing required field
	ErrDestinationMismatch = "TRIP-3003" // Role outputs disagree on destination
	ErrConfidenceTooLow    = "TRIP-3004" // Role confidence below floor
	ErrConfigInvalid       = "TRIP-3005" // Configuration rejected
	ErrUnknownRole         = "TRIP-3006" // Role discriminant not recognised
	ErrDuplicateRoleOutput = "TRIP-3007" // Same role supplied twice

	// Operation Errors (4xxx)
	ErrAlertNotFound  = "TRIP-4001" // Unknown alert id
	ErrMetricNotFound = "TRIP-4002" // Unknown metric id
	ErrStateConflict  = "TRIP-4003" // Operation state conflict

	// System Errors (5xxx)
	ErrInternalError = "TRIP-5001" // Unexpected internal error
	ErrPanic         = "TRIP-5004" // Panic recovery
)

// ErrorSeverity represents the severity level
type ErrorSeverity int

const (
	SeverityCritical ErrorSeverity = iota // System failure, immediate action
	SeverityHigh                          // Service degraded, urgent
	SeverityMedium                        // Feature impacted, important
	SeverityLow                           // Minor issue, informational
)

// Error is a coded error carrying classification and debugging context
type Error struct {
	Code          string         `json:"code"`
	Category      ErrorCategory  `json:"category"`
	Message       string         `json:"message"`
	Severity      ErrorSeverity  `json:"severity"`
	Context       map[string]any `json:"context,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Retryable     bool           `json:"retryable"`
	CorrelationID string         `json:"correlation_id"`
	StackTrace    []string       `json:"stack_trace,omitempty"`

	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// ShouldRetry determines if the error is retryable
func (e *Error) ShouldRetry() bool {
	return e.Retryable && e.Severity > SeverityCritical
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ToJSON serializes the error to JSON
func (e *Error) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new coded error, classified from its code
func New(code string, message string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		Category:      getCategoryFromCode(code),
		Severity:      getSeverityFromCode(code),
		Retryable:     isRetryableCode(code),
		Timestamp:     time.Now(),
		CorrelationID: uuid.New().String(),
		StackTrace:    captureStackTrace(),
	}
}

// Newf creates a coded error with a formatted message
func Newf(code string, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error
func Wrap(err error, code string) *Error {
	if err == nil {
		return nil
	}

	var coded *Error
	if stderrors.As(err, &coded) {
		return coded
	}

	e := New(code, err.Error())
	e.cause = err
	e.StackTrace = captureStackTrace()
	return e
}

// Code returns the code of a coded error anywhere in the chain, or ""
func Code(err error) string {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// IsRetryable reports whether err is a coded error that may be retried.
// Errors without a code are treated as retryable.
func IsRetryable(err error) bool {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.ShouldRetry()
	}
	return true
}

// getCategoryFromCode determines category from error code
func getCategoryFromCode(code string) ErrorCategory {
	if len(code) < 6 {
		return CategoryUnknown
	}

	prefix := code[5:6] // first digit after "TRIP-"
	switch prefix {
	case "1":
		return CategoryInfrastructure
	case "3":
		return CategoryValidation
	case "4":
		return CategoryOperation
	case "5":
		return CategorySystem
	default:
		return CategoryUnknown
	}
}

// getSeverityFromCode determines severity from error code
func getSeverityFromCode(code string) ErrorSeverity {
	switch code {
	case ErrPanic:
		return SeverityCritical
	case ErrInternalError, ErrServiceUnavailable, ErrStoreUnavailable:
		return SeverityHigh
	case ErrPublishFailed, ErrRateLimit, ErrTimeout:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// isRetryableCode determines if an error code is retryable
func isRetryableCode(code string) bool {
	switch code {
	case ErrPublishFailed, ErrStoreUnavailable, ErrTimeout, ErrRateLimit, ErrServiceUnavailable:
		return true
	default:
		return false
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace() []string {
	const maxDepth = 10
	pc := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pc) // Skip runtime.Callers, captureStackTrace, and caller

	stack := make([]string, 0, n)
	for i := 0; i < n; i++ {
		fn := runtime.FuncForPC(pc[i])
		if fn != nil {
			file, line := fn.FileLine(pc[i])
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}
	return stack
}

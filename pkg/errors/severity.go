// Package errors provides severity-aware error types.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Kind classifies an OrderError. Kinds are comparable with errors.Is.
type Kind string

const (
	KindNotFound       Kind = "NOT_FOUND"
	KindMalformedInput Kind = "MALFORMED_INPUT"
	KindIO             Kind = "IO_ERROR"
)

func (k Kind) Error() string { return string(k) }

// Sentinels for errors.Is checks against any OrderError of that kind.
var (
	NotFound       error = KindNotFound
	MalformedInput error = KindMalformedInput
	IOError        error = KindIO
)

// OrderError is a structured error with context.
type OrderError struct {
	Kind        Kind     `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Path        string   `json:"path,omitempty"`
	Recoverable bool     `json:"recoverable"`
	Cause       error    `json:"-"`
}

func (e *OrderError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Severity, e.Kind, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path: %s)", e.Path)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *OrderError) Unwrap() error { return e.Cause }

// Is reports a match against the Kind sentinels.
func (e *OrderError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// NewNotFoundError creates an error for a missing input file.
func NewNotFoundError(path string, cause error) *OrderError {
	return &OrderError{
		Kind:        KindNotFound,
		Message:     fmt.Sprintf("orders file %q was not found", path),
		Severity:    SeverityError,
		Path:        path,
		Recoverable: true,
		Cause:       cause,
	}
}

// NewMalformedInputError creates an error for invalid JSON or a record
// missing a required field.
func NewMalformedInputError(path, message string, cause error) *OrderError {
	return &OrderError{
		Kind:        KindMalformedInput,
		Message:     message,
		Severity:    SeverityError,
		Path:        path,
		Recoverable: true,
		Cause:       cause,
	}
}

// NewIOError creates an error for a failed read or write.
func NewIOError(path, message string, cause error) *OrderError {
	return &OrderError{
		Kind:        KindIO,
		Message:     message,
		Severity:    SeverityFatal,
		Path:        path,
		Recoverable: false,
		Cause:       cause,
	}
}

// KindOf returns the Kind of the first OrderError in err's chain, or "".
func KindOf(err error) Kind {
	var oe *OrderError
	if stderrors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}

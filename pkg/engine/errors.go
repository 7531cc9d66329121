package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an engine error for propagation policy.
type ErrorClass string

const (
	// ErrorClassConfig indicates a configuration problem (missing section
	// or option, dependency cycle, bad provider selector). Detected before
	// any shell command is issued; fatal to the whole run.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassAbort indicates an unrecoverable precondition or action
	// failure raised from inside a provider coroutine. Terminates the
	// session immediately and is never retried.
	ErrorClassAbort ErrorClass = "abort"

	// ErrorClassProtocol indicates misuse of the driver contract or a
	// malformed wire message. Fatal to the connection, not to the
	// provisioning state.
	ErrorClassProtocol ErrorClass = "protocol"

	// ErrorClassInternal indicates a bug in the engine itself.
	ErrorClassInternal ErrorClass = "internal"
)

// EngineError is a classified error with section and provider context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	Class    ErrorClass `json:"class"`
	Message  string     `json:"message"`
	Code     string     `json:"code,omitempty"`
	Section  string     `json:"section,omitempty"`
	Provider string     `json:"provider,omitempty"`
	Err      error      `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Section != "" {
		msg += fmt.Sprintf(" (section=%q", e.Section)
		if e.Provider != "" {
			msg += fmt.Sprintf(", provider=%s", e.Provider)
		}
		msg += ")"
	} else if e.Provider != "" {
		msg += fmt.Sprintf(" (provider=%s)", e.Provider)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error { return e.Err }

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && (t.Code == "" || e.Code == t.Code)
}

// NewConfigError creates a configuration-class error.
func NewConfigError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassConfig, Message: message, Err: err}
}

// NewAbortError creates an abort-class error.
func NewAbortError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassAbort, Message: message, Err: err}
}

// NewProtocolError creates a protocol-class error.
func NewProtocolError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassProtocol, Message: message, Err: err}
}

// NewInternalError creates an internal-class error.
func NewInternalError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassInternal, Message: message, Err: err}
}

// WithSection adds section context to an error.
func (e *EngineError) WithSection(section string) *EngineError {
	e.Section = section
	return e
}

// WithProvider adds provider context to an error.
func (e *EngineError) WithProvider(provider string) *EngineError {
	e.Provider = provider
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// IsConfig reports whether err is classified as a configuration error.
func IsConfig(err error) bool { return hasClass(err, ErrorClassConfig) }

// IsAbort reports whether err is classified as a fatal abort.
func IsAbort(err error) bool { return hasClass(err, ErrorClassAbort) }

// IsProtocol reports whether err is classified as protocol misuse.
func IsProtocol(err error) bool { return hasClass(err, ErrorClassProtocol) }

func hasClass(err error, class ErrorClass) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// Common error codes.
const (
	ErrCodeCycle          = "DEPENDENCY_CYCLE"
	ErrCodeNoProvider     = "NO_PROVIDER"
	ErrCodeBadParams      = "BAD_PARAMS"
	ErrCodeToolMissing    = "TOOL_MISSING"
	ErrCodeActionFailed   = "ACTION_FAILED"
	ErrCodeOutOfSequence  = "OUT_OF_SEQUENCE"
	ErrCodeSessionClosed  = "SESSION_CLOSED"
	ErrCodeBadWireMessage = "BAD_WIRE_MESSAGE"
)

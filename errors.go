package checkout

import "errors"

// ErrorType groups failures by who is responsible for them.
type ErrorType string

const (
	InvalidRequest     ErrorType = "invalid_request"     // Caller broke the API contract.
	RemoteFailure      ErrorType = "remote_failure"      // The hosted checkout reported a failure.
	EnvironmentFailure ErrorType = "environment_failure" // The browser or page refused an operation.
)

// ErrorCode is a machine-readable identifier for the specific failure.
type ErrorCode string

const (
	InvalidConfig     ErrorCode = "invalid_config"      // Option or argument failed validation.
	ContainerNotFound ErrorCode = "container_not_found" // Selector matched no element.
	NotRendered       ErrorCode = "not_rendered"        // Operation needs a mounted embed.
	MissingField      ErrorCode = "missing_field"       // A required field was not mounted.
	PopupBlocked      ErrorCode = "popup_blocked"       // window.open was refused.
	SubmitSuperseded  ErrorCode = "submit_superseded"   // A newer submission replaced this one.
	SubmitFailed      ErrorCode = "submit_failed"       // The vault rejected the submission.
)

// Error is a structured SDK error.
type Error struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	// Param names the offending option, argument or field, if any.
	Param *string
	// Payload carries the remote's payload verbatim for RemoteFailure errors.
	Payload []byte

	cause error
}

// Error makes *Error satisfy the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches errors carrying the same code, so callers can compare against
// the exported sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidConfig     = &Error{Type: InvalidRequest, Code: InvalidConfig, Message: "checkout: invalid configuration"}
	ErrContainerNotFound = &Error{Type: InvalidRequest, Code: ContainerNotFound, Message: "checkout: container element not found"}
	ErrNotRendered       = &Error{Type: InvalidRequest, Code: NotRendered, Message: "checkout: embed has not been rendered"}
	ErrMissingField      = &Error{Type: InvalidRequest, Code: MissingField, Message: "checkout: required field is not mounted"}
	ErrPopupBlocked      = &Error{Type: EnvironmentFailure, Code: PopupBlocked, Message: "checkout: popup window was blocked"}
	ErrSubmitSuperseded  = &Error{Type: InvalidRequest, Code: SubmitSuperseded, Message: "checkout: submission superseded by a newer one"}
	ErrSubmitFailed      = &Error{Type: RemoteFailure, Code: SubmitFailed, Message: "checkout: vault submission failed"}
)

type errorOption func(*Error)

// withParam sets the name of the offending option, argument or field.
func withParam(name string) errorOption {
	return func(e *Error) {
		e.Param = &name
	}
}

// withCause wraps an underlying error.
func withCause(err error) errorOption {
	return func(e *Error) {
		e.cause = err
	}
}

// withPayload attaches a remote payload.
func withPayload(payload []byte) errorOption {
	return func(e *Error) {
		e.Payload = payload
	}
}

// newError derives an error from a sentinel, keeping its type and code.
func newError(base *Error, message string, opts ...errorOption) *Error {
	err := &Error{
		Type:    base.Type,
		Code:    base.Code,
		Message: message,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(err)
	}
	return err
}

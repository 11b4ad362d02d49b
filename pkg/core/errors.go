package core

import (
	"errors"
	"fmt"
)

// Error is the gateway-wide error shape. It is serialized as-is on the client
// error frame and on REST error envelopes.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Param      string    `json:"param,omitempty"`
	Code       string    `json:"code,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Underlying any       `json:"underlying,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrTransportUnavailable means the duplex connection to the AI backend
	// could not be opened or maintained. Fatal to the affected session.
	ErrTransportUnavailable ErrorType = "transport_unavailable"
	// ErrCollaboratorUnavailable means a dependency (store, provider, sink)
	// failed. Never fatal to a session; tool calls degrade to negative results.
	ErrCollaboratorUnavailable ErrorType = "collaborator_unavailable"
	// ErrProtocolViolation means a malformed or out-of-contract frame was
	// observed. The frame is dropped and the session stays up if otherwise healthy.
	ErrProtocolViolation ErrorType = "protocol_violation"
	ErrInvalidRequest    ErrorType = "invalid_request_error"
	ErrAuthentication    ErrorType = "authentication_error"
	ErrNotFound          ErrorType = "not_found_error"
	ErrAPI               ErrorType = "api_error"
)

// NewTransportError wraps a backend transport failure.
func NewTransportError(message string, underlying error) *Error {
	e := &Error{
		Type:    ErrTransportUnavailable,
		Message: message,
	}
	if underlying != nil {
		e.Underlying = underlying.Error()
	}
	return e
}

// NewCollaboratorError wraps a failing dependency, naming it.
func NewCollaboratorError(collaborator string, underlying error) *Error {
	e := &Error{
		Type:    ErrCollaboratorUnavailable,
		Message: fmt.Sprintf("%s: %v", collaborator, underlying),
		Code:    "collaborator_unavailable",
	}
	if underlying != nil {
		e.Underlying = underlying.Error()
	}
	return e
}

// NewProtocolViolation describes a malformed or out-of-contract frame.
func NewProtocolViolation(message string) *Error {
	return &Error{
		Type:    ErrProtocolViolation,
		Message: message,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// IsFatalToSession reports whether the error terminates its session.
// Only transport-level failures are terminal; everything else degrades.
func (e *Error) IsFatalToSession() bool {
	return e != nil && e.Type == ErrTransportUnavailable
}

// AsError extracts a *core.Error from an error chain, or wraps err as an
// api_error when it carries no taxonomy.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Type: ErrAPI, Message: err.Error()}
}

package esl

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event socket client.
var (
	// ErrNotConnected indicates an operation was attempted before Connect.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates Connect was called on an open session.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrStreamActive indicates a second stream was started while one runs.
	ErrStreamActive = errors.New("event stream already running")

	// ErrFrameTooLong indicates a frame or body exceeded MaxFrameLength.
	ErrFrameTooLong = errors.New("frame too long")

	// ErrMalformedFrame indicates a frame that looked like an event but could
	// not be decoded. The dispatch loop logs it and moves on.
	ErrMalformedFrame = errors.New("malformed frame")
)

// ConnectionError represents a failure to reach the server or a missing
// auth/request banner.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}

// AuthenticationError is returned when the auth reply lacks +OK.
type AuthenticationError struct {
	Reply string // Reply-Text (or the raw frame when absent)
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Reply == "" {
		return "authentication failed"
	}
	return fmt.Sprintf("authentication failed: %s", e.Reply)
}

// TransportError wraps a read or write failure on an established session.
// It ends the dispatch loop.
type TransportError struct {
	Op    string // "read" or "write"
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// CommandError is returned when the server answers a command with -ERR.
type CommandError struct {
	Command string
	Reply   string
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q rejected: %s", e.Command, e.Reply)
}

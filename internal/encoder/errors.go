// Package encoder implements the hardware encode session core: format
// negotiation against device capabilities, the property-driven session
// parameter builder, the session state machine with tiered reconfiguration,
// and the bitstream packager.
package encoder

import (
	"errors"
	"fmt"
)

// Encoder errors.
var (
	// ErrUnsupportedFormat indicates negotiation found an empty
	// intersection between the downstream offer and device/content
	// capabilities. Recoverable if downstream renegotiates.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrSessionConfig indicates the device rejected a configuration
	// descriptor. Not retried: configuration is deterministic.
	ErrSessionConfig = errors.New("session configuration rejected")

	// ErrEncodeFailed indicates a per-frame encode call failed. Device
	// state after a failed encode is undefined, so there is no retry.
	ErrEncodeFailed = errors.New("encode failed")

	// ErrSequenceHeader indicates the sequence parameters could not be
	// retrieved or parsed after configuration.
	ErrSequenceHeader = errors.New("sequence header unavailable")

	// ErrNotConfigured indicates an operation that requires a configured
	// session.
	ErrNotConfigured = errors.New("encoder not configured")

	// ErrClosed indicates an operation on a closed encoder.
	ErrClosed = errors.New("encoder closed")

	// ErrUnknownProperty indicates a property name the encoder does not
	// recognize, or one unavailable on this device.
	ErrUnknownProperty = errors.New("unknown property")
)

// SessionError wraps a failure with the encoder state and operation in
// which it occurred.
type SessionError struct {
	State State
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s in state %s: %v", e.Op, e.State, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}

func sessionErr(state State, op string, err error) *SessionError {
	return &SessionError{State: state, Op: op, Err: err}
}

// PropertyError wraps a property set/get failure with the property name.
type PropertyError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *PropertyError) Error() string {
	return fmt.Sprintf("property %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *PropertyError) Unwrap() error {
	return e.Err
}

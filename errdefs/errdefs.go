// Package errdefs holds the error taxonomy shared by the document model,
// the stream reducer and the provider parsers.
//
//   - ConfigurationError: missing credentials or a malformed model reference.
//     Fatal, surfaced immediately, never retried.
//   - ProtocolError: the provider broke the expected response shape, for
//     example by changing the number of parallel choices mid-stream. Fatal
//     for the current run.
//
// Notification timeouts and unrecognized output shapes are recovered where
// they happen and never reach callers, so they have no type here.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is wrapped by ConfigurationError when a provider
	// client cannot be built because no API key was supplied.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidModelRef is wrapped by ConfigurationError when a prompt's
	// model reference cannot be resolved.
	ErrInvalidModelRef = errors.New("invalid model reference")
	// ErrChoiceCountMismatch is wrapped by ProtocolError when a streamed
	// fragment carries a different number of choices than seen before.
	ErrChoiceCountMismatch = errors.New("choice count changed mid-stream")
	// ErrUnexpectedSchema is wrapped by ProtocolError when a provider
	// response does not have the shape the parser expects.
	ErrUnexpectedSchema = errors.New("unexpected provider response schema")
)

// ConfigurationError reports a problem with how a parser or prompt is set up.
type ConfigurationError struct {
	Component string
	Err       error
}

func (e *ConfigurationError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Component, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Configuration wraps err in a ConfigurationError for component.
func Configuration(component string, err error) error {
	return &ConfigurationError{Component: component, Err: err}
}

// ProtocolError reports a provider response the core cannot make sense of.
type ProtocolError struct {
	Provider string
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
	return fmt.Sprintf("protocol error from %s: %v", e.Provider, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Protocol wraps err in a ProtocolError for provider.
func Protocol(provider string, err error) error {
	return &ProtocolError{Provider: provider, Err: err}
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsProtocol reports whether err is or wraps a ProtocolError.
func IsProtocol(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

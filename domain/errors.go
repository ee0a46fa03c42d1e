package domain

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an unsupported provider or model.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported provider: %s", e.Provider)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

// TypeMismatchError reports a conversation element without role/content.
type TypeMismatchError struct {
	Index int
	Got   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("unsupported message object type at index %d: %s", e.Index, e.Got)
}

// ProviderFailure wraps any runtime failure of a provider call. Its text is
// shown to users as ordinary chat content.
type ProviderFailure struct {
	Provider string
	Err      error
}

func (e *ProviderFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Provider, e.Err)
}

func (e *ProviderFailure) Unwrap() error { return e.Err }

// FusionFailure wraps a failure of fusion prompt assembly or synthesis.
type FusionFailure struct {
	Err error
}

func (e *FusionFailure) Error() string {
	return fmt.Sprintf("⚠ Fusion Error: %v", e.Err)
}

func (e *FusionFailure) Unwrap() error { return e.Err }

// Request error kinds. The web layer maps them to status codes.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrUnreadableDocument marks an upload the extractor cannot read, as
// opposed to a failure of the extraction backend.
var ErrUnreadableDocument = errors.New("unreadable document")

// RequestError is a failure caused by the request itself. Message is safe
// to show to the caller.
type RequestError struct {
	Kind    error
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return e.Kind }

func Invalid(message string) error {
	return &RequestError{Kind: ErrInvalidInput, Message: message}
}

func NotFound(message string) error {
	return &RequestError{Kind: ErrNotFound, Message: message}
}

func Unauthorized(message string) error {
	return &RequestError{Kind: ErrUnauthorized, Message: message}
}

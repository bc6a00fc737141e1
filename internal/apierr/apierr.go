// ABOUTME: Error taxonomy shared by the store, provider client, and services
// ABOUTME: Each failure carries a Kind that the HTTP layer maps to a status code

package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can branch on it without string matching.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindProvider      Kind = "provider"
	KindProtocol      Kind = "protocol"
	KindTimeout       Kind = "timeout"
	KindConfiguration Kind = "configuration"
	KindStorage       Kind = "storage"
	KindInternal      Kind = "internal"
)

// Error is a classified failure. Status and Body are only set for provider
// errors, where the upstream response is forwarded for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Body    string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Kind == KindProvider && e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation creates a ValidationError for bad or missing caller input.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NotFound creates a NotFoundError.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Provider creates a ProviderError carrying the upstream status and body.
func Provider(status int, body string) *Error {
	return &Error{
		Kind:    KindProvider,
		Message: fmt.Sprintf("elevenlabs API error (status %d)", status),
		Status:  status,
		Body:    body,
	}
}

// Protocol creates a ProtocolError for a successful upstream response that
// violated its documented shape.
func Protocol(msg string) *Error {
	return &Error{Kind: KindProtocol, Message: msg}
}

// Timeout creates a TimeoutError.
func Timeout(msg string, cause error) *Error {
	return &Error{Kind: KindTimeout, Message: msg, Cause: cause}
}

// Configuration creates a ConfigurationError.
func Configuration(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

// Storage creates a StorageError wrapping a persistence failure.
func Storage(msg string, cause error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Cause: cause}
}

// Wrap classifies an arbitrary error with the given kind.
func Wrap(cause error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code returned to callers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindProvider, KindProtocol:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

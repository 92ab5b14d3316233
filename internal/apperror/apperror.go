package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an application failure. Callers switch on the kind instead
// of comparing error types.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindPersistence    Kind = "persistence"
	KindNetwork        Kind = "network"
	KindRateLimit      Kind = "rate_limit"
	KindResponseFormat Kind = "response_format"
	KindUnsupported    Kind = "unsupported"
	KindProvider       Kind = "provider"
	KindInternal       Kind = "internal"
)

// Error is the single error variant used across the service. The Kind tag
// determines HTTP mapping and retry behaviour; Details carries per-field or
// per-failure context.
type Error struct {
	Kind       Kind
	Message    string
	Details    map[string]string
	RetryAfter time.Duration // set for KindRateLimit when the provider advertises one
	StatusCode int           // upstream HTTP status for KindProvider
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error with the given kind wrapping a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation creates a validation error carrying a field-path → reason map.
func Validation(details map[string]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "request validation failed",
		Details: details,
	}
}

// RateLimit creates a rate-limit error carrying the provider's advertised
// retry-after duration (zero when absent).
func RateLimit(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimit, Message: message, RetryAfter: retryAfter}
}

// Provider creates a generic upstream error carrying the status code and body.
func Provider(status int, body string) *Error {
	return &Error{
		Kind:       KindProvider,
		Message:    fmt.Sprintf("provider request failed with status %d", status),
		StatusCode: status,
		Details:    map[string]string{"body": body},
	}
}

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// As unwraps err into an *Error if possible.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Retriable reports whether a call that failed with err may be retried.
// Only transport failures and rate limits qualify; authentication, malformed
// requests and deterministic schema mismatches never do.
func Retriable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimit:
		return true
	default:
		return false
	}
}

// HTTPStatus maps the error kind to an HTTP response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindUnsupported:
		return http.StatusNotImplemented
	case KindNetwork, KindProvider, KindResponseFormat:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable code used in error response envelopes.
func (e *Error) Code() string {
	switch e.Kind {
	case KindValidation:
		return "bad_request"
	case KindAuthentication:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limited"
	case KindUnsupported:
		return "unsupported"
	case KindNetwork:
		return "upstream_unreachable"
	case KindProvider:
		return "upstream_error"
	case KindResponseFormat:
		return "bad_upstream_response"
	default:
		return "internal"
	}
}

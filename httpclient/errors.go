package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is implemented by errors that originate from the HTTP
// exchange itself: the remote answered with a non-2xx status, or the
// transport could not complete the exchange. The pipeline converts these
// into *HTTPError; every other error is passed through unchanged.
type TransportError interface {
	error
	// TransportResponse returns the response received, or nil if none was.
	TransportResponse() *RawResponse
	// TransportCode returns the transport's own error code, or "".
	TransportCode() string
}

// ErrorCode classifies transport errors.
type ErrorCode int

const (
	// ErrCodeTimeout indicates a request or connection timeout.
	ErrCodeTimeout ErrorCode = iota
	// ErrCodeConnection indicates a connection failure (refused, DNS, etc).
	ErrCodeConnection
	// ErrCodeAuth indicates an authentication/authorization failure (401/403).
	ErrCodeAuth
	// ErrCodeNotFound indicates the resource was not found (404).
	ErrCodeNotFound
	// ErrCodeRateLimit indicates rate limiting by the remote (429).
	ErrCodeRateLimit
	// ErrCodeValidation indicates a rejected request (other 4xx, malformed URL).
	ErrCodeValidation
	// ErrCodeServer indicates a server-side error (5xx).
	ErrCodeServer
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeConnection:
		return "connection"
	case ErrCodeAuth:
		return "auth"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeRateLimit:
		return "rate_limit"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is the transport error raised by Adapter.
type Error struct {
	// StatusCode is the HTTP status code (0 for connection-level errors).
	StatusCode int
	// Code classifies the error.
	Code ErrorCode
	// Message describes the error.
	Message string
	// Retryable hints whether repeating the request may succeed. Nothing in
	// this module retries.
	Retryable bool
	// Response is the response received, nil for connection-level errors.
	Response *RawResponse
	// Err is the underlying error.
	Err error
}

var _ TransportError = (*Error)(nil)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// TransportResponse implements TransportError.
func (e *Error) TransportResponse() *RawResponse {
	return e.Response
}

// TransportCode implements TransportError.
func (e *Error) TransportCode() string {
	return e.Code.String()
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(err error) *Error {
	return &Error{
		Code:      ErrCodeTimeout,
		Message:   err.Error(),
		Retryable: true,
		Err:       err,
	}
}

// NewConnectionError creates a connection error.
func NewConnectionError(err error) *Error {
	return &Error{
		Code:      ErrCodeConnection,
		Message:   err.Error(),
		Retryable: true,
		Err:       err,
	}
}

// NewCanceledError creates a connection error for an exchange the caller
// cancelled. It is not retryable.
func NewCanceledError(err error) *Error {
	return &Error{
		Code:    ErrCodeConnection,
		Message: err.Error(),
		Err:     err,
	}
}

// NewValidationError creates an error for a request that could not be built.
func NewValidationError(msg string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// ClassifyStatusCode converts a response into a typed error.
// Returns nil for 2xx status codes.
func ClassifyStatusCode(resp *RawResponse) *Error {
	code := resp.StatusCode
	e := &Error{
		StatusCode: code,
		Message:    fmt.Sprintf("HTTP %d", code),
		Response:   resp,
	}
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Code = ErrCodeAuth
	case code == http.StatusNotFound:
		e.Code = ErrCodeNotFound
	case code == http.StatusTooManyRequests:
		e.Code = ErrCodeRateLimit
		e.Retryable = true
	case code >= 400 && code < 500:
		e.Code = ErrCodeValidation
	case code >= 500:
		e.Code = ErrCodeServer
		e.Retryable = true
	default:
		e.Code = ErrCodeServer
	}
	return e
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

// IsConnection checks if an error is a connection error.
func IsConnection(err error) bool {
	return hasCode(err, ErrCodeConnection)
}

// IsAuth checks if an error is an authentication error.
func IsAuth(err error) bool {
	return hasCode(err, ErrCodeAuth)
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsRateLimit checks if an error is a remote rate-limit error.
func IsRateLimit(err error) bool {
	return hasCode(err, ErrCodeRateLimit)
}

// IsServerError checks if an error is a server error.
func IsServerError(err error) bool {
	return hasCode(err, ErrCodeServer)
}

// IsRetryable checks if an error is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

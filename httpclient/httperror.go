package httpclient

import (
	"errors"
	"maps"
	"net/http"
	"slices"
	"strconv"
)

const (
	unknownCode   = "Unknown Code"
	unknownReason = "Unknown error message"
)

// Diagnostic payload keys carried by HTTPError.Data.
const (
	DataBaseURL     = "base_url"
	DataURL         = "url"
	DataRequestData = "request_data"
	DataMethod      = "method"
	DataRequestID   = "request_id"
	DataHeaders     = "headers"
	DataBody        = "data"
)

// HTTPError is the normalized form of a transport error. Its message is
// "<code>: <reason>" and Data carries the request context and whatever the
// remote sent back. It is immutable once built.
type HTTPError struct {
	message string
	status  int
	data    map[string]any
	cause   TransportError
}

// newHTTPError builds the normalized error. diag is deep-copied; response
// headers and body are added when the transport received a response.
func newHTTPError(cause TransportError, diag map[string]any) *HTTPError {
	resp := cause.TransportResponse()

	code := cause.TransportCode()
	reason := cause.Error()
	var te *Error
	if errors.As(cause, &te) {
		reason = te.Message
	}
	status := 0
	if resp != nil && resp.StatusCode != 0 {
		status = resp.StatusCode
		code = strconv.Itoa(resp.StatusCode)
	}
	if resp != nil && resp.StatusText != "" {
		reason = resp.StatusText
	}
	if code == "" {
		code = unknownCode
	}
	if reason == "" {
		reason = unknownReason
	}

	data := clonePayload(diag)
	if resp != nil {
		if resp.Headers != nil {
			data[DataHeaders] = resp.Headers.Clone()
		}
		if resp.Body != nil {
			data[DataBody] = string(resp.Body)
		}
	}

	return &HTTPError{
		message: code + ": " + reason,
		status:  status,
		data:    data,
		cause:   cause,
	}
}

// Error implements the error interface.
func (e *HTTPError) Error() string { return e.message }

// Message returns "<code>: <reason>".
func (e *HTTPError) Message() string { return e.message }

// Data returns a deep copy of the diagnostic payload. Nested maps, headers
// and byte slices are copied too.
func (e *HTTPError) Data() map[string]any { return clonePayload(e.data) }

// StatusCode returns the response status, or 0 if no response was received.
func (e *HTTPError) StatusCode() int { return e.status }

// RequestID returns the correlation id of the failed call.
func (e *HTTPError) RequestID() string {
	id, _ := e.data[DataRequestID].(string)
	return id
}

// Unwrap returns the transport error this was built from.
func (e *HTTPError) Unwrap() error { return e.cause }

// AsHTTPError extracts an *HTTPError from err.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// IsHTTPError reports whether err is, or wraps, an *HTTPError.
func IsHTTPError(err error) bool {
	_, ok := AsHTTPError(err)
	return ok
}

func clonePayload(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+2)
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container types the pipeline puts in a payload.
// Other values are returned as they are.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return clonePayload(v)
	case map[string]string:
		return maps.Clone(v)
	case http.Header:
		return v.Clone()
	case []byte:
		return slices.Clone(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = cloneValue(v[i])
		}
		return out
	default:
		return v
	}
}

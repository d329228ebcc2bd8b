package httpclient

import (
	"context"
	"net/http"
	"time"
)

// Transport executes a single HTTP exchange. Implementations report
// exchange failures with errors satisfying TransportError so the pipeline
// can tell them apart from everything else.
type Transport interface {
	Do(ctx context.Context, req Request) (*RawResponse, error)
}

// Request describes one outbound exchange handed to a Transport.
type Request struct {
	// Method is the HTTP method (GET, POST, PUT, PATCH, DELETE, etc).
	Method string
	// BaseURL is prefixed to Path unless Path is already absolute.
	BaseURL string
	// Path is the request target relative to BaseURL.
	Path string
	// Headers are sent as-is.
	Headers map[string]string
	// Query are URL query parameters.
	Query map[string]string
	// Body is the request body. Accepts io.Reader, []byte, string, or any value
	// that will be JSON-encoded.
	Body any
	// Auth applies credentials to the request.
	Auth *AuthConfig
	// Timeout bounds this exchange in addition to ctx. Zero means no extra bound.
	Timeout time.Duration
}

// RawResponse is the undecoded result of an exchange.
type RawResponse struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// StatusText is the reason phrase, e.g. "Not Found".
	StatusText string
	// Headers are the response headers with every value the server sent.
	Headers http.Header
	// Body is the raw response body.
	Body []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *RawResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Response is the normalized result handed to callers. Data is decoded into
// the type the caller asked for; it is not validated.
type Response[T any] struct {
	Status     int         `json:"status"`
	StatusText string      `json:"statusText"`
	Headers    http.Header `json:"headers"`
	Data       T           `json:"data"`
}

package httpclient

import (
	"maps"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/httpkit/observability"
)

// RequestConfig is the per-call configuration. A Client also carries one as
// its defaults; the two are merged shallowly with per-call values winning.
type RequestConfig struct {
	// Headers replaces the default headers wholesale when set.
	Headers map[string]string
	// Query replaces the default query parameters wholesale when set.
	Query map[string]string
	// Timeout bounds the transport exchange.
	Timeout time.Duration
	// Auth is passed through to the transport.
	Auth *AuthConfig
	// Weight is the admission cost. Nil means the limiter's default cost.
	Weight *int
	// RequestID is the correlation id. Empty means a UUID v4 is generated.
	RequestID string
	// Extra is opaque caller context copied into logs and error payloads.
	Extra map[string]any
}

// merge returns c overridden by every non-zero field of override.
func (c RequestConfig) merge(override RequestConfig) RequestConfig {
	out := c
	if override.Headers != nil {
		out.Headers = override.Headers
	}
	if override.Query != nil {
		out.Query = override.Query
	}
	if override.Timeout != 0 {
		out.Timeout = override.Timeout
	}
	if override.Auth != nil {
		out.Auth = override.Auth
	}
	if override.Weight != nil {
		out.Weight = override.Weight
	}
	if override.RequestID != "" {
		out.RequestID = override.RequestID
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

// fields renders the config for logs and error payloads. Credentials are
// reduced to the auth type.
func (c RequestConfig) fields() map[string]any {
	f := make(map[string]any, len(c.Extra)+6)
	maps.Copy(f, c.Extra)
	if c.Headers != nil {
		f["headers"] = maps.Clone(c.Headers)
	}
	if c.Query != nil {
		f["query"] = maps.Clone(c.Query)
	}
	if c.Timeout != 0 {
		f["timeout"] = c.Timeout.String()
	}
	if c.Auth != nil {
		f["auth"] = c.Auth.String()
	}
	if c.Weight != nil {
		f["weight"] = *c.Weight
	}
	return f
}

// RequestOption configures a single request.
type RequestOption func(*RequestConfig)

// WithHeader adds a header to the request. The resulting map replaces the
// client's default headers.
func WithHeader(key, value string) RequestOption {
	return func(r *RequestConfig) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// WithHeaders sets the request headers, replacing the client's defaults.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *RequestConfig) {
		r.Headers = headers
	}
}

// WithQueryParam adds a query parameter to the request.
func WithQueryParam(key, value string) RequestOption {
	return func(r *RequestConfig) {
		if r.Query == nil {
			r.Query = make(map[string]string)
		}
		r.Query[key] = value
	}
}

// WithTimeout bounds the transport exchange.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *RequestConfig) {
		r.Timeout = d
	}
}

// WithAuth overrides authentication for the request.
func WithAuth(auth *AuthConfig) RequestOption {
	return func(r *RequestConfig) {
		r.Auth = auth
	}
}

// WithWeight sets the admission cost charged to the rate limiter.
func WithWeight(n int) RequestOption {
	return func(r *RequestConfig) {
		r.Weight = &n
	}
}

// WithRequestID sets the correlation id instead of generating one.
func WithRequestID(id string) RequestOption {
	return func(r *RequestConfig) {
		r.RequestID = id
	}
}

// WithExtra attaches a caller-defined value to logs and error payloads.
func WithExtra(key string, value any) RequestOption {
	return func(r *RequestConfig) {
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[key] = value
	}
}

// WithConfig replaces the whole per-call config.
func WithConfig(cfg RequestConfig) RequestOption {
	return func(r *RequestConfig) {
		*r = cfg
	}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Without one the client logs nothing.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithErrorFormatter sets a callback invoked with every normalized error.
func WithErrorFormatter(f ErrorFormatter) Option {
	return func(c *Client) {
		c.formatter = f
	}
}

// WithLimiter sets the admission gate, replacing one built from Config.RateLimit.
func WithLimiter(l Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithTransport replaces the net/http adapter.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithDefaults sets the default request config. Headers from Config are used
// when the defaults carry none.
func WithDefaults(d RequestConfig) Option {
	return func(c *Client) {
		c.defaults = d
	}
}

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithMetrics sets the instruments updated by every call.
func WithMetrics(m *observability.ClientMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

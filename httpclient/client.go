package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/httpkit/logger"
	"github.com/kbukum/httpkit/observability"
	"github.com/kbukum/httpkit/resilience"
)

// Logger receives the pipeline's structured log events. *logger.Logger
// satisfies it.
type Logger interface {
	Info(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
}

// Limiter is the admission gate consulted before every dispatch. Wait
// charges the limiter's default cost, WaitN an explicit weight. Both block
// until admitted or ctx is done. *resilience.RateLimiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
	WaitN(ctx context.Context, n int) error
}

// ErrorFormatter is called with every normalized error. It cannot change
// what the caller receives.
type ErrorFormatter func(err *HTTPError)

// Client runs every request through the same pipeline: correlation id,
// request log, admission, dispatch, normalization, response log. It is safe
// for concurrent use.
type Client struct {
	name      string
	baseURL   string
	defaults  RequestConfig
	transport Transport
	logger    Logger
	formatter ErrorFormatter
	limiter   Limiter
	tracer    trace.Tracer
	metrics   *observability.ClientMetrics
}

// NewClient creates a client. Unless WithTransport is given it builds an
// Adapter from cfg, and unless WithLimiter is given it builds a rate limiter
// from cfg.RateLimit when that is set.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		tracer:  observability.Tracer(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.defaults.Headers == nil {
		c.defaults.Headers = cfg.Headers
	}

	if c.transport == nil {
		adapter, err := NewAdapter(cfg)
		if err != nil {
			return nil, err
		}
		c.transport = adapter
	}

	if c.limiter == nil && cfg.RateLimit != nil {
		rlCfg := *cfg.RateLimit
		onLimit := rlCfg.OnLimit
		rlCfg.OnLimit = func(name string, wait time.Duration) {
			if c.metrics != nil {
				c.metrics.RecordThrottled(context.Background(), c.name)
			}
			if onLimit != nil {
				onLimit(name, wait)
			}
		}
		c.limiter = resilience.NewRateLimiter(rlCfg)
	}

	return c, nil
}

// Name returns the client name.
func (c *Client) Name() string { return c.name }

// BaseURL returns the base URL prefixed to request paths.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases resources held by the transport, if it holds any.
func (c *Client) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// call is the state of one pipeline run.
type call struct {
	method    string
	path      string
	url       string
	body      any
	perCall   RequestConfig
	merged    RequestConfig
	requestID string
}

func (c *Client) newCall(method, path string, body any, opts []RequestOption) *call {
	var perCall RequestConfig
	for _, opt := range opts {
		opt(&perCall)
	}

	id := perCall.RequestID
	if id == "" {
		id = uuid.NewString()
	}

	return &call{
		method:    method,
		path:      path,
		url:       resolveURL(c.baseURL, path),
		body:      body,
		perCall:   perCall,
		merged:    c.defaults.merge(perCall),
		requestID: id,
	}
}

// execute runs the steps shared by every verb up to the transport result.
// The returned start time is taken after admission.
func (c *Client) execute(ctx context.Context, cl *call) (*RawResponse, time.Time, error) {
	c.logRequest(cl)

	if err := c.admit(ctx, cl); err != nil {
		return nil, time.Now(), err
	}

	start := time.Now()
	raw, err := c.transport.Do(ctx, Request{
		Method:  cl.method,
		BaseURL: c.baseURL,
		Path:    cl.path,
		Headers: cl.merged.Headers,
		Query:   cl.merged.Query,
		Body:    cl.body,
		Auth:    cl.merged.Auth,
		Timeout: cl.merged.Timeout,
	})
	if err == nil && raw == nil {
		err = fmt.Errorf("httpclient: transport returned no response")
	}
	return raw, start, err
}

func (c *Client) admit(ctx context.Context, cl *call) error {
	if c.limiter == nil {
		return nil
	}
	if cl.perCall.Weight != nil {
		return c.limiter.WaitN(ctx, *cl.perCall.Weight)
	}
	return c.limiter.Wait(ctx)
}

// handleError turns transport errors into *HTTPError; everything else is
// logged and returned as is.
func (c *Client) handleError(cl *call, err error) error {
	var te TransportError
	if errors.As(err, &te) {
		he := newHTTPError(te, c.diagnostics(cl))
		c.logError(he.Message(), he.Data())
		if c.formatter != nil {
			c.formatter(he)
		}
		return he
	}

	c.logError(err.Error(), map[string]interface{}{
		logger.FieldRequestID: cl.requestID,
		logger.FieldMethod:    cl.method,
		logger.FieldBaseURL:   c.baseURL,
		logger.FieldURL:       cl.url,
		logger.FieldError:     fmt.Sprintf("%+v", err),
	})
	return err
}

// diagnostics is the payload attached to a normalized error.
func (c *Client) diagnostics(cl *call) map[string]any {
	d := cl.perCall.fields()
	d[DataBaseURL] = c.baseURL
	d[DataURL] = cl.path
	d[DataMethod] = cl.method
	d[DataRequestID] = cl.requestID
	if cl.body != nil {
		d[DataRequestData] = cl.body
	}
	return d
}

func (c *Client) logRequest(cl *call) {
	if c.logger == nil {
		return
	}
	fields := cl.perCall.fields()
	fields[logger.FieldRequestID] = cl.requestID
	if cl.body != nil {
		fields[DataRequestData] = cl.body
	}
	c.logger.Info(fmt.Sprintf("%s '%s' request", cl.method, cl.url), fields)
}

func (c *Client) logResponse(cl *call, resp any, elapsed time.Duration) {
	if c.logger == nil {
		return
	}
	fields := logger.MergeWithDuration(map[string]interface{}{
		logger.FieldRequestID: cl.requestID,
		logger.FieldResponse:  resp,
	}, elapsed)
	c.logger.Info(fmt.Sprintf("%s '%s' response", cl.method, cl.url), fields)
}

func (c *Client) logError(msg string, fields map[string]interface{}) {
	if c.logger == nil {
		return
	}
	c.logger.Error(msg, fields)
}

func (c *Client) startSpan(ctx context.Context, cl *call) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(observability.AttrClientName, c.name),
		attribute.String(observability.AttrMethod, cl.method),
		attribute.String(observability.AttrURL, cl.url),
		attribute.String(observability.AttrRequestID, cl.requestID),
	}
	if cl.perCall.Weight != nil {
		attrs = append(attrs, attribute.Int(observability.AttrWeight, *cl.perCall.Weight))
	}
	return c.tracer.Start(ctx, observability.SpanHTTPRequest,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// finish closes out instrumentation for a call. status is 0 when no
// response was received.
func (c *Client) finish(ctx context.Context, span trace.Span, cl *call, status int, elapsed time.Duration, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int(observability.AttrStatusCode, status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if c.metrics == nil {
		return
	}
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	c.metrics.RecordEnd(ctx, c.name, cl.method, statusLabel, elapsed)
	if err != nil {
		kind := observability.ErrorKindOther
		if IsHTTPError(err) {
			kind = observability.ErrorKindTransport
		}
		c.metrics.RecordError(ctx, c.name, kind)
	}
}

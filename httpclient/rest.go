package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/httpkit/logger"
)

// Get performs a GET request and decodes the response into type T.
func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*Response[T], error) {
	return Do[T](ctx, c, http.MethodGet, path, nil, opts...)
}

// Delete performs a DELETE request and decodes the response into type T.
func Delete[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*Response[T], error) {
	return Do[T](ctx, c, http.MethodDelete, path, nil, opts...)
}

// Post performs a POST request with body and decodes the response into type T.
func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return Do[T](ctx, c, http.MethodPost, path, body, opts...)
}

// Put performs a PUT request with body and decodes the response into type T.
func Put[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return Do[T](ctx, c, http.MethodPut, path, body, opts...)
}

// Patch performs a PATCH request with body and decodes the response into type T.
func Patch[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return Do[T](ctx, c, http.MethodPatch, path, body, opts...)
}

// Do runs the request pipeline for any method. Exactly one of the response
// and the error is non-nil. Transport failures come back as *HTTPError;
// any other failure is returned unchanged.
func Do[T any](ctx context.Context, c *Client, method, path string, body any, opts ...RequestOption) (*Response[T], error) {
	cl := c.newCall(method, path, body, opts)
	ctx = logger.ContextWithRequestID(ctx, cl.requestID)
	ctx, span := c.startSpan(ctx, cl)
	if c.metrics != nil {
		c.metrics.RecordStart(ctx, c.name, method)
	}

	raw, start, err := c.execute(ctx, cl)
	status := 0
	if err == nil {
		var resp *Response[T]
		resp, err = normalize[T](raw)
		if err == nil {
			elapsed := time.Since(start)
			c.logResponse(cl, resp, elapsed)
			c.finish(ctx, span, cl, resp.Status, elapsed, nil)
			return resp, nil
		}
		status = raw.StatusCode
	}

	err = c.handleError(cl, err)
	if he, ok := AsHTTPError(err); ok {
		status = he.StatusCode()
	}
	c.finish(ctx, span, cl, status, time.Since(start), err)
	return nil, err
}

// normalize projects a raw response into Response[T]. Status, status text
// and headers are carried over as received.
func normalize[T any](raw *RawResponse) (*Response[T], error) {
	data, err := decode[T](raw.Body)
	if err != nil {
		return nil, err
	}
	return &Response[T]{
		Status:     raw.StatusCode,
		StatusText: raw.StatusText,
		Headers:    raw.Headers,
		Data:       data,
	}, nil
}

// decode converts body into T: []byte is passed through, string converted,
// anything else JSON-decoded. An empty body yields the zero value.
func decode[T any](body []byte) (T, error) {
	var data T
	switch p := any(&data).(type) {
	case *[]byte:
		*p = body
		return data, nil
	case *string:
		*p = string(body)
		return data, nil
	}

	if len(body) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return data, fmt.Errorf("httpclient: decode response: %w", err)
	}
	return data, nil
}

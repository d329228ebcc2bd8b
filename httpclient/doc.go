// Package httpclient provides a typed HTTP request client with structured
// error normalization, optional client-side rate limiting, structured
// logging with request correlation, and OpenTelemetry instrumentation.
//
// Every verb runs through one pipeline:
//
//  1. resolve the correlation id (WithRequestID, else a UUID v4)
//  2. log the request
//  3. wait for rate limit admission, charging WithWeight or the default cost
//  4. dispatch to the Transport with the merged request config
//  5. decode the response into Response[T], or normalize the error
//  6. log the response with its duration
//
// Transport failures (non-2xx responses, connection errors, timeouts) are
// returned as *HTTPError with the message "<code>: <reason>" and a
// diagnostic payload. Any other error is returned unchanged.
//
// # Basic Usage
//
//	client, err := httpclient.NewClient(httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Headers: map[string]string{"Accept": "application/json"},
//	}, httpclient.WithLogger(logger.NewDefault("users")))
//
//	resp, err := httpclient.Get[User](ctx, client, "/users/123",
//	    httpclient.WithRequestID(id),
//	)
//
// # With Rate Limiting
//
//	client, err := httpclient.NewClient(httpclient.Config{
//	    BaseURL:   "https://api.example.com",
//	    RateLimit: httpclient.DefaultRateLimitConfig("users"),
//	})
//
//	// A bulk export costs five tokens.
//	resp, err := httpclient.Post[Export](ctx, client, "/exports", req, httpclient.WithWeight(5))
//
// Per-call config is merged shallowly over the client defaults: a per-call
// Headers map replaces the default headers rather than adding to them.
package httpclient

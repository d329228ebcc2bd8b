package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/httpkit/observability"
	"github.com/kbukum/httpkit/resilience"
	"github.com/kbukum/httpkit/testutil"
)

// fakeTransport records requests and answers through fn, or with resp/err.
type fakeTransport struct {
	mu   sync.Mutex
	reqs []Request
	resp *RawResponse
	err  error
	fn   func(ctx context.Context, req Request) (*RawResponse, error)
}

func (f *fakeTransport) Do(ctx context.Context, req Request) (*RawResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	fn, resp, err := f.fn, f.resp, f.err
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return resp, err
}

func (f *fakeTransport) requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.reqs...)
}

// fakeLimiter records admissions. When release is set it blocks until the
// channel is closed or ctx is done.
type fakeLimiter struct {
	mu      sync.Mutex
	weights []int // -1 for the default cost
	entered chan struct{}
	release chan struct{}
	onWait  func()
}

func (l *fakeLimiter) Wait(ctx context.Context) error { return l.wait(ctx, -1) }

func (l *fakeLimiter) WaitN(ctx context.Context, n int) error { return l.wait(ctx, n) }

func (l *fakeLimiter) wait(ctx context.Context, n int) error {
	l.mu.Lock()
	l.weights = append(l.weights, n)
	l.mu.Unlock()
	if l.onWait != nil {
		l.onWait()
	}
	if l.entered != nil {
		close(l.entered)
	}
	if l.release == nil {
		return nil
	}
	select {
	case <-l.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func okResponse(body string) *RawResponse {
	return &RawResponse{
		StatusCode: http.StatusOK,
		StatusText: "OK",
		Headers:    http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(body),
	}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(Config{Name: "test", BaseURL: "https://api.example.com"}, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name() != "http" {
		t.Errorf("expected default name http, got %s", c.Name())
	}
	if _, ok := c.transport.(*Adapter); !ok {
		t.Errorf("expected default transport *Adapter, got %T", c.transport)
	}
	if c.limiter != nil {
		t.Error("expected no limiter without RateLimit config")
	}
	if err := c.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "not a url"}); err == nil {
		t.Error("expected error for invalid base URL")
	}
}

func TestNewClient_BuildsRateLimiter(t *testing.T) {
	c, err := NewClient(Config{Name: "api", RateLimit: &resilience.RateLimiterConfig{Rate: 5, Burst: 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rl, ok := c.limiter.(*resilience.RateLimiter)
	if !ok {
		t.Fatalf("expected *resilience.RateLimiter, got %T", c.limiter)
	}
	if rl.Burst() != 3 || rl.Name() != "api" {
		t.Errorf("unexpected limiter: burst=%d name=%s", rl.Burst(), rl.Name())
	}
}

func TestPipeline_SuccessNormalization(t *testing.T) {
	ft := &fakeTransport{resp: &RawResponse{
		StatusCode: http.StatusCreated,
		StatusText: "Created",
		Headers:    http.Header{"Location": {"/users/7"}},
		Body:       []byte(`{"id":7,"name":"Bob"}`),
	}}
	c := newTestClient(t, WithTransport(ft))

	resp, err := Post[user](context.Background(), c, "/users", map[string]string{"name": "Bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != 201 || resp.StatusText != "Created" {
		t.Errorf("unexpected status: %d %q", resp.Status, resp.StatusText)
	}
	if resp.Headers.Get("Location") != "/users/7" {
		t.Errorf("unexpected headers: %v", resp.Headers)
	}
	if resp.Data != (user{ID: 7, Name: "Bob"}) {
		t.Errorf("unexpected data: %+v", resp.Data)
	}

	reqs := ft.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(reqs))
	}
	if reqs[0].Method != http.MethodPost || reqs[0].Path != "/users" || reqs[0].BaseURL != "https://api.example.com" {
		t.Errorf("unexpected dispatched request: %+v", reqs[0])
	}
}

func TestPipeline_AllVerbs(t *testing.T) {
	ft := &fakeTransport{resp: okResponse(`{}`)}
	c := newTestClient(t, WithTransport(ft))
	ctx := context.Background()

	calls := []func() error{
		func() error { _, err := Get[map[string]any](ctx, c, "/a"); return err },
		func() error { _, err := Delete[map[string]any](ctx, c, "/a"); return err },
		func() error { _, err := Post[map[string]any](ctx, c, "/a", 1); return err },
		func() error { _, err := Put[map[string]any](ctx, c, "/a", 1); return err },
		func() error { _, err := Patch[map[string]any](ctx, c, "/a", 1); return err },
		func() error { _, err := Do[map[string]any](ctx, c, http.MethodHead, "/a", nil); return err },
	}
	for i, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}

	want := []string{"GET", "DELETE", "POST", "PUT", "PATCH", "HEAD"}
	reqs := ft.requests()
	for i, m := range want {
		if reqs[i].Method != m {
			t.Errorf("call %d: expected %s, got %s", i, m, reqs[i].Method)
		}
	}
	if reqs[0].Body != nil || reqs[1].Body != nil {
		t.Error("expected no body for GET and DELETE")
	}
}

func TestPipeline_GeneratesRequestID(t *testing.T) {
	log := testutil.NewRecordingLogger()
	c := newTestClient(t, WithTransport(&fakeTransport{resp: okResponse(`{}`)}), WithLogger(log))

	if _, err := Get[any](context.Background(), c, "/x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected request and response logs, got %d", len(entries))
	}
	id, _ := entries[0].Fields["request_id"].(string)
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("expected a UUID request id, got %q", id)
	}
	if parsed.Version() != 4 {
		t.Errorf("expected UUID v4, got v%d", parsed.Version())
	}
	if entries[1].Fields["request_id"] != id {
		t.Errorf("response log carries a different id: %v", entries[1].Fields["request_id"])
	}
}

func TestPipeline_DistinctRequestIDs(t *testing.T) {
	log := testutil.NewRecordingLogger()
	c := newTestClient(t, WithTransport(&fakeTransport{resp: okResponse(`{}`)}), WithLogger(log))

	for i := 0; i < 5; i++ {
		if _, err := Get[any](context.Background(), c, "/x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seen := map[any]bool{}
	for _, e := range log.Entries() {
		if strings.HasSuffix(e.Message, "request") {
			seen[e.Fields["request_id"]] = true
		}
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct request ids, got %d", len(seen))
	}
}

func TestPipeline_CallerRequestIDInErrorPayload(t *testing.T) {
	ft := &fakeTransport{err: ClassifyStatusCode(&RawResponse{StatusCode: 500, StatusText: "Internal Server Error"})}
	log := testutil.NewRecordingLogger()
	c := newTestClient(t, WithTransport(ft), WithLogger(log))

	_, err := Get[any](context.Background(), c, "/x", WithRequestID("abc"))

	he, ok := AsHTTPError(err)
	if !ok {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if he.Data()["request_id"] != "abc" || he.RequestID() != "abc" {
		t.Errorf("expected request_id abc, got %v", he.Data()["request_id"])
	}
	for _, e := range log.Entries() {
		if e.Fields["request_id"] != "abc" {
			t.Errorf("log %q carries request_id %v", e.Message, e.Fields["request_id"])
		}
	}
}

func TestPipeline_LogMessagesAndFields(t *testing.T) {
	log := testutil.NewRecordingLogger()
	c := newTestClient(t, WithTransport(&fakeTransport{resp: okResponse(`{"id":1}`)}), WithLogger(log))

	resp, err := Post[user](context.Background(), c, "/users", map[string]string{"name": "a"},
		WithWeight(3), WithExtra("tenant", "t1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}

	req := entries[0]
	if req.Level != "info" || req.Message != "POST 'https://api.example.com/users' request" {
		t.Errorf("unexpected request log: %s %q", req.Level, req.Message)
	}
	if req.Fields["weight"] != 3 || req.Fields["tenant"] != "t1" {
		t.Errorf("expected per-call config fields, got %v", req.Fields)
	}
	if _, ok := req.Fields["request_data"]; !ok {
		t.Error("expected request body in request log")
	}

	res := entries[1]
	if res.Level != "info" || res.Message != "POST 'https://api.example.com/users' response" {
		t.Errorf("unexpected response log: %s %q", res.Level, res.Message)
	}
	if res.Fields["response"] != resp {
		t.Errorf("expected the returned response in the log, got %v", res.Fields["response"])
	}
	d, ok := res.Fields["duration_ms"].(int64)
	if !ok || d < 0 {
		t.Errorf("expected non-negative duration_ms, got %v", res.Fields["duration_ms"])
	}
}

func TestPipeline_NoLoggerNoLimiter(t *testing.T) {
	ft := &fakeTransport{resp: okResponse(`"hello"`)}
	c := newTestClient(t, WithTransport(ft))

	resp, err := Get[string](context.Background(), c, "/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data != `"hello"` {
		t.Errorf("expected raw string body, got %q", resp.Data)
	}
	if len(ft.requests()) != 1 {
		t.Error("expected immediate dispatch without a limiter")
	}
}

func TestPipeline_StepOrder(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	add := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	log := testutil.NewRecordingLogger()
	log.OnLog(func(e testutil.LogEntry) { add("log:" + e.Message) })
	lim := &fakeLimiter{onWait: func() { add("admit") }}
	ft := &fakeTransport{fn: func(context.Context, Request) (*RawResponse, error) {
		add("dispatch")
		return okResponse(`{}`), nil
	}}
	c := newTestClient(t, WithTransport(ft), WithLogger(log), WithLimiter(lim))

	if _, err := Get[any](context.Background(), c, "/x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"log:GET 'https://api.example.com/x' request",
		"admit",
		"dispatch",
		"log:GET 'https://api.example.com/x' response",
	}
	if strings.Join(events, "|") != strings.Join(want, "|") {
		t.Errorf("unexpected order:\n got %v\nwant %v", events, want)
	}
}

func TestPipeline_TransportWaitsForAdmission(t *testing.T) {
	log := testutil.NewRecordingLogger()
	lim := &fakeLimiter{entered: make(chan struct{}), release: make(chan struct{})}
	ft := &fakeTransport{resp: okResponse(`{}`)}
	c := newTestClient(t, WithTransport(ft), WithLogger(log), WithLimiter(lim))

	done := make(chan error, 1)
	go func() {
		_, err := Get[any](context.Background(), c, "/x")
		done <- err
	}()

	<-lim.entered
	if n := len(log.Entries()); n != 1 {
		t.Errorf("expected request log before admission completes, got %d entries", n)
	}
	if n := len(ft.requests()); n != 0 {
		t.Fatalf("transport called before admission: %d", n)
	}

	close(lim.release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(ft.requests()); n != 1 {
		t.Errorf("expected 1 dispatch after admission, got %d", n)
	}
}

func TestPipeline_AdmissionWeight(t *testing.T) {
	lim := &fakeLimiter{}
	c := newTestClient(t, WithTransport(&fakeTransport{resp: okResponse(`{}`)}), WithLimiter(lim))
	ctx := context.Background()

	if _, err := Get[any](ctx, c, "/x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Get[any](ctx, c, "/x", WithWeight(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fmt.Sprint(lim.weights) != "[-1 5]" {
		t.Errorf("expected default cost then weight 5, got %v", lim.weights)
	}
}

func TestPipeline_AdmissionCancelled(t *testing.T) {
	log := testutil.NewRecordingLogger()
	lim := &fakeLimiter{entered: make(chan struct{}), release: make(chan struct{})}
	ft := &fakeTransport{resp: okResponse(`{}`)}
	c := newTestClient(t, WithTransport(ft), WithLogger(log), WithLimiter(lim))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Get[any](ctx, c, "/x")
		done <- err
	}()

	<-lim.entered
	cancel()
	err := <-done

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if IsHTTPError(err) {
		t.Error("admission failure must not be normalized")
	}
	if len(ft.requests()) != 0 {
		t.Error("transport must not be called")
	}
	if len(log.ByLevel("error")) != 1 {
		t.Error("expected the failure to be logged at error level")
	}
}

func TestPipeline_WeightOverBurst(t *testing.T) {
	ft := &fakeTransport{resp: okResponse(`{}`)}
	c, err := NewClient(Config{RateLimit: &resilience.RateLimiterConfig{Rate: 1, Burst: 1}}, WithTransport(ft))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = Get[any](context.Background(), c, "/x", WithWeight(2))
	if !errors.Is(err, resilience.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(ft.requests()) != 0 {
		t.Error("transport must not be called")
	}
}

func TestPipeline_NotFound(t *testing.T) {
	ft := &fakeTransport{err: ClassifyStatusCode(&RawResponse{
		StatusCode: 404,
		StatusText: "Not Found",
		Headers:    http.Header{"X-Trace": {"t-1"}},
		Body:       []byte(`{"error":"no such user"}`),
	})}
	var formatted *HTTPError
	c := newTestClient(t, WithTransport(ft), WithErrorFormatter(func(e *HTTPError) { formatted = e }))

	resp, err := Get[user](context.Background(), c, "/users/9", WithRequestID("r-1"), WithExtra("tenant", "t1"))
	if resp != nil {
		t.Errorf("expected nil response, got %+v", resp)
	}

	he, ok := AsHTTPError(err)
	if !ok {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if he.Message() != "404: Not Found" || he.Error() != "404: Not Found" {
		t.Errorf("unexpected message %q", he.Message())
	}
	if he.StatusCode() != 404 {
		t.Errorf("expected status 404, got %d", he.StatusCode())
	}
	if formatted != he {
		t.Error("expected formatter to receive the returned error")
	}
	if !IsNotFound(err) {
		t.Error("expected transport classification through Unwrap")
	}

	data := he.Data()
	want := map[string]any{
		"tenant":     "t1",
		"base_url":   "https://api.example.com",
		"url":        "/users/9",
		"method":     "GET",
		"request_id": "r-1",
		"data":       `{"error":"no such user"}`,
	}
	for k, v := range want {
		if data[k] != v {
			t.Errorf("data[%q] = %v, want %v", k, data[k], v)
		}
	}
	if h, _ := data["headers"].(http.Header); h.Get("X-Trace") != "t-1" {
		t.Errorf("expected response headers in payload, got %v", data["headers"])
	}
	if _, ok := data["request_data"]; ok {
		t.Error("GET must not carry request_data")
	}
	if len(data) != len(want)+1 {
		t.Errorf("unexpected payload keys: %v", data)
	}
}

func TestPipeline_ErrorIncludesRequestData(t *testing.T) {
	body := map[string]string{"name": "x"}
	ft := &fakeTransport{err: ClassifyStatusCode(&RawResponse{StatusCode: 422, StatusText: "Unprocessable Entity"})}
	log := testutil.NewRecordingLogger()
	c := newTestClient(t, WithTransport(ft), WithLogger(log))

	_, err := Put[any](context.Background(), c, "/users/1", body)
	he, ok := AsHTTPError(err)
	if !ok {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if he.Message() != "422: Unprocessable Entity" {
		t.Errorf("unexpected message %q", he.Message())
	}
	if got, _ := he.Data()["request_data"].(map[string]string); got["name"] != "x" {
		t.Errorf("expected request_data, got %v", he.Data()["request_data"])
	}

	errs := log.ByLevel("error")
	if len(errs) != 1 || errs[0].Message != "422: Unprocessable Entity" {
		t.Fatalf("expected one error log with the message, got %v", errs)
	}
	if errs[0].Fields["method"] != "PUT" {
		t.Errorf("expected payload as log fields, got %v", errs[0].Fields)
	}
	if len(log.Entries()) != 2 {
		t.Error("expected no response log on failure")
	}
}

type bareTransportError struct{}

func (bareTransportError) Error() string                    { return "" }
func (bareTransportError) TransportResponse() *RawResponse { return nil }
func (bareTransportError) TransportCode() string            { return "" }

func TestPipeline_UnknownCodeAndReason(t *testing.T) {
	c := newTestClient(t, WithTransport(&fakeTransport{err: bareTransportError{}}))

	_, err := Get[any](context.Background(), c, "/x")
	he, ok := AsHTTPError(err)
	if !ok {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if he.Message() != "Unknown Code: Unknown error message" {
		t.Errorf("unexpected message %q", he.Message())
	}
	if _, ok := he.Data()["headers"]; ok {
		t.Error("expected no headers without a response")
	}
	if _, ok := he.Data()["data"]; ok {
		t.Error("expected no data without a response")
	}
}

func TestPipeline_ConnectionErrorUsesTransportCode(t *testing.T) {
	c := newTestClient(t, WithTransport(&fakeTransport{err: NewConnectionError(errors.New("connection refused"))}))

	_, err := Get[any](context.Background(), c, "/x")
	he, ok := AsHTTPError(err)
	if !ok {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if he.Message() != "connection: connection refused" {
		t.Errorf("unexpected message %q", he.Message())
	}
	if he.StatusCode() != 0 {
		t.Errorf("expected status 0, got %d", he.StatusCode())
	}
	if !IsConnection(err) {
		t.Error("expected IsConnection")
	}
}

func TestPipeline_NonTransportErrorReturnedByIdentity(t *testing.T) {
	boom := errors.New("boom")
	log := testutil.NewRecordingLogger()
	called := false
	c := newTestClient(t,
		WithTransport(&fakeTransport{err: boom}),
		WithLogger(log),
		WithErrorFormatter(func(*HTTPError) { called = true }),
	)

	resp, err := Get[any](context.Background(), c, "/x")
	if resp != nil {
		t.Error("expected nil response")
	}
	if err != boom {
		t.Fatalf("expected the original error value, got %v", err)
	}
	if called {
		t.Error("formatter must not see non-transport errors")
	}
	errs := log.ByLevel("error")
	if len(errs) != 1 || errs[0].Message != "boom" {
		t.Fatalf("expected error log with the message, got %v", errs)
	}
	if errs[0].Fields["base_url"] != "https://api.example.com" || !strings.HasSuffix(fmt.Sprint(errs[0].Fields["url"]), "/x") {
		t.Errorf("expected request context in the error log, got %v", errs[0].Fields)
	}
}

func TestPipeline_DecodeFailureIsNotNormalized(t *testing.T) {
	c := newTestClient(t, WithTransport(&fakeTransport{resp: okResponse(`not json`)}))

	_, err := Get[user](context.Background(), c, "/x")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if IsHTTPError(err) {
		t.Error("decode failure must not be normalized")
	}
	if !strings.Contains(err.Error(), "decode response") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPipeline_NilResponseFromTransport(t *testing.T) {
	c := newTestClient(t, WithTransport(&fakeTransport{}))

	_, err := Get[any](context.Background(), c, "/x")
	if err == nil || IsHTTPError(err) {
		t.Fatalf("expected a plain error, got %v", err)
	}
}

func TestPipeline_ShallowMerge(t *testing.T) {
	ft := &fakeTransport{resp: okResponse(`{}`)}
	c, err := NewClient(Config{Headers: map[string]string{"Accept": "application/json", "X-Team": "core"}},
		WithTransport(ft),
		WithDefaults(RequestConfig{Timeout: time.Second, Query: map[string]string{"v": "1"}}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if _, err := Get[any](ctx, c, "/x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Get[any](ctx, c, "/x", WithHeader("X-Other", "1"), WithTimeout(5*time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := ft.requests()
	if len(reqs[0].Headers) != 2 || reqs[0].Timeout != time.Second || reqs[0].Query["v"] != "1" {
		t.Errorf("expected defaults, got %+v", reqs[0])
	}
	if len(reqs[1].Headers) != 1 || reqs[1].Headers["X-Other"] != "1" {
		t.Errorf("expected per-call headers to replace defaults, got %v", reqs[1].Headers)
	}
	if reqs[1].Timeout != 5*time.Second {
		t.Errorf("expected per-call timeout to win, got %v", reqs[1].Timeout)
	}
	if reqs[1].Query["v"] != "1" {
		t.Errorf("expected default query to survive, got %v", reqs[1].Query)
	}
}

func TestPipeline_Concurrent(t *testing.T) {
	log := testutil.NewRecordingLogger()
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 1000, Burst: 100})
	c := newTestClient(t, WithTransport(&fakeTransport{resp: okResponse(`{"id":1}`)}), WithLogger(log), WithLimiter(rl))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Get[user](context.Background(), c, "/x"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if n := len(log.Entries()); n != 40 {
		t.Errorf("expected 40 log entries, got %d", n)
	}
}

func TestPipeline_Instrumentation(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := observability.NewClientMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ft := &fakeTransport{fn: func(_ context.Context, req Request) (*RawResponse, error) {
		if req.Path == "/missing" {
			return nil, ClassifyStatusCode(&RawResponse{StatusCode: 404, StatusText: "Not Found"})
		}
		return okResponse(`{}`), nil
	}}
	c := newTestClient(t, WithTransport(ft), WithTracer(tp.Tracer("test")), WithMetrics(metrics))
	ctx := context.Background()

	if _, err := Get[any](ctx, c, "/ok", WithRequestID("id-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Get[any](ctx, c, "/missing"); err == nil {
		t.Fatal("expected error")
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if spans[0].Name() != observability.SpanHTTPRequest {
		t.Errorf("unexpected span name %s", spans[0].Name())
	}
	if attrs[observability.AttrRequestID] != "id-1" || attrs[observability.AttrStatusCode] != "200" {
		t.Errorf("unexpected span attributes: %v", attrs)
	}
	if len(spans[1].Events()) == 0 {
		t.Error("expected the error to be recorded on the failed span")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			if m.Name == "http.client.error.total" {
				sum := m.Data.(metricdata.Sum[int64])
				if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
					t.Errorf("expected one transport error, got %+v", sum.DataPoints)
				}
			}
		}
	}
	for _, name := range []string{"http.client.request.total", "http.client.request.duration", "http.client.error.total"} {
		if !found[name] {
			t.Errorf("expected metric %s", name)
		}
	}
}

func TestPipeline_ThrottleHookRecordsMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := observability.NewClientMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var hooked int
	c, err := NewClient(Config{RateLimit: &resilience.RateLimiterConfig{
		Rate:    10,
		Burst:   1,
		OnLimit: func(string, time.Duration) { hooked++ },
	}}, WithTransport(&fakeTransport{resp: okResponse(`{}`)}), WithMetrics(metrics))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := Get[any](context.Background(), c, "/x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if hooked != 1 {
		t.Errorf("expected the caller's hook once, got %d", hooked)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "http.client.request.throttled" {
				if sum := m.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 1 {
					t.Errorf("expected 1 throttled admission, got %d", sum.DataPoints[0].Value)
				}
				return
			}
		}
	}
	t.Error("expected throttled metric")
}

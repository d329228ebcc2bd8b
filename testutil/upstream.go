package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Reply is one scripted upstream response.
type Reply struct {
	Status  int
	Headers http.Header
	Body    string
	// Delay holds the response back, for timeout tests.
	Delay time.Duration
}

// RecordedRequest is a request received by the upstream.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Upstream is a gin-backed httptest server that answers with scripted
// replies and records every request it receives.
type Upstream struct {
	engine *gin.Engine
	ts     *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewUpstream starts an upstream server. It is closed when the test ends.
func NewUpstream(tb testing.TB) *Upstream {
	tb.Helper()

	u := &Upstream{engine: gin.New()}
	u.engine.Use(u.record)
	u.ts = httptest.NewServer(u.engine)
	tb.Cleanup(u.Close)
	return u
}

// URL returns the server's base URL, e.g. "http://127.0.0.1:PORT".
func (u *Upstream) URL() string {
	return u.ts.URL
}

// Engine returns the gin engine for routes that need custom handlers.
func (u *Upstream) Engine() *gin.Engine {
	return u.engine
}

// Handle scripts the replies for method and path. Successive requests get
// successive replies; the last one repeats. Register each route once, before
// sending requests to it.
func (u *Upstream) Handle(method, path string, replies ...Reply) {
	if len(replies) == 0 {
		replies = []Reply{{Status: http.StatusOK}}
	}

	var (
		mu   sync.Mutex
		next int
	)
	u.engine.Handle(method, path, func(c *gin.Context) {
		mu.Lock()
		r := replies[next]
		if next < len(replies)-1 {
			next++
		}
		mu.Unlock()

		if r.Delay > 0 {
			select {
			case <-time.After(r.Delay):
			case <-c.Request.Context().Done():
				return
			}
		}
		for k, vs := range r.Headers {
			for _, v := range vs {
				c.Writer.Header().Add(k, v)
			}
		}
		status := r.Status
		if status == 0 {
			status = http.StatusOK
		}
		c.Status(status)
		if r.Body != "" {
			_, _ = c.Writer.WriteString(r.Body)
		}
	})
}

// JSON scripts a single reply with a JSON body.
func (u *Upstream) JSON(method, path string, status int, body string) {
	u.Handle(method, path, Reply{
		Status:  status,
		Headers: http.Header{"Content-Type": {"application/json"}},
		Body:    body,
	})
}

// Requests returns a copy of the requests received so far.
func (u *Upstream) Requests() []RecordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]RecordedRequest, len(u.requests))
	copy(out, u.requests)
	return out
}

// LastRequest returns the most recent request. ok is false if none arrived.
func (u *Upstream) LastRequest() (req RecordedRequest, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.requests) == 0 {
		return RecordedRequest{}, false
	}
	return u.requests[len(u.requests)-1], true
}

// Reset forgets recorded requests. Routes stay registered.
func (u *Upstream) Reset() {
	u.mu.Lock()
	u.requests = nil
	u.mu.Unlock()
}

// Close shuts the server down. Safe to call more than once.
func (u *Upstream) Close() {
	u.ts.Close()
}

func (u *Upstream) record(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	u.mu.Lock()
	u.requests = append(u.requests, RecordedRequest{
		Method:   c.Request.Method,
		Path:     c.Request.URL.Path,
		RawQuery: c.Request.URL.RawQuery,
		Header:   c.Request.Header.Clone(),
		Body:     body,
	})
	u.mu.Unlock()

	c.Next()
}

// Package testutil provides test doubles for code built on httpkit.
//
// Upstream is a scripted HTTP server backed by gin and httptest:
//
//	func TestFetch(t *testing.T) {
//	    up := testutil.NewUpstream(t)
//	    up.JSON(http.MethodGet, "/users/1", 200, `{"name":"Alice"}`)
//
//	    client, _ := httpclient.NewClient(httpclient.Config{BaseURL: up.URL()})
//	    resp, err := httpclient.Get[User](ctx, client, "/users/1")
//	    ...
//	    req, _ := up.LastRequest()
//	}
//
// RecordingLogger captures structured log events so tests can assert on
// messages, levels, fields and their order.
package testutil

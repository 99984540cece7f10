package intercept

import (
	"net/http"

	"github.com/simon-weber/httmock/packages/response"
	"github.com/simon-weber/httmock/packages/urlmatch"
)

// Handler is a candidate producer of synthetic responses. Returning
// (nil, nil) declines the request so the next candidate is tried; a
// non-nil error aborts dispatch and propagates to the caller of the
// client's request method.
//
// Method values satisfy Handler, so handlers may be bound methods.
type Handler func(u *urlmatch.URL, req *http.Request) (*response.Record, error)

// URLMatch wraps f so it only runs when the request URL satisfies m.
// Non-matching requests yield (nil, nil) without invoking f.
func URLMatch(m *urlmatch.Matcher, f Handler) Handler {
	return func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		if !m.Matches(u, req) {
			return nil, nil
		}
		return f(u, req)
	}
}

// AllRequests marks f as a handler for every request. It performs no
// component evaluation; f is invoked unconditionally.
func AllRequests(f Handler) Handler {
	return f
}

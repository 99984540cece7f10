// Package fault wraps handlers with injected failure modes: added latency,
// rate limiting and probabilistic error statuses. Wrappers only act when
// the inner handler matches the request; declined requests pass through
// untouched.
package fault

import (
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/simon-weber/httmock/packages/intercept"
	"github.com/simon-weber/httmock/packages/response"
	"github.com/simon-weber/httmock/packages/urlmatch"
)

// Latency delays h's responses by a random duration in [min, max] and adds
// the delay to the response's Elapsed. min == max gives a fixed delay.
func Latency(h intercept.Handler, min, max time.Duration) intercept.Handler {
	return func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		rec, err := h(u, req)
		if rec == nil || err != nil {
			return rec, err
		}
		d := min
		if max > min {
			d = min + time.Duration(rand.Int63n(int64(max-min)))
		}
		time.Sleep(d)
		rec.Elapsed += d
		return rec, nil
	}
}

// RateLimit gates h behind l. Requests h would answer while l denies get a
// synthetic error response with the given status instead; status 0 means
// 429 Too Many Requests.
func RateLimit(h intercept.Handler, l *rate.Limiter, status int) intercept.Handler {
	if status == 0 {
		status = http.StatusTooManyRequests
	}
	return func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		rec, err := h(u, req)
		if rec == nil || err != nil {
			return rec, err
		}
		if !l.Allow() {
			return response.NewForRequest(status, http.StatusText(status), nil, req)
		}
		return rec, nil
	}
}

// ErrorRate replaces a fraction p of h's responses with an error status
// drawn from codes; no codes means 500. p <= 0 never fires, p >= 1 always
// fires.
func ErrorRate(h intercept.Handler, p float64, codes ...int) intercept.Handler {
	if len(codes) == 0 {
		codes = []int{http.StatusInternalServerError}
	}
	return func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		rec, err := h(u, req)
		if rec == nil || err != nil {
			return rec, err
		}
		if p >= 1 || (p > 0 && rand.Float64() < p) {
			status := codes[rand.Intn(len(codes))]
			return response.NewForRequest(status, http.StatusText(status), nil, req)
		}
		return rec, nil
	}
}

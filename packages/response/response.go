package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Record is a canonical synthetic HTTP response. Once normalized it is a
// complete substitute for a response produced by real network I/O.
type Record struct {
	StatusCode int
	Reason     string
	Headers    map[string]string
	Body       []byte
	Elapsed    time.Duration

	request *http.Request
}

// Request returns the originating request this record answers, if one was
// supplied when the record was built.
func (r *Record) Request() *http.Request {
	return r.request
}

// Header returns the value of the named header, matching case-insensitively.
func (r *Record) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// ContentType returns the Content-Type header value.
func (r *Record) ContentType() string {
	return r.Header("Content-Type")
}

// Charset returns the charset declared in the Content-Type header,
// defaulting to utf-8.
func (r *Record) Charset() string {
	_, params, err := mime.ParseMediaType(r.ContentType())
	if err == nil {
		if cs := params["charset"]; cs != "" {
			return strings.ToLower(cs)
		}
	}
	return "utf-8"
}

// Text returns the raw body bytes as a string. UTF-8 bodies, the default,
// read correctly as-is; bodies declaring another charset are returned
// undecoded — consult Charset to transcode them.
func (r *Record) Text() string {
	return string(r.Body)
}

// JSON unmarshals the body into v. Invalid JSON surfaces as a parse error.
func (r *Record) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// JSONPath reads a gjson path from the body, e.g. "items.0.name".
func (r *Record) JSONPath(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// Cookies parses any Set-Cookie headers into cookies, the same way the
// standard library does for real responses.
func (r *Record) Cookies() []*http.Cookie {
	h := make(http.Header, len(r.Headers))
	for k, v := range r.Headers {
		h.Add(k, v)
	}
	return (&http.Response{Header: h}).Cookies()
}

// Cookie looks up a cookie by name.
func (r *Record) Cookie(name string) (string, bool) {
	for _, c := range r.Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Record) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// HTTPResponse converts the record into a *http.Response for req, so that
// callers of the real client cannot structurally distinguish it from a
// response read off the wire.
func (r *Record) HTTPResponse(req *http.Request) *http.Response {
	h := make(http.Header, len(r.Headers))
	for k, v := range r.Headers {
		h.Set(k, v)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.StatusCode, r.Reason),
		StatusCode:    r.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"
)

// ErrUnsupportedContent reports a handler content value of a shape this
// package cannot turn into a response body. It is a misuse of the handler
// contract and aborts dispatch rather than being treated as no-match.
var ErrUnsupportedContent = errors.New("unsupported response content")

// Fields is the structured-fields handler return shape. Zero values take
// defaults: status 200, empty body, derived reason, zero elapsed.
type Fields struct {
	StatusCode int
	Content    any
	Headers    map[string]string
	Reason     string
	Elapsed    time.Duration
}

// Build assembles the fields into a Record for req. See New for how
// Content is encoded.
func (f Fields) Build(req *http.Request) (*Record, error) {
	r, err := NewForRequest(f.StatusCode, f.Content, f.Headers, req)
	if err != nil {
		return nil, err
	}
	if f.Reason != "" {
		r.Reason = f.Reason
	}
	r.Elapsed = f.Elapsed
	return r, nil
}

// New builds a Record from a status code, a content value and optional
// headers. Content may be nil, a string, a []byte, a json.RawMessage, or
// any map/struct/slice value, which is serialized to JSON and tagged with
// an application/json content type unless one was already supplied. Other
// content shapes fail with ErrUnsupportedContent.
func New(status int, content any, headers map[string]string) (*Record, error) {
	return NewForRequest(status, content, headers, nil)
}

// NewForRequest is New with the originating request attached, so cookie
// handling can associate Set-Cookie headers with the request's target.
func NewForRequest(status int, content any, headers map[string]string, req *http.Request) (*Record, error) {
	body, ctype, err := encodeContent(content)
	if err != nil {
		return nil, err
	}

	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}

	r := &Record{
		StatusCode: status,
		Headers:    h,
		Body:       body,
		request:    req,
	}
	if ctype != "" && r.ContentType() == "" {
		r.Headers["Content-Type"] = ctype
	}
	return Normalize(r, req), nil
}

// Text builds a plain 200 response with the given body.
func Text(s string) *Record {
	r, _ := New(0, s, nil)
	return r
}

// Bytes builds a plain 200 response with the given body.
func Bytes(b []byte) *Record {
	r, _ := New(0, b, nil)
	return r
}

// Normalize fills a record's defaulted fields in place: status 200, reason
// from the standard reason-phrase table, non-nil header map, originating
// request if not already set. Normalizing an already-normalized record is
// a no-op, so Normalize(Normalize(r)) == Normalize(r).
func Normalize(r *Record, req *http.Request) *Record {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.Reason == "" {
		r.Reason = http.StatusText(r.StatusCode)
	}
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	if r.request == nil {
		r.request = req
	}
	return r
}

func encodeContent(content any) (body []byte, contentType string, err error) {
	switch c := content.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(c), "", nil
	case []byte:
		return c, "", nil
	case json.RawMessage:
		return c, "application/json", nil
	}

	v := reflect.ValueOf(content)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, "", nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		b, merr := json.Marshal(content)
		if merr != nil {
			return nil, "", fmt.Errorf("marshal response content: %w", merr)
		}
		return b, "application/json", nil
	}

	return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedContent, content)
}

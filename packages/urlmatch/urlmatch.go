// Package urlmatch matches decomposed request URLs against per-component
// conditions. A Matcher holds at most one condition per URL component;
// components without a condition match unconditionally.
package urlmatch

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
)

// URL is a read-only scheme/netloc/path/query view of a request's target
// address. It is derived from the request URL and never mutated.
type URL struct {
	Scheme string
	Netloc string // host or host:port
	Path   string
	Query  string // raw query string, without the leading "?"
}

// Split breaks a parsed URL into its matchable components.
func Split(u *url.URL) *URL {
	return &URL{
		Scheme: u.Scheme,
		Netloc: u.Host,
		Path:   u.Path,
		Query:  u.RawQuery,
	}
}

// Predicate decides whether a single URL component matches. It receives the
// component value and the outgoing request.
type Predicate func(value string, req *http.Request) bool

// Matcher evaluates per-component conditions against a URL. Conditions are
// checked in scheme, netloc, path, query order and evaluation stops at the
// first failure.
type Matcher struct {
	scheme    string
	schemeSet bool
	schemeFn  Predicate
	netloc   *regexp.Regexp
	netlocFn Predicate
	path     *regexp.Regexp
	pathFn   Predicate
	query    *regexp.Regexp
	queryFn  Predicate
}

// Option is a functional option for Matcher.
type Option func(*Matcher) error

// Scheme matches the URL scheme by exact equality. Scheme("") matches only
// URLs with no scheme.
func Scheme(s string) Option {
	return func(m *Matcher) error {
		m.scheme = s
		m.schemeSet = true
		m.schemeFn = nil
		return nil
	}
}

// SchemeFunc matches the URL scheme with a predicate.
func SchemeFunc(p Predicate) Option {
	return func(m *Matcher) error {
		m.schemeFn = p
		return nil
	}
}

// Netloc matches host[:port] against a regular expression. The pattern is
// applied with search semantics: it matches anywhere in the component
// unless it carries its own `^`/`$` anchors. Patterns like
// `(.*\.)?google\.com$` rely on this to cover every subdomain.
func Netloc(pattern string) Option {
	return func(m *Matcher) error {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("netloc pattern: %w", err)
		}
		m.netloc = re
		return nil
	}
}

// NetlocFunc matches host[:port] with a predicate.
func NetlocFunc(p Predicate) Option {
	return func(m *Matcher) error {
		m.netlocFn = p
		return nil
	}
}

// Path matches the URL path against a regular expression, with the same
// search semantics as Netloc.
func Path(pattern string) Option {
	return func(m *Matcher) error {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("path pattern: %w", err)
		}
		m.path = re
		return nil
	}
}

// PathFunc matches the URL path with a predicate.
func PathFunc(p Predicate) Option {
	return func(m *Matcher) error {
		m.pathFn = p
		return nil
	}
}

// Query matches the raw query string against a regular expression, with the
// same search semantics as Netloc.
func Query(pattern string) Option {
	return func(m *Matcher) error {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("query pattern: %w", err)
		}
		m.query = re
		return nil
	}
}

// QueryFunc matches the raw query string with a predicate.
func QueryFunc(p Predicate) Option {
	return func(m *Matcher) error {
		m.queryFn = p
		return nil
	}
}

// New creates a Matcher from the given options. It fails if a regular
// expression option does not compile.
func New(opts ...Option) (*Matcher, error) {
	m := &Matcher{}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on error, for package-level matcher variables.
func MustNew(opts ...Option) *Matcher {
	m, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Matches reports whether every configured condition holds for u.
func (m *Matcher) Matches(u *URL, req *http.Request) bool {
	if m.schemeFn != nil {
		if !m.schemeFn(u.Scheme, req) {
			return false
		}
	} else if m.schemeSet && m.scheme != u.Scheme {
		return false
	}

	if m.netlocFn != nil {
		if !m.netlocFn(u.Netloc, req) {
			return false
		}
	} else if m.netloc != nil && !m.netloc.MatchString(u.Netloc) {
		return false
	}

	if m.pathFn != nil {
		if !m.pathFn(u.Path, req) {
			return false
		}
	} else if m.path != nil && !m.path.MatchString(u.Path) {
		return false
	}

	if m.queryFn != nil {
		if !m.queryFn(u.Query, req) {
			return false
		}
	} else if m.query != nil && !m.query.MatchString(u.Query) {
		return false
	}

	return true
}

// Package fixture builds interception handlers from YAML route files.
//
// A fixture file declares routes in priority order; each route pairs a URL
// match specification with a static response, and may additionally gate on
// a JSON Schema the request body has to satisfy:
//
//	routes:
//	  - name: google
//	    match:
//	      netloc: (.*\.)?google\.com$
//	      path: ^/$
//	    response:
//	      status: 200
//	      body: Hello from Google
package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/simon-weber/httmock/packages/intercept"
	"github.com/simon-weber/httmock/packages/response"
	"github.com/simon-weber/httmock/packages/urlmatch"
)

// File is the top-level fixture document.
type File struct {
	Routes []Route `yaml:"routes"`
}

// Route pairs a match specification with the response it serves.
type Route struct {
	Name  string `yaml:"name"`
	Match Match  `yaml:"match"`
	// RequestSchema is an inline JSON Schema. When present, the route only
	// matches requests whose body validates against it.
	RequestSchema map[string]any `yaml:"request_schema"`
	Response      Response       `yaml:"response"`
}

// Match holds per-component URL conditions. Empty components match
// unconditionally; netloc, path and query are regular expressions with
// search semantics.
type Match struct {
	Scheme string `yaml:"scheme"`
	Netloc string `yaml:"netloc"`
	Path   string `yaml:"path"`
	Query  string `yaml:"query"`
}

// Response is the static response a route serves.
type Response struct {
	Status  int               `yaml:"status"`
	Body    string            `yaml:"body"`
	Headers map[string]string `yaml:"headers"`
}

// Load reads a fixture file and builds one handler per route, in file
// order.
func Load(path string) ([]intercept.Handler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Parse builds handlers from fixture document bytes.
func Parse(data []byte) ([]intercept.Handler, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	handlers := make([]intercept.Handler, 0, len(f.Routes))
	for i, route := range f.Routes {
		h, err := route.handler()
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", route.label(i), err)
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

func (r Route) label(i int) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("#%d", i)
}

func (r Route) handler() (intercept.Handler, error) {
	var opts []urlmatch.Option
	if r.Match.Scheme != "" {
		opts = append(opts, urlmatch.Scheme(r.Match.Scheme))
	}
	if r.Match.Netloc != "" {
		opts = append(opts, urlmatch.Netloc(r.Match.Netloc))
	}
	if r.Match.Path != "" {
		opts = append(opts, urlmatch.Path(r.Match.Path))
	}
	if r.Match.Query != "" {
		opts = append(opts, urlmatch.Query(r.Match.Query))
	}
	m, err := urlmatch.New(opts...)
	if err != nil {
		return nil, err
	}

	var schema *gojsonschema.Schema
	if r.RequestSchema != nil {
		raw, err := json.Marshal(r.RequestSchema)
		if err != nil {
			return nil, fmt.Errorf("request schema: %w", err)
		}
		schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("request schema: %w", err)
		}
	}

	resp := r.Response
	return intercept.URLMatch(m, func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		if schema != nil {
			ok, err := bodyMatchesSchema(req, schema)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
		}
		return response.NewForRequest(resp.Status, resp.Body, resp.Headers, req)
	}), nil
}

// bodyMatchesSchema validates the request body against schema, restoring
// the body so later candidates and the real transport can still read it.
// Bodies that are empty or not valid JSON decline rather than fail: the
// route simply does not match.
func bodyMatchesSchema(req *http.Request, schema *gojsonschema.Schema) (bool, error) {
	body, err := peekBody(req)
	if err != nil {
		return false, err
	}
	if len(body) == 0 {
		return false, nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return false, nil
	}
	return result.Valid(), nil
}

func peekBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

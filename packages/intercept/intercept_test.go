package intercept

import (
	"bytes"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon-weber/httmock/packages/response"
	"github.com/simon-weber/httmock/packages/urlmatch"
)

func anyMock(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
	return response.Text("Hello from " + u.Netloc), nil
}

var googleMock = URLMatch(
	urlmatch.MustNew(urlmatch.Netloc(`(.*\.)?google\.com$`), urlmatch.Path(`^/$`)),
	func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		return response.Text("Hello from Google"), nil
	},
)

var facebookMock = URLMatch(
	urlmatch.MustNew(urlmatch.Scheme("http"), urlmatch.Netloc(`(.*\.)?facebook\.com$`)),
	func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		return response.Text("Hello from Facebook"), nil
	},
)

// failIfInvoked builds a handler whose inner function must never run.
func failIfInvoked(t *testing.T, m *urlmatch.Matcher) Handler {
	t.Helper()
	return URLMatch(m, func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		t.Error("handler invoked for a non-matching request")
		return nil, nil
	})
}

func get(t *testing.T, c *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestMock_ReturnsRealResponseShape(t *testing.T) {
	c := &http.Client{}
	mock := New(AllRequests(anyMock))
	mock.Client = c

	mock.Run(func() {
		resp, body := get(t, c, "http://domain.com/")
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "200 OK", resp.Status)
		assert.Equal(t, "Hello from domain.com", body)
		assert.NotNil(t, resp.Request)
	})
}

func TestMock_SchemeFallback(t *testing.T) {
	c := &http.Client{}
	unmatched := failIfInvoked(t, urlmatch.MustNew(urlmatch.Scheme("swallow")))
	mock := New(unmatched, AllRequests(anyMock))
	mock.Client = c

	mock.Run(func() {
		_, body := get(t, c, "http://example.com/")
		assert.Equal(t, "Hello from example.com", body)
	})
}

func TestMock_PathFallback(t *testing.T) {
	c := &http.Client{}
	unmatched := failIfInvoked(t, urlmatch.MustNew(urlmatch.Path(`^never$`)))
	mock := New(unmatched, AllRequests(anyMock))
	mock.Client = c

	mock.Run(func() {
		_, body := get(t, c, "http://example.com/")
		assert.Equal(t, "Hello from example.com", body)
	})
}

func TestMock_NetlocFallback(t *testing.T) {
	c := &http.Client{}
	mock := New(googleMock, facebookMock)
	mock.Client = c

	mock.Run(func() {
		_, body := get(t, c, "http://google.com/")
		assert.Equal(t, "Hello from Google", body)

		_, body = get(t, c, "http://facebook.com/")
		assert.Equal(t, "Hello from Facebook", body)
	})
}

func TestMock_StructuredFieldsResponse(t *testing.T) {
	c := &http.Client{}
	mock := New(AllRequests(func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		return response.Fields{StatusCode: 400, Content: "Bad request."}.Build(req)
	}))
	mock.Client = c

	mock.Run(func() {
		resp, body := get(t, c, "http://example.com/")
		assert.Equal(t, 400, resp.StatusCode)
		assert.Equal(t, "Bad request.", body)
	})
}

func TestMock_JSONContent(t *testing.T) {
	c := &http.Client{}
	mock := New(AllRequests(func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		return response.Fields{
			Content: map[string]string{"name": "foo"},
			Headers: map[string]string{"content-type": "application/json"},
		}.Build(req)
	}))
	mock.Client = c

	mock.Run(func() {
		resp, body := get(t, c, "http://example.com/")
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"name":"foo"}`, body)
	})
}

func TestMock_RealRequestFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from the wire"))
	}))
	defer server.Close()

	c := &http.Client{}
	mock := New(googleMock, facebookMock)
	mock.Client = c

	mock.Run(func() {
		resp, body := get(t, c, server.URL+"/")
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "from the wire", body)
	})
	assert.Equal(t, int64(1), mock.PassthroughCalls())
}

func TestMock_FallbackInvokesSavedTransportOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	base := &countingTransport{next: http.DefaultTransport}
	c := &http.Client{Transport: base}
	mock := New(googleMock)
	mock.Client = c

	mock.Run(func() {
		resp, _ := get(t, c, server.URL+"/")
		assert.Equal(t, 204, resp.StatusCode)
	})

	assert.Equal(t, 1, base.calls)
	assert.Equal(t, server.URL+"/", base.lastURL)
}

type countingTransport struct {
	next    http.RoundTripper
	calls   int
	lastURL string
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls++
	t.lastURL = req.URL.String()
	return t.next.RoundTrip(req)
}

func TestMock_HandlerErrorAbortsRequest(t *testing.T) {
	c := &http.Client{}
	mock := New(AllRequests(func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		return response.Fields{Content: -1}.Build(req)
	}))
	mock.Client = c

	mock.Run(func() {
		_, err := c.Get("http://example.com/")
		require.Error(t, err)
		assert.ErrorIs(t, err, response.ErrUnsupportedContent)
	})
}

type closeTrackingBody struct {
	*strings.Reader
	closed bool
}

func (b *closeTrackingBody) Close() error {
	b.closed = true
	return nil
}

func TestMock_ClosesRequestBodyWhenMocked(t *testing.T) {
	c := &http.Client{}
	mock := New(AllRequests(anyMock))
	mock.Client = c

	body := &closeTrackingBody{Reader: strings.NewReader(`{"name": "foo"}`)}
	mock.Run(func() {
		resp, err := c.Post("http://example.com/users", "application/json", body)
		require.NoError(t, err)
		resp.Body.Close()
	})

	assert.True(t, body.closed, "transport must close the request body")
}

func TestMock_ClosesRequestBodyOnHandlerError(t *testing.T) {
	c := &http.Client{}
	mock := New(AllRequests(func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		return response.Fields{Content: -1}.Build(req)
	}))
	mock.Client = c

	body := &closeTrackingBody{Reader: strings.NewReader(`{"name": "foo"}`)}
	mock.Run(func() {
		_, err := c.Post("http://example.com/users", "application/json", body)
		require.Error(t, err)
	})

	assert.True(t, body.closed, "transport must close the request body on errors too")
}

func TestMock_InsertionOrderWins(t *testing.T) {
	c := &http.Client{}
	first := AllRequests(func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		return response.Text("first"), nil
	})
	second := AllRequests(func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		t.Error("second handler should never produce a response")
		return response.Text("second"), nil
	})
	mock := New(first, second)
	mock.Client = c

	mock.Run(func() {
		_, body := get(t, c, "http://example.com/")
		assert.Equal(t, "first", body)
	})
}

func TestMock_RestoresSavedTransport(t *testing.T) {
	base := &countingTransport{next: http.DefaultTransport}
	c := &http.Client{Transport: base}
	mock := New(AllRequests(anyMock))
	mock.Client = c

	mock.Activate()
	assert.Same(t, http.RoundTripper(mock), c.Transport)
	mock.Deactivate()
	assert.Same(t, http.RoundTripper(base), c.Transport)
}

func TestMock_RestoresNilTransport(t *testing.T) {
	c := &http.Client{}
	mock := New(AllRequests(anyMock))
	mock.Client = c

	mock.Run(func() {
		_, body := get(t, c, "http://example.com/")
		assert.Equal(t, "Hello from example.com", body)
	})
	assert.Nil(t, c.Transport)
}

func TestMock_RestoresOnPanic(t *testing.T) {
	base := &countingTransport{next: http.DefaultTransport}
	c := &http.Client{Transport: base}
	mock := New(AllRequests(anyMock))
	mock.Client = c

	assert.Panics(t, func() {
		mock.Run(func() {
			panic("boom")
		})
	})
	assert.Same(t, http.RoundTripper(base), c.Transport)
}

func TestMock_NestedScopes(t *testing.T) {
	c := &http.Client{}

	outer := New(AllRequests(func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		return response.Text("outer"), nil
	}))
	outer.Client = c

	inner := New(googleMock)
	inner.Client = c

	outer.Run(func() {
		inner.Run(func() {
			// The inner scope answers what it matches and hands the rest
			// to the outer scope's dispatcher.
			_, body := get(t, c, "http://google.com/")
			assert.Equal(t, "Hello from Google", body)

			_, body = get(t, c, "http://example.com/")
			assert.Equal(t, "outer", body)
		})
		assert.Same(t, http.RoundTripper(outer), c.Transport)

		_, body := get(t, c, "http://google.com/")
		assert.Equal(t, "outer", body)
	})
	assert.Nil(t, c.Transport)
}

func TestMock_Cookies(t *testing.T) {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &http.Client{Jar: jar}

	mock := New(AllRequests(func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		return response.NewForRequest(200, "Foo", map[string]string{"Set-Cookie": "foo=bar;"}, req)
	}))
	mock.Client = c

	mock.Run(func() {
		resp, _ := get(t, c, "https://foo.example/")
		cookies := resp.Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "foo", cookies[0].Name)
		assert.Equal(t, "bar", cookies[0].Value)
	})
}

type greeter struct {
	greeting string
}

func (g *greeter) handle(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
	return response.Text(g.greeting + " from " + u.Netloc), nil
}

func TestMock_BoundMethodHandler(t *testing.T) {
	c := &http.Client{}
	g := &greeter{greeting: "Oh hai"}
	mock := New(AllRequests(g.handle))
	mock.Client = c

	mock.Run(func() {
		_, body := get(t, c, "https://foo.example/")
		assert.Equal(t, "Oh hai from foo.example", body)
	})
}

func TestRun_DefaultClient(t *testing.T) {
	Run(func() {
		resp, err := http.Get("http://example.com/")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "Hello from example.com", string(body))
	}, AllRequests(anyMock))

	assert.Nil(t, http.DefaultClient.Transport)
}

func TestMock_Counters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	c := &http.Client{}
	mock := New(googleMock)
	mock.Client = c

	mock.Run(func() {
		get(t, c, "http://google.com/")
		get(t, c, "http://google.com/")
		get(t, c, server.URL+"/")
	})

	assert.Equal(t, int64(3), mock.TotalCalls())
	assert.Equal(t, int64(2), mock.MockedCalls())
	assert.Equal(t, int64(1), mock.PassthroughCalls())
}

func TestMock_Logging(t *testing.T) {
	var buf bytes.Buffer
	c := &http.Client{}
	mock := New(googleMock)
	mock.Client = c
	mock.Logger = zerolog.New(&buf)

	mock.Run(func() {
		get(t, c, "http://google.com/")
	})

	out := buf.String()
	assert.Contains(t, out, "request mocked")
	assert.Contains(t, out, "request_id")
	assert.Contains(t, out, "http://google.com/")
}

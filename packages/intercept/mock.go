package intercept

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/simon-weber/httmock/packages/response"
	"github.com/simon-weber/httmock/packages/urlmatch"
)

// Mock is an interception scope over a client's transport. While active it
// serves as the client's RoundTripper, dispatching each request to its
// handlers in insertion order and falling back to the transport that was
// in place at activation when none of them answer.
//
// Client and Logger may be set between New and Activate; changing them on
// an active Mock is not supported.
type Mock struct {
	// Client is the client whose transport is patched while the mock is
	// active. Defaults to http.DefaultClient.
	Client *http.Client

	// Logger receives one event per dispatched request. Defaults to a
	// no-op logger.
	Logger zerolog.Logger

	handlers []Handler

	mu       sync.Mutex
	active   bool
	patched  *http.Client
	saved    http.RoundTripper // restored verbatim on Deactivate
	fallback http.RoundTripper // saved, with nil resolved to http.DefaultTransport

	total       atomic.Int64
	mocked      atomic.Int64
	passthrough atomic.Int64
}

// New builds an inactive Mock that consults handlers in order.
func New(handlers ...Handler) *Mock {
	return &Mock{
		Client: http.DefaultClient,
		Logger: zerolog.Nop(),

		handlers: handlers,
	}
}

// Activate saves the client's current transport and installs the mock in
// its place. Activating an already-active mock is a no-op.
func (m *Mock) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return
	}

	m.patched = m.Client
	if m.patched == nil {
		m.patched = http.DefaultClient
	}
	m.saved = m.patched.Transport
	m.fallback = m.saved
	if m.fallback == nil {
		m.fallback = http.DefaultTransport
	}
	m.patched.Transport = m
	m.active = true
}

// Deactivate restores the transport that was saved at activation,
// unconditionally. Deactivating an inactive mock is a no-op.
func (m *Mock) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}

	m.patched.Transport = m.saved
	m.patched = nil
	m.active = false
}

// Run invokes fn with the mock active. The saved transport is restored on
// every exit path, including a panic inside fn.
func (m *Mock) Run(fn func()) {
	m.Activate()
	defer m.Deactivate()
	fn()
}

// Run activates a one-off mock over handlers around fn.
func Run(fn func(), handlers ...Handler) {
	New(handlers...).Run(fn)
}

// RoundTrip dispatches req to the mock's handlers. The first handler that
// answers wins; handler errors abort the request; if every handler
// declines, the request goes out over the saved transport and the real
// result is returned verbatim.
func (m *Mock) RoundTrip(req *http.Request) (*http.Response, error) {
	m.total.Add(1)
	u := urlmatch.Split(req.URL)

	trace := m.Logger.GetLevel() != zerolog.Disabled
	id := ""
	if trace {
		id = uuid.NewString()
	}

	for i, h := range m.handlers {
		rec, err := h(u, req)
		if err != nil {
			// The RoundTripper contract makes the transport responsible
			// for closing the request body, on errors too.
			if req.Body != nil {
				_ = req.Body.Close()
			}
			if trace {
				m.Logger.Error().Str("request_id", id).Str("url", req.URL.String()).
					Int("handler", i).Err(err).Msg("handler failed")
			}
			return nil, err
		}
		if rec == nil {
			continue
		}

		m.mocked.Add(1)
		if req.Body != nil {
			_ = req.Body.Close()
		}
		rec = response.Normalize(rec, req)
		if trace {
			m.Logger.Debug().Str("request_id", id).Str("url", req.URL.String()).
				Int("handler", i).Int("status", rec.StatusCode).Msg("request mocked")
		}
		return rec.HTTPResponse(req), nil
	}

	m.passthrough.Add(1)
	if trace {
		m.Logger.Debug().Str("request_id", id).Str("url", req.URL.String()).
			Msg("request passed through")
	}
	return m.fallback.RoundTrip(req)
}

// TotalCalls returns how many requests the mock has dispatched.
func (m *Mock) TotalCalls() int64 {
	return m.total.Load()
}

// MockedCalls returns how many dispatched requests a handler answered.
func (m *Mock) MockedCalls() int64 {
	return m.mocked.Load()
}

// PassthroughCalls returns how many dispatched requests fell back to the
// saved transport.
func (m *Mock) PassthroughCalls() int64 {
	return m.passthrough.Load()
}

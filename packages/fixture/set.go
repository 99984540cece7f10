package fixture

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/simon-weber/httmock/packages/intercept"
	"github.com/simon-weber/httmock/packages/response"
	"github.com/simon-weber/httmock/packages/urlmatch"
)

// WatchDebounceDelay is how long Watch waits after a file event before
// reloading, coalescing bursts of writes.
const WatchDebounceDelay = 100 * time.Millisecond

// Set holds the handlers loaded from one fixture file and supports
// swapping them out atomically on reload.
type Set struct {
	path string
	log  zerolog.Logger

	mu       sync.RWMutex
	handlers []intercept.Handler
}

// Option is a functional option for Set.
type Option func(*Set)

// WithLogger sets the logger for reload and watch events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Set) {
		s.log = l
	}
}

// NewSet loads a fixture file into a Set.
func NewSet(path string, opts ...Option) (*Set, error) {
	s := &Set{
		path: path,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the fixture file. On failure the current handlers stay
// in place.
func (s *Set) Reload() error {
	handlers, err := Load(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.handlers = handlers
	s.mu.Unlock()

	s.log.Debug().Str("path", s.path).Int("routes", len(handlers)).Msg("fixture loaded")
	return nil
}

// Handler dispatches over the set's current routes in file order. The
// returned handler stays valid across reloads.
func (s *Set) Handler() intercept.Handler {
	return func(u *urlmatch.URL, req *http.Request) (*response.Record, error) {
		s.mu.RLock()
		handlers := s.handlers
		s.mu.RUnlock()

		for _, h := range handlers {
			rec, err := h(u, req)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				return rec, nil
			}
		}
		return nil, nil
	}
}

// Watch reloads the set whenever its file is written, until ctx is done.
// Reload failures keep the previous routes and are logged.
func (s *Set) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fixture watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(WatchDebounceDelay, func() {
				if err := s.Reload(); err != nil {
					s.log.Error().Err(err).Str("path", s.path).Msg("fixture reload failed")
				}
			})
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error().Err(werr).Msg("fixture watcher error")
		}
	}
}

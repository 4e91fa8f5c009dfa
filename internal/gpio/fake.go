package gpio

import (
	"errors"
	"io"
	"sync"
)

// FakeWatcher is a test double; Fire delivers an edge to a watched line.
type FakeWatcher struct {
	mu       sync.Mutex
	handlers map[int]Handler

	// WatchError, if set, will be returned by Watch.
	WatchError error

	// Isolated records offsets passed to Isolate.
	Isolated []int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeWatcher creates a FakeWatcher.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{handlers: map[int]Handler{}}
}

// Watch records the handler for offset.
func (f *FakeWatcher) Watch(offset int, edge Edge, fn Handler) (io.Closer, error) {
	if f.WatchError != nil {
		return nil, f.WatchError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.handlers[offset]; busy {
		return nil, errors.New("line busy")
	}
	f.handlers[offset] = fn
	return closerFunc(func() error {
		f.mu.Lock()
		delete(f.handlers, offset)
		f.mu.Unlock()
		return nil
	}), nil
}

// Isolate records offset.
func (f *FakeWatcher) Isolate(offset int) (io.Closer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Isolated = append(f.Isolated, offset)
	return closerFunc(func() error { return nil }), nil
}

// Watched reports whether offset currently has a handler.
func (f *FakeWatcher) Watched(offset int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[offset]
	return ok
}

// Fire calls the handler for offset and reports whether one was registered.
func (f *FakeWatcher) Fire(offset int, rising bool) bool {
	f.mu.Lock()
	fn := f.handlers[offset]
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(Event{Offset: offset, Rising: rising})
	return true
}

// Close marks the watcher as closed.
func (f *FakeWatcher) Close() error {
	f.Closed = true
	return nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

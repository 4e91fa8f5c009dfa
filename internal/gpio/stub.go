//go:build !linux

package gpio

import (
	"errors"
	"io"
)

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns an error on non-Linux platforms.
func NewRealWatcher(chipName string) (*RealWatcher, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Watch is not implemented on non-Linux platforms.
func (w *RealWatcher) Watch(offset int, edge Edge, fn Handler) (io.Closer, error) {
	return nil, errors.New("gpio: not supported")
}

// Isolate is not implemented on non-Linux platforms.
func (w *RealWatcher) Isolate(offset int) (io.Closer, error) {
	return nil, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (w *RealWatcher) Close() error {
	return nil
}

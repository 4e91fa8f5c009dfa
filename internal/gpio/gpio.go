// Package gpio watches GPIO input lines for edges with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"io"
	"time"
)

// Edge selects which transitions a watch reports.
type Edge int

const (
	EdgeFalling Edge = iota
	EdgeRising
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeFalling:
		return "falling"
	case EdgeRising:
		return "rising"
	case EdgeBoth:
		return "both"
	}
	return "unknown"
}

// Event is one observed edge on a watched line.
type Event struct {
	Offset int
	Rising bool
	Time   time.Duration // kernel timestamp, monotonic
}

// Handler is called for each edge. It runs on the watcher's event goroutine,
// the closest thing to interrupt context here: it must not block.
type Handler func(Event)

// Watcher watches input lines for edges.
type Watcher interface {
	// Watch requests offset as a pulled-up input and calls fn on each edge.
	// Closing the returned Closer stops the watch and releases the line.
	Watch(offset int, edge Edge, fn Handler) (io.Closer, error)

	// Isolate holds offset as an input with bias disabled (high impedance)
	// until the returned Closer is closed.
	Isolate(offset int) (io.Closer, error)

	// Close releases the chip.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultWakePin = 17 // external wake: enters data extraction
	DefaultQuitPin = 27 // ends a data extraction session early
)

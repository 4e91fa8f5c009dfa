//go:build linux

package gpio

import (
	"fmt"
	"io"

	"github.com/warthog618/go-gpiocdev"
)

// RealWatcher watches lines on a Linux GPIO character device.
type RealWatcher struct {
	chip *gpiocdev.Chip
}

// NewRealWatcher opens the named chip (e.g. "gpiochip0").
func NewRealWatcher(chipName string) (*RealWatcher, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealWatcher{chip: chip}, nil
}

// Watch requests offset with a pull-up and the requested edge detection.
// gpiocdev delivers events from its own goroutine; fn must not block.
func (w *RealWatcher) Watch(offset int, edge Edge, fn Handler) (io.Closer, error) {
	var edgeOpt gpiocdev.LineReqOption
	switch edge {
	case EdgeRising:
		edgeOpt = gpiocdev.WithRisingEdge
	case EdgeBoth:
		edgeOpt = gpiocdev.WithBothEdges
	default:
		edgeOpt = gpiocdev.WithFallingEdge
	}

	handler := func(evt gpiocdev.LineEvent) {
		fn(Event{
			Offset: evt.Offset,
			Rising: evt.Type == gpiocdev.LineEventRisingEdge,
			Time:   evt.Timestamp,
		})
	}

	line, err := w.chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		edgeOpt,
		gpiocdev.WithEventHandler(handler))
	if err != nil {
		return nil, fmt.Errorf("request pin %d: %w", offset, err)
	}
	return &watch{line: line}, nil
}

// Isolate requests offset as an input with no pull so it draws no current.
func (w *RealWatcher) Isolate(offset int) (io.Closer, error) {
	line, err := w.chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithBiasDisabled)
	if err != nil {
		return nil, fmt.Errorf("isolate pin %d: %w", offset, err)
	}
	return line, nil
}

// Close releases the chip.
func (w *RealWatcher) Close() error {
	if w.chip == nil {
		return nil
	}
	if err := w.chip.Close(); err != nil {
		return fmt.Errorf("close chip: %w", err)
	}
	return nil
}

type watch struct {
	line *gpiocdev.Line
}

// Close reconfigures the line as a plain input before releasing it, so a
// sleeping board does not leave edge detection armed on an abandoned request.
func (w *watch) Close() error {
	var errs []error
	if err := w.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithoutEdges); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin: %w", err))
	}
	if err := w.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

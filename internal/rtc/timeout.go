package rtc

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a transaction exceeds its bounded wait.
var ErrTimeout = errors.New("rtc: bus timeout")

// DefaultTimeout bounds a single transaction.
const DefaultTimeout = 100 * time.Millisecond

// TimeoutBus bounds every transaction on an inner bus and retries timed-out
// transactions up to Retries extra times. Other errors are returned at once.
type TimeoutBus struct {
	Inner   Bus
	Timeout time.Duration
	Retries int
}

// NewTimeoutBus wraps inner with DefaultTimeout and two retries.
func NewTimeoutBus(inner Bus) *TimeoutBus {
	return &TimeoutBus{Inner: inner, Timeout: DefaultTimeout, Retries: 2}
}

// Tx runs the transaction, waiting at most Timeout per attempt.
func (b *TimeoutBus) Tx(addr uint16, w, r []byte) error {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var err error
	for attempt := 0; attempt <= b.Retries; attempt++ {
		err = b.once(addr, w, r, timeout)
		if !errors.Is(err, ErrTimeout) {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts", err, b.Retries+1)
}

func (b *TimeoutBus) once(addr uint16, w, r []byte, timeout time.Duration) error {
	// Read into a private buffer so an abandoned attempt cannot write into r late.
	buf := make([]byte, len(r))
	done := make(chan error, 1)
	go func() {
		done <- b.Inner.Tx(addr, w, buf)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err == nil {
			copy(r, buf)
		}
		return err
	case <-timer.C:
		return ErrTimeout
	}
}

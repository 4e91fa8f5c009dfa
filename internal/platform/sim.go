package platform

import (
	"log"
	"time"
)

// Sim emulates the power hardware on any host. Deep sleep blocks until the
// armed timer expires or Pin receives, then re-executes like Sysfs does.
type Sim struct {
	// Pin delivers external-pin presses (the command wires it to SIGUSR1).
	Pin <-chan struct{}

	// Exec starts the next boot. Defaults to Reexec.
	Exec ExecFunc

	cause  WakeCause
	pins   uint64
	period time.Duration
	mask   uint64
}

// NewSim returns a simulated platform for the current boot.
func NewSim(pin <-chan struct{}) *Sim {
	cause, mask := CauseFromEnv()
	return &Sim{Pin: pin, Exec: Reexec, cause: cause, pins: mask}
}

// WakeCause reports why this boot happened.
func (s *Sim) WakeCause() WakeCause { return s.cause }

// WakePins is the mask of pins behind an ExternalPin wake.
func (s *Sim) WakePins() uint64 { return s.pins }

// EnableTimerWakeup records the sleep period.
func (s *Sim) EnableTimerWakeup(d time.Duration) error {
	s.period = d
	log.Printf("platform: enabling timer wakeup, %v (simulated)", d)
	return nil
}

// EnableExtWakeup records the pin mask.
func (s *Sim) EnableExtWakeup(mask uint64, level Level) error {
	s.mask = mask
	log.Printf("platform: enabling ext wakeup mask=0x%x level=%s (simulated)", mask, level)
	return nil
}

// IsolatePins does nothing in simulation.
func (s *Sim) IsolatePins() error { return nil }

// DeepSleep waits for a wake source then starts the next boot.
func (s *Sim) DeepSleep() error {
	log.Printf("platform: entering deep sleep (simulated)")

	var timer <-chan time.Time
	if s.period > 0 {
		t := time.NewTimer(s.period)
		defer t.Stop()
		timer = t.C
	}
	pin := s.Pin
	if s.mask == 0 {
		pin = nil
	}

	cause, pins := Undefined, uint64(0)
	select {
	case <-timer:
		cause = TimerExpired
	case <-pin:
		cause, pins = ExternalPin, uint64(1)<<uint(FirstPin(s.mask))
	}

	exec := s.Exec
	if exec == nil {
		exec = Reexec
	}
	return exec(cause, pins)
}

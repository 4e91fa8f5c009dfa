package platform

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sweeney/dutycycle-logger/internal/gpio"
)

// Kernel interfaces used by Sysfs.
const (
	DefaultWakeAlarmPath  = "/sys/class/rtc/rtc0/wakealarm"
	DefaultPowerStatePath = "/sys/power/state"
	DefaultSleepState     = "mem"
)

// settle gives the GPIO event goroutine time to deliver an edge that
// happened during suspend before the wake cause is decided.
const settle = 50 * time.Millisecond

// Sysfs drives a Linux board: the RTC wake alarm for the timer, GPIO edge
// requests for the external pin, and /sys/power/state for sleep.
type Sysfs struct {
	WakeAlarmPath  string
	PowerStatePath string
	SleepState     string

	// Pins watches wake pins and isolates IsolateOffsets before sleep.
	Pins           gpio.Watcher
	IsolateOffsets []int

	// Exec starts the next boot after resume. Defaults to Reexec.
	Exec ExecFunc

	cause WakeCause
	pins  uint64

	hits    atomic.Uint64
	holds   []io.Closer
	timerOn bool
}

// NewSysfs returns a Sysfs platform for the current boot, reading the wake
// cause from the environment.
func NewSysfs(pins gpio.Watcher) *Sysfs {
	cause, mask := CauseFromEnv()
	return &Sysfs{
		WakeAlarmPath:  DefaultWakeAlarmPath,
		PowerStatePath: DefaultPowerStatePath,
		SleepState:     DefaultSleepState,
		Pins:           pins,
		Exec:           Reexec,
		cause:          cause,
		pins:           mask,
	}
}

// WakeCause reports why this boot happened.
func (s *Sysfs) WakeCause() WakeCause { return s.cause }

// WakePins is the mask of pins behind an ExternalPin wake.
func (s *Sysfs) WakePins() uint64 { return s.pins }

// EnableTimerWakeup clears any pending alarm then arms a relative one.
// The RTC alarm has one-second resolution; d is rounded up.
func (s *Sysfs) EnableTimerWakeup(d time.Duration) error {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs <= 0 {
		return fmt.Errorf("wake alarm: period %v too short", d)
	}
	if err := os.WriteFile(s.WakeAlarmPath, []byte("0"), 0); err != nil {
		return fmt.Errorf("clear wake alarm: %w", err)
	}
	if err := os.WriteFile(s.WakeAlarmPath, []byte("+"+strconv.FormatInt(secs, 10)), 0); err != nil {
		return fmt.Errorf("set wake alarm: %w", err)
	}
	s.timerOn = true
	log.Printf("platform: enabling timer wakeup, %ds", secs)
	return nil
}

// EnableExtWakeup requests an edge watch on every pin in mask. The edge
// handler only records the pin, so it never blocks the event goroutine.
func (s *Sysfs) EnableExtWakeup(mask uint64, level Level) error {
	if mask == 0 {
		return errors.New("ext wakeup: empty pin mask")
	}
	if s.Pins == nil {
		return errors.New("ext wakeup: no gpio watcher")
	}

	edge := gpio.EdgeFalling
	if level == WakeOnHigh {
		edge = gpio.EdgeRising
	}
	for i := 0; i < 64; i++ {
		bit := uint64(1) << uint(i)
		if mask&bit == 0 {
			continue
		}
		c, err := s.Pins.Watch(i, edge, func(gpio.Event) { s.markHit(bit) })
		if err != nil {
			return fmt.Errorf("ext wakeup pin %d: %w", i, err)
		}
		s.holds = append(s.holds, c)
		log.Printf("platform: enabling ext wakeup on pin %d (%s)", i, level)
	}
	return nil
}

func (s *Sysfs) markHit(bit uint64) {
	for {
		old := s.hits.Load()
		if s.hits.CompareAndSwap(old, old|bit) {
			return
		}
	}
}

// IsolatePins holds each configured offset in high impedance until sleep ends.
func (s *Sysfs) IsolatePins() error {
	if s.Pins == nil {
		return nil
	}
	for _, off := range s.IsolateOffsets {
		c, err := s.Pins.Isolate(off)
		if err != nil {
			return err
		}
		s.holds = append(s.holds, c)
		log.Printf("platform: isolated pin %d", off)
	}
	return nil
}

// DeepSleep suspends the board. The write returns after resume; the wake
// cause is then decided and the process re-executes itself.
func (s *Sysfs) DeepSleep() error {
	log.Printf("platform: entering deep sleep (%s)", s.SleepState)
	if err := os.WriteFile(s.PowerStatePath, []byte(s.SleepState), 0); err != nil {
		return fmt.Errorf("suspend: %w", err)
	}

	time.Sleep(settle)
	cause, pins := s.resolveCause()
	s.release()
	log.Printf("platform: resumed, wake cause %s", cause)

	exec := s.Exec
	if exec == nil {
		exec = Reexec
	}
	return exec(cause, pins)
}

// resolveCause prefers a recorded pin edge, then a consumed RTC alarm (the
// kernel empties wakealarm once it fires).
func (s *Sysfs) resolveCause() (WakeCause, uint64) {
	if hits := s.hits.Load(); hits != 0 {
		return ExternalPin, hits
	}
	if s.timerOn {
		data, err := os.ReadFile(s.WakeAlarmPath)
		if err == nil && strings.TrimSpace(string(data)) == "" {
			return TimerExpired, 0
		}
	}
	return Undefined, 0
}

func (s *Sysfs) release() {
	for _, c := range s.holds {
		if err := c.Close(); err != nil {
			log.Printf("platform: release pin: %v", err)
		}
	}
	s.holds = nil
}

// Package platform abstracts the power-management hardware: the wake-cause
// register, wake-source arming and deep sleep.
//
// Deep sleep terminates the boot. On Linux the process suspends the board and,
// once resumed, re-executes itself so the next boot starts from main with no
// volatile state. The wake cause travels to the new process in the
// environment, which is the only thing that survives the exec.
package platform

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// WakeCause is why the current boot happened.
type WakeCause int

const (
	ColdBoot WakeCause = iota
	TimerExpired
	ExternalPin
	Undefined
)

func (c WakeCause) String() string {
	switch c {
	case ColdBoot:
		return "cold-boot"
	case TimerExpired:
		return "timer"
	case ExternalPin:
		return "external-pin"
	case Undefined:
		return "undefined"
	}
	return "unknown"
}

// ParseWakeCause is the inverse of String. Unknown values are Undefined.
func ParseWakeCause(s string) WakeCause {
	switch s {
	case "", "cold-boot":
		return ColdBoot
	case "timer":
		return TimerExpired
	case "external-pin":
		return ExternalPin
	}
	return Undefined
}

// Level is the pin level (or edge towards it) that wakes the board.
type Level int

const (
	WakeOnLow Level = iota
	WakeOnHigh
)

func (l Level) String() string {
	if l == WakeOnHigh {
		return "high"
	}
	return "low"
}

// Platform is the power-management hardware.
type Platform interface {
	// WakeCause reports why this boot happened. Fixed for the whole boot.
	WakeCause() WakeCause

	// WakePins is the mask of pins that caused an ExternalPin wake.
	WakePins() uint64

	// EnableTimerWakeup arms a one-shot wake after d.
	EnableTimerWakeup(d time.Duration) error

	// EnableExtWakeup arms a wake on any pin in mask reaching level.
	EnableExtWakeup(mask uint64, level Level) error

	// IsolatePins disconnects analog-sensitive pins to cut leakage in sleep.
	IsolatePins() error

	// DeepSleep enters deep sleep. On success it does not return: the next
	// code to run is a fresh boot. A returned error means sleep failed.
	DeepSleep() error
}

// Environment variables carrying the wake cause across re-exec.
const (
	EnvWakeCause = "DUTYCYCLE_WAKE_CAUSE"
	EnvWakePins  = "DUTYCYCLE_WAKE_PINS"
)

// CauseFromEnv reads the wake cause left by the previous boot. An empty
// environment means this is a cold boot.
func CauseFromEnv() (WakeCause, uint64) {
	cause := ParseWakeCause(os.Getenv(EnvWakeCause))
	pins, _ := strconv.ParseUint(os.Getenv(EnvWakePins), 10, 64)
	return cause, pins
}

// ExecFunc starts the next boot. Reexec is the production implementation.
type ExecFunc func(cause WakeCause, pins uint64) error

// Reexec replaces the current process with a fresh copy of itself.
// It only returns on failure.
func Reexec(cause WakeCause, pins uint64) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("re-exec: locate executable: %w", err)
	}
	env := WakeEnv(os.Environ(), cause, pins)
	if err := syscall.Exec(exe, os.Args, env); err != nil {
		return fmt.Errorf("re-exec %s: %w", exe, err)
	}
	return nil
}

// WakeEnv returns env with the wake variables replaced.
func WakeEnv(env []string, cause WakeCause, pins uint64) []string {
	out := make([]string, 0, len(env)+2)
	for _, kv := range env {
		if strings.HasPrefix(kv, EnvWakeCause+"=") || strings.HasPrefix(kv, EnvWakePins+"=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out,
		EnvWakeCause+"="+cause.String(),
		EnvWakePins+"="+strconv.FormatUint(pins, 10))
}

// FirstPin returns the lowest set bit in mask, or -1.
func FirstPin(mask uint64) int {
	for i := 0; i < 64; i++ {
		if mask&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

package platform

import (
	"fmt"
	"time"
)

// Fake is a test double that records every call in order.
type Fake struct {
	Cause WakeCause
	Pins  uint64

	// Calls records method calls, e.g. "EnableTimerWakeup(30s)".
	Calls []string

	// OnCall, if set, is invoked with each call name as it is recorded.
	OnCall func(call string)

	// Errors returned by the matching methods when set.
	TimerError   error
	ExtError     error
	IsolateError error
	SleepError   error

	TimerPeriod time.Duration
	ExtMask     uint64
	ExtLevel    Level
	Slept       bool
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
	if f.OnCall != nil {
		f.OnCall(call)
	}
}

// WakeCause returns Cause.
func (f *Fake) WakeCause() WakeCause {
	f.record("WakeCause")
	return f.Cause
}

// WakePins returns Pins.
func (f *Fake) WakePins() uint64 { return f.Pins }

// EnableTimerWakeup records d.
func (f *Fake) EnableTimerWakeup(d time.Duration) error {
	f.record(fmt.Sprintf("EnableTimerWakeup(%v)", d))
	if f.TimerError != nil {
		return f.TimerError
	}
	f.TimerPeriod = d
	return nil
}

// EnableExtWakeup records the mask and level.
func (f *Fake) EnableExtWakeup(mask uint64, level Level) error {
	f.record(fmt.Sprintf("EnableExtWakeup(0x%x,%s)", mask, level))
	if f.ExtError != nil {
		return f.ExtError
	}
	f.ExtMask = mask
	f.ExtLevel = level
	return nil
}

// IsolatePins records the call.
func (f *Fake) IsolatePins() error {
	f.record("IsolatePins")
	return f.IsolateError
}

// DeepSleep records the call and returns, standing in for the reset.
func (f *Fake) DeepSleep() error {
	f.record("DeepSleep")
	if f.SleepError != nil {
		return f.SleepError
	}
	f.Slept = true
	return nil
}

package rtc

import (
	"errors"
	"sync"
	"time"
)

// FakeBus is a test double holding a DS3231 register map.
type FakeBus struct {
	mu sync.Mutex

	// Regs holds register contents indexed by address.
	Regs [0x13]byte

	// Absent makes every transaction fail as if nothing answered.
	Absent bool

	// FailReg, if set, makes reads of these registers fail.
	FailReg map[byte]error

	// Delay is slept before each transaction completes.
	Delay time.Duration

	// Calls counts transactions.
	Calls int
}

// NewFakeBus creates a FakeBus preloaded with dt.
func NewFakeBus(dt DateTime) *FakeBus {
	b := &FakeBus{}
	b.SetTime(dt)
	return b
}

// SetTime loads dt into the time registers.
func (b *FakeBus) SetTime(dt DateTime) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := dt.Encode()
	b.Regs[RegSeconds] = f.Seconds
	b.Regs[RegMinutes] = f.Minutes
	b.Regs[RegHours] = f.Hours
	b.Regs[RegWeekday] = f.Weekday
	b.Regs[RegDay] = f.Day
	b.Regs[RegMonth] = f.Month
	b.Regs[RegYear] = f.Year
}

// Tx emulates register-pointer addressing: w[0] selects the register, any
// further bytes in w are written from there, then r is filled from there.
func (b *FakeBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	b.Calls++
	delay := b.Delay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Absent || addr != Address {
		return errors.New("nack")
	}
	if len(w) == 0 {
		return errors.New("missing register address")
	}
	reg := int(w[0])
	if err, ok := b.FailReg[w[0]]; ok && len(r) > 0 {
		return err
	}
	for i, v := range w[1:] {
		if reg+i < len(b.Regs) {
			b.Regs[reg+i] = v
		}
	}
	for i := range r {
		if reg+i >= len(b.Regs) {
			return errors.New("register out of range")
		}
		r[i] = b.Regs[reg+i]
	}
	return nil
}

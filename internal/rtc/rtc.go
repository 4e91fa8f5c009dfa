// Package rtc reads date and time from an external real-time clock.
// Register values are returned as raw BCD so the caller decides when to decode.
// The real bus uses the Linux I2C character device through periph.io.
// The fake bus allows testing without hardware.
package rtc

import (
	"errors"
	"fmt"
	"time"
)

// Clock reads the current date and time.
type Clock interface {
	// ReadTime returns a snapshot of all seven time registers.
	// On any register failure it returns the zero TimeFields and the error.
	ReadTime() (TimeFields, error)

	// Close releases bus resources.
	Close() error
}

// Bus performs one I2C transaction: write w, then read len(r) bytes.
// periph.io i2c.Bus and TinyGo drivers.I2C both satisfy it.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// ErrNotFound is returned when no device answers at the clock address.
var ErrNotFound = errors.New("rtc: device not found")

// century is added to the year register, which only stores the offset.
const century = 2000

// TimeFields holds the raw BCD register contents of one clock read.
type TimeFields struct {
	Seconds byte
	Minutes byte
	Hours   byte
	Weekday byte
	Day     byte
	Month   byte
	Year    byte // offset from 2000
}

// DateTime is the decimal form of TimeFields.
type DateTime struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Second  int
	Weekday int
}

// BCDToDec decodes a binary-coded-decimal byte. Malformed nibbles are not
// rejected; they decode to a meaningless but bounded value.
func BCDToDec(v byte) int {
	return int((v/16)*10 + v%16)
}

// DecToBCD encodes a decimal value in [0,99] as BCD.
func DecToBCD(v int) byte {
	return byte((v/10)*16 + v%10)
}

// Decode converts every field from BCD to decimal.
func (f TimeFields) Decode() DateTime {
	return DateTime{
		Year:    century + BCDToDec(f.Year),
		Month:   BCDToDec(f.Month),
		Day:     BCDToDec(f.Day),
		Hour:    BCDToDec(f.Hours),
		Minute:  BCDToDec(f.Minutes),
		Second:  BCDToDec(f.Seconds),
		Weekday: BCDToDec(f.Weekday),
	}
}

// Encode converts a DateTime back to register form.
func (d DateTime) Encode() TimeFields {
	return TimeFields{
		Seconds: DecToBCD(d.Second),
		Minutes: DecToBCD(d.Minute),
		Hours:   DecToBCD(d.Hour),
		Weekday: DecToBCD(d.Weekday),
		Day:     DecToBCD(d.Day),
		Month:   DecToBCD(d.Month),
		Year:    DecToBCD(d.Year - century),
	}
}

// FromTime converts t to a DateTime. Weekday runs 1 (Sunday) to 7.
func FromTime(t time.Time) DateTime {
	return DateTime{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		Weekday: int(t.Weekday()) + 1,
	}
}

// Clock renders the time of day as HH:MM:SS.
func (d DateTime) Clock() string {
	return fmt.Sprintf("%02d:%02d:%02d", d.Hour, d.Minute, d.Second)
}

// String renders the full date and time for log lines.
func (d DateTime) String() string {
	return fmt.Sprintf("%02d/%02d/%04d %s (day %d)", d.Day, d.Month, d.Year, d.Clock(), d.Weekday)
}

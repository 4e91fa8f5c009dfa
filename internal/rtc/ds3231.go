package rtc

import (
	"errors"
	"fmt"
	"log"
)

// Address is the fixed 7-bit I2C address of the DS3231.
const Address = 0x68

// DS3231 register map.
const (
	RegSeconds byte = 0x00
	RegMinutes byte = 0x01
	RegHours   byte = 0x02
	RegWeekday byte = 0x03
	RegDay     byte = 0x04
	RegMonth   byte = 0x05
	RegYear    byte = 0x06
)

// DS3231 reads a DS3231 clock one register at a time.
type DS3231 struct {
	bus  Bus
	addr uint16
}

// Open probes the clock on bus and returns a reader for it.
// A device that does not answer yields ErrNotFound.
func Open(bus Bus) (*DS3231, error) {
	if bus == nil {
		return nil, errors.New("rtc: nil bus")
	}
	d := &DS3231{bus: bus, addr: Address}
	if _, err := d.ReadRegister(RegSeconds); err != nil {
		return nil, fmt.Errorf("%w at 0x%02x: %v", ErrNotFound, Address, err)
	}
	log.Printf("rtc: DS3231 detected at 0x%02x", Address)
	return d, nil
}

// ReadRegister writes the register address then reads one byte back.
func (d *DS3231) ReadRegister(reg byte) (byte, error) {
	var buf [1]byte
	if err := d.bus.Tx(d.addr, []byte{reg}, buf[:]); err != nil {
		return 0, fmt.Errorf("read register 0x%02x: %w", reg, err)
	}
	return buf[0], nil
}

// ReadTime reads seconds through year. Any failure discards the partial read.
func (d *DS3231) ReadTime() (TimeFields, error) {
	regs := [...]byte{RegSeconds, RegMinutes, RegHours, RegWeekday, RegDay, RegMonth, RegYear}
	var raw [len(regs)]byte
	for i, reg := range regs {
		v, err := d.ReadRegister(reg)
		if err != nil {
			log.Printf("rtc: %v", err)
			return TimeFields{}, err
		}
		raw[i] = v
	}

	f := TimeFields{
		Seconds: raw[0],
		Minutes: raw[1],
		Hours:   raw[2],
		Weekday: raw[3],
		Day:     raw[4],
		Month:   raw[5],
		Year:    raw[6],
	}
	log.Printf("rtc: %s", f.Decode())
	return f, nil
}

// SetTime writes all seven registers in a single burst.
func (d *DS3231) SetTime(dt DateTime) error {
	if dt.Year < century || dt.Year >= century+100 {
		return fmt.Errorf("rtc: year %d out of range", dt.Year)
	}
	f := dt.Encode()
	w := []byte{RegSeconds, f.Seconds, f.Minutes, f.Hours, f.Weekday, f.Day, f.Month, f.Year}
	if err := d.bus.Tx(d.addr, w, nil); err != nil {
		return fmt.Errorf("rtc: set time: %w", err)
	}
	return nil
}

// Close is a no-op; the bus is owned by whoever opened it.
func (d *DS3231) Close() error {
	return nil
}

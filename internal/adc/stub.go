//go:build !linux

package adc

import (
	"errors"

	"periph.io/x/conn/v3/i2c"
)

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// OpenADS1115 returns an error on non-Linux platforms.
func OpenADS1115(bus i2c.Bus, chA, chB int, calibrated bool) (*RealReader, error) {
	return nil, errors.New("adc: not supported on this platform (requires Linux)")
}

// ReadA is not implemented on non-Linux platforms.
func (r *RealReader) ReadA() (int, error) {
	return 0, errors.New("adc: not supported")
}

// ReadB is not implemented on non-Linux platforms.
func (r *RealReader) ReadB() (int, error) {
	return 0, errors.New("adc: not supported")
}

// Calibrated is always false on non-Linux platforms.
func (r *RealReader) Calibrated() bool {
	return false
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

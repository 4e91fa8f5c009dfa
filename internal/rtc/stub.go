//go:build !linux

package rtc

import (
	"errors"

	"periph.io/x/conn/v3/i2c"
)

// OpenI2C returns an error on non-Linux platforms.
func OpenI2C(name string) (i2c.BusCloser, error) {
	return nil, errors.New("rtc: i2c not supported on this platform (requires Linux)")
}

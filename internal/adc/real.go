//go:build linux

package adc

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// fullScale is the input range requested per channel (the ADS1115 picks the
// nearest gain that covers it).
const fullScale = 4096 * physic.MilliVolt

// sampleRate is the conversion rate requested per channel.
const sampleRate = 8 * physic.Hertz

// RealReader reads two ADS1115 single-ended channels.
type RealReader struct {
	dev        *ads1x15.Dev
	pinA       ads1x15.PinADC
	pinB       ads1x15.PinADC
	calibrated bool
}

var channels = [...]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// OpenADS1115 configures channels chA and chB (0..3) on bus.
// When calibrated is false readings are the raw conversion codes.
func OpenADS1115(bus i2c.Bus, chA, chB int, calibrated bool) (*RealReader, error) {
	if chA < 0 || chA >= len(channels) || chB < 0 || chB >= len(channels) {
		return nil, fmt.Errorf("adc: channel out of range (a=%d b=%d)", chA, chB)
	}

	dev, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("adc: open ads1115: %w", err)
	}

	pinA, err := dev.PinForChannel(channels[chA], fullScale, sampleRate, ads1x15.SaveEnergy)
	if err != nil {
		dev.Halt()
		return nil, fmt.Errorf("adc: configure channel A (%d): %w", chA, err)
	}
	pinB, err := dev.PinForChannel(channels[chB], fullScale, sampleRate, ads1x15.SaveEnergy)
	if err != nil {
		pinA.Halt()
		dev.Halt()
		return nil, fmt.Errorf("adc: configure channel B (%d): %w", chB, err)
	}

	if calibrated {
		log.Printf("adc: ADS1115 ready, channels %d/%d in mV", chA, chB)
	} else {
		log.Printf("adc: ADS1115 ready, channels %d/%d uncalibrated (raw codes)", chA, chB)
	}

	return &RealReader{dev: dev, pinA: pinA, pinB: pinB, calibrated: calibrated}, nil
}

// ReadA reads channel A.
func (r *RealReader) ReadA() (int, error) {
	return r.read(r.pinA, "A")
}

// ReadB reads channel B.
func (r *RealReader) ReadB() (int, error) {
	return r.read(r.pinB, "B")
}

func (r *RealReader) read(pin analog.PinADC, name string) (int, error) {
	s, err := pin.Read()
	if err != nil {
		return 0, fmt.Errorf("adc: read channel %s: %w", name, err)
	}
	if r.calibrated {
		return int(s.V / physic.MilliVolt), nil
	}
	return int(s.Raw), nil
}

// Calibrated reports whether readings are in millivolts.
func (r *RealReader) Calibrated() bool {
	return r.calibrated
}

// Close halts both channels and the converter.
func (r *RealReader) Close() error {
	var errs []error
	if r.pinA != nil {
		if err := r.pinA.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt channel A: %w", err))
		}
	}
	if r.pinB != nil {
		if err := r.pinB.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt channel B: %w", err))
		}
	}
	if r.dev != nil {
		if err := r.dev.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt device: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Package adc reads the two analog sensor channels.
// The real implementation uses an ADS1115 on I2C through periph.io.
// The fake implementation allows testing without hardware.
package adc

// Reader reads sensor channels A and B.
type Reader interface {
	// ReadA returns channel A in millivolts when calibrated, else the raw code.
	ReadA() (int, error)

	// ReadB returns channel B in millivolts when calibrated, else the raw code.
	ReadB() (int, error)

	// Calibrated reports whether readings are in millivolts.
	// Fixed when the reader is opened.
	Calibrated() bool

	// Close releases ADC resources.
	Close() error
}

// Default channel assignment (ADS1115 single-ended inputs).
const (
	DefaultChannelA = 0
	DefaultChannelB = 1
)

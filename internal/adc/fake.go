package adc

import "errors"

// FakeReader is a test double that returns scripted channel values.
type FakeReader struct {
	// Samples contains scripted (A, B) values to return.
	// Each call to ReadA consumes the next sample; ReadB reads the same sample.
	Samples []Sample

	// index tracks current position in Samples
	index int
	last  Sample

	// Cal is returned by Calibrated.
	Cal bool

	// ReadError, if set, will be returned by ReadA and ReadB.
	ReadError error

	// Reads counts ReadA calls.
	Reads int

	// Closed tracks if Close was called
	Closed bool
}

// Sample represents a single two-channel reading.
type Sample struct {
	A int
	B int
}

// NewFakeReader creates a calibrated FakeReader with the given samples.
func NewFakeReader(samples ...Sample) *FakeReader {
	return &FakeReader{Samples: samples, Cal: true}
}

func (f *FakeReader) current() (Sample, error) {
	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return Sample{}, errors.New("no samples configured")
	}
	return f.Samples[f.index], nil
}

// ReadA returns A of the next sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) ReadA() (int, error) {
	f.Reads++
	s, err := f.current()
	if err != nil {
		return 0, err
	}
	f.last = s
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.A, nil
}

// ReadB returns B of the sample consumed by the last ReadA.
func (f *FakeReader) ReadB() (int, error) {
	if f.Reads == 0 {
		s, err := f.current()
		return s.B, err
	}
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.last.B, nil
}

// Calibrated returns Cal.
func (f *FakeReader) Calibrated() bool {
	return f.Cal
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

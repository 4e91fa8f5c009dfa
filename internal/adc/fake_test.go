package adc

import (
	"errors"
	"testing"
)

func TestFakeReaderSequence(t *testing.T) {
	f := NewFakeReader(Sample{A: 812, B: 301}, Sample{A: 900, B: 100})

	a, err := f.ReadA()
	if err != nil {
		t.Fatalf("ReadA: %v", err)
	}
	b, err := f.ReadB()
	if err != nil {
		t.Fatalf("ReadB: %v", err)
	}
	if a != 812 || b != 301 {
		t.Errorf("sample 0: got (%d, %d), want (812, 301)", a, b)
	}

	a, _ = f.ReadA()
	b, _ = f.ReadB()
	if a != 900 || b != 100 {
		t.Errorf("sample 1: got (%d, %d), want (900, 100)", a, b)
	}

	// Exhausted samples repeat the last one.
	a, _ = f.ReadA()
	b, _ = f.ReadB()
	if a != 900 || b != 100 {
		t.Errorf("sample 2 (repeat): got (%d, %d), want (900, 100)", a, b)
	}
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader(Sample{A: 1, B: 2})
	f.ReadError = errors.New("simulated error")

	if _, err := f.ReadA(); err == nil {
		t.Error("expected ReadA error")
	}
	if _, err := f.ReadB(); err == nil {
		t.Error("expected ReadB error")
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader()
	if _, err := f.ReadA(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeReaderCalibratedAndClose(t *testing.T) {
	f := NewFakeReader(Sample{})
	if !f.Calibrated() {
		t.Error("expected calibrated by default")
	}
	f.Cal = false
	if f.Calibrated() {
		t.Error("expected uncalibrated")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

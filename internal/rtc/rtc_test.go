package rtc

import (
	"errors"
	"testing"
	"time"
)

func TestBCDRoundTrip(t *testing.T) {
	for v := 0; v <= 99; v++ {
		if got := BCDToDec(DecToBCD(v)); got != v {
			t.Errorf("decode(encode(%d)) = %d", v, got)
		}
	}
}

func TestBCDToDecKnownValues(t *testing.T) {
	tests := []struct {
		in   byte
		want int
	}{
		{0x00, 0},
		{0x09, 9},
		{0x10, 10},
		{0x23, 23},
		{0x59, 59},
		{0x99, 99},
	}
	for _, tt := range tests {
		if got := BCDToDec(tt.in); got != tt.want {
			t.Errorf("BCDToDec(0x%02x): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBCDToDecMalformedDoesNotPanic(t *testing.T) {
	// 0xFF is not valid BCD; it decodes to 15*10+15.
	if got := BCDToDec(0xFF); got != 165 {
		t.Errorf("BCDToDec(0xFF): got %d, want 165", got)
	}
}

func TestDecodeAndClock(t *testing.T) {
	f := TimeFields{Seconds: 0x10, Minutes: 0x23, Hours: 0x14, Weekday: 0x03, Day: 0x05, Month: 0x06, Year: 0x24}
	dt := f.Decode()
	want := DateTime{Year: 2024, Month: 6, Day: 5, Hour: 14, Minute: 23, Second: 10, Weekday: 3}
	if dt != want {
		t.Fatalf("Decode: got %+v, want %+v", dt, want)
	}
	if got := dt.Clock(); got != "14:23:10" {
		t.Errorf("Clock: got %q, want 14:23:10", got)
	}
	if dt.Encode() != f {
		t.Errorf("Encode: got %+v, want %+v", dt.Encode(), f)
	}
}

func TestZeroFieldsClock(t *testing.T) {
	if got := (TimeFields{}).Decode().Clock(); got != "00:00:00" {
		t.Errorf("zero Clock: got %q, want 00:00:00", got)
	}
}

func TestOpenAndReadTime(t *testing.T) {
	want := DateTime{Year: 2024, Month: 6, Day: 5, Hour: 14, Minute: 23, Second: 10, Weekday: 3}
	bus := NewFakeBus(want)

	d, err := Open(bus)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f, err := d.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if got := f.Decode(); got != want {
		t.Errorf("ReadTime: got %+v, want %+v", got, want)
	}
}

func TestOpenAbsentDevice(t *testing.T) {
	bus := &FakeBus{Absent: true}
	_, err := Open(bus)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadTimeFailureReturnsZero(t *testing.T) {
	bus := NewFakeBus(DateTime{Year: 2024, Month: 6, Day: 5, Hour: 14, Minute: 23, Second: 10})
	d, err := Open(bus)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	bus.FailReg = map[byte]error{RegMonth: errors.New("bus busy")}
	f, err := d.ReadTime()
	if err == nil {
		t.Fatal("expected error")
	}
	if f != (TimeFields{}) {
		t.Errorf("expected zero fields on failure, got %+v", f)
	}
}

func TestSetTime(t *testing.T) {
	bus := &FakeBus{}
	d := &DS3231{bus: bus, addr: Address}

	want := DateTime{Year: 2031, Month: 12, Day: 31, Hour: 23, Minute: 59, Second: 58, Weekday: 1}
	if err := d.SetTime(want); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	f, err := d.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if got := f.Decode(); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := d.SetTime(DateTime{Year: 1999, Month: 1, Day: 1}); err == nil {
		t.Error("expected out of range error for 1999")
	}
}

func TestTimeoutBusPassesThrough(t *testing.T) {
	bus := NewFakeBus(DateTime{Year: 2024, Month: 1, Day: 2, Hour: 3, Minute: 4, Second: 5})
	tb := NewTimeoutBus(bus)

	var buf [1]byte
	if err := tb.Tx(Address, []byte{RegHours}, buf[:]); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if buf[0] != 0x03 {
		t.Errorf("hours: got 0x%02x, want 0x03", buf[0])
	}
	if bus.Calls != 1 {
		t.Errorf("calls: got %d, want 1", bus.Calls)
	}
}

func TestTimeoutBusRetriesThenFails(t *testing.T) {
	bus := &FakeBus{Delay: 50 * time.Millisecond}
	tb := &TimeoutBus{Inner: bus, Timeout: 5 * time.Millisecond, Retries: 2}

	var buf [1]byte
	err := tb.Tx(Address, []byte{RegSeconds}, buf[:])
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// Let abandoned attempts finish before counting.
	time.Sleep(200 * time.Millisecond)
	bus.mu.Lock()
	calls := bus.Calls
	bus.mu.Unlock()
	if calls != 3 {
		t.Errorf("attempts: got %d, want 3", calls)
	}
}

func TestTimeoutBusNoRetryOnOtherErrors(t *testing.T) {
	bus := &FakeBus{Absent: true}
	tb := NewTimeoutBus(bus)

	var buf [1]byte
	if err := tb.Tx(Address, []byte{RegSeconds}, buf[:]); err == nil {
		t.Fatal("expected error")
	}
	if bus.Calls != 1 {
		t.Errorf("calls: got %d, want 1", bus.Calls)
	}
}

func TestFromTime(t *testing.T) {
	dt := FromTime(time.Date(2024, 6, 5, 14, 23, 10, 0, time.UTC))
	want := DateTime{Year: 2024, Month: 6, Day: 5, Hour: 14, Minute: 23, Second: 10, Weekday: 4}
	if dt != want {
		t.Errorf("got %+v, want %+v", dt, want)
	}
}

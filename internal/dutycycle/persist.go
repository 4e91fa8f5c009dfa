package dutycycle

import (
	"fmt"
	"log"

	"github.com/sweeney/dutycycle-logger/internal/datalog"
	"github.com/sweeney/dutycycle-logger/internal/mqtt"
	"github.com/sweeney/dutycycle-logger/internal/status"
)

// persist samples both sensors, reads the clock and appends one record.
//
// A sensor failure is fatal: no partial record is written. A clock failure
// degrades to the zero time. A write failure is logged and the boot goes on
// to sleep.
func (c *Controller) persist() error {
	a, err := c.deps.Sensors.ReadA()
	if err != nil {
		return fmt.Errorf("read sensor A: %w", err)
	}
	b, err := c.deps.Sensors.ReadB()
	if err != nil {
		return fmt.Errorf("read sensor B: %w", err)
	}
	unit := "raw"
	if c.deps.Sensors.Calibrated() {
		unit = "mV"
	}
	log.Printf("dutycycle: sensor A=%d%s B=%d%s", a, unit, b, unit)

	fields, err := c.deps.Clock.ReadTime()
	if err != nil {
		log.Printf("dutycycle: clock read failed, recording zero time: %v", err)
	}
	dt := fields.Decode()

	path, err := c.deps.Resolver.Resolve(dt.Year, dt.Month, dt.Day)
	if err != nil {
		return fmt.Errorf("resolve log path: %w", err)
	}

	rec := datalog.Record{Time: dt.Clock(), A: a, B: b}
	if err := datalog.Append(path, rec); err != nil {
		log.Printf("dutycycle: record not written: %v", err)
		return nil
	}
	log.Printf("dutycycle: recorded %s,%d,%d to %s", rec.Time, a, b, path)

	c.deps.Tracker.RecordWritten(status.Record{Time: rec.Time, A: a, B: b, Path: path})
	err = c.deps.Publisher.PublishRecord(mqtt.RecordEvent{
		DeviceID: c.deps.Resolver.DeviceID,
		Date:     fmt.Sprintf("%04d-%02d-%02d", dt.Year, dt.Month, dt.Day),
		Time:     rec.Time,
		A:        a,
		B:        b,
		Path:     path,
	})
	if err != nil {
		log.Printf("dutycycle: publish record: %v", err)
	}
	return nil
}

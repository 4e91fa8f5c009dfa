// Package status provides a thread-safe view of the current boot for the
// HTTP status page and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"
)

// Config contains logger configuration for display.
type Config struct {
	DeviceID       string
	LogRoot        string
	TimerPeriodMs  int64
	WakePin        int
	ExtractDwellMs int64
	Broker         string
	HTTPAddr       string
}

// Record is the last row written this boot. A local copy to avoid
// importing internal/datalog from status.
type Record struct {
	Time string
	A    int
	B    int
	Path string
}

// Snapshot is a point-in-time view of the boot.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	BootTime       time.Time
	Now            time.Time
	WakeCause      string
	SleptMs        int64
	LastRecord     *Record
	RecordsWritten int
	Exports        int
	FilesExported  int
	DrivePresent   bool
	QueueDropped   uint64
	MQTTConnected  bool
	Config         Config
}

// Uptime returns the duration since the boot started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.BootTime)
}

// Tracker holds mutable boot state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given boot time and config.
func NewTracker(bootTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			BootTime:  bootTime,
			WakeCause: "unknown",
			SleptMs:   -1,
			Config:    cfg,
		},
	}
}

// SetWake records why this boot happened and, if known, how long the
// previous sleep lasted. sleptMs is -1 when unknown.
func (t *Tracker) SetWake(cause string, sleptMs int64) {
	t.mu.Lock()
	t.snap.WakeCause = cause
	t.snap.SleptMs = sleptMs
	t.mu.Unlock()
}

// RecordWritten notes a row appended to the log.
func (t *Tracker) RecordWritten(rec Record) {
	t.mu.Lock()
	t.snap.LastRecord = &rec
	t.snap.RecordsWritten++
	t.mu.Unlock()
}

// SetDrivePresent sets whether a removable drive is attached.
func (t *Tracker) SetDrivePresent(present bool) {
	t.mu.Lock()
	t.snap.DrivePresent = present
	t.mu.Unlock()
}

// ExportDone counts a finished export and the files it copied.
func (t *Tracker) ExportDone(files int) {
	t.mu.Lock()
	t.snap.Exports++
	t.snap.FilesExported += files
	t.mu.Unlock()
}

// SetQueueDropped sets how many queue messages were dropped.
func (t *Tracker) SetQueueDropped(n uint64) {
	t.mu.Lock()
	t.snap.QueueDropped = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the boot state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastRecord != nil {
		r := *s.LastRecord
		s.LastRecord = &r
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

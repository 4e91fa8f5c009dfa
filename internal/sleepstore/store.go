// Package sleepstore persists the time the device last entered deep sleep.
//
// Two backends exist, chosen by configuration: RetainedStore keeps a small
// struct in a retention region that survives sleep (a file on a RAM-backed
// mount), and KVStore keeps two named integers in a non-volatile key/value
// database that is opened and closed around every access.
package sleepstore

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Load when nothing has been stored yet.
var ErrNotFound = errors.New("sleepstore: no sleep timestamp stored")

// Timestamp is a seconds/microseconds pair since the Unix epoch.
type Timestamp struct {
	Sec  int32 `msgpack:"sec"`
	Usec int32 `msgpack:"usec"`
}

// Store loads and saves the sleep-entry timestamp.
type Store interface {
	Load() (Timestamp, error)
	Save(ts Timestamp) error
}

// FromTime captures t as a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp{Sec: int32(t.Unix()), Usec: int32(t.Nanosecond() / 1000)}
}

// Time converts back to a time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(int64(ts.Sec), int64(ts.Usec)*1000)
}

// IsZero reports whether the timestamp was never set.
func (ts Timestamp) IsZero() bool {
	return ts.Sec == 0 && ts.Usec == 0
}

// SinceMs returns the milliseconds elapsed from ts to now.
func (ts Timestamp) SinceMs(now Timestamp) int64 {
	return int64(now.Sec-ts.Sec)*1000 + int64(now.Usec-ts.Usec)/1000
}

// MemoryStore keeps the timestamp in memory. It survives a simulated restart
// only if the same value is handed to the next controller.
type MemoryStore struct {
	ts    Timestamp
	set   bool
	Saves int

	// SaveError, if set, will be returned by Save.
	SaveError error
}

// Load returns the stored timestamp.
func (m *MemoryStore) Load() (Timestamp, error) {
	if !m.set {
		return Timestamp{}, ErrNotFound
	}
	return m.ts, nil
}

// Save stores ts.
func (m *MemoryStore) Save(ts Timestamp) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.ts = ts
	m.set = true
	m.Saves++
	return nil
}

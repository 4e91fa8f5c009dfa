// Package mqtt publishes sensor records and boot lifecycle events to a broker.
package mqtt

import (
	"encoding/json"
	"time"
)

// TopicPrefix is the root of every topic this device publishes on.
const TopicPrefix = "dutycycle"

// RecordTopic is where each appended sensor record is published.
func RecordTopic(deviceID string) string {
	return TopicPrefix + "/" + deviceID + "/records"
}

// SystemTopic is where boot, sleep and extraction events are published.
func SystemTopic(deviceID string) string {
	return TopicPrefix + "/" + deviceID + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishRecord sends one sensor record. A failure must not abort a boot.
	PublishRecord(event RecordEvent) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close flushes what it can and disconnects.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// RecordEvent is one CSV row together with where it was written.
type RecordEvent struct {
	DeviceID string
	Date     string // YYYY-MM-DD as read from the RTC
	Time     string // HH:MM:SS, same as the CSV column
	A        int
	B        int
	Path     string
}

// SystemEvent is a lifecycle event such as BOOT, SLEEP or EXPORT.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	WakeCause  string
	Reason     string
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// RecordPayload is the JSON envelope for a record.
type RecordPayload struct {
	Record RecordInner `json:"record"`
}

// RecordInner contains the record fields.
type RecordInner struct {
	Device string `json:"device"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	A      int    `json:"a"`
	B      int    `json:"b"`
	Path   string `json:"path"`
}

// FormatRecordPayload creates the JSON payload for a record.
func FormatRecordPayload(event RecordEvent) ([]byte, error) {
	return json.Marshal(RecordPayload{Record: RecordInner{
		Device: event.DeviceID,
		Date:   event.Date,
		Time:   event.Time,
		A:      event.A,
		B:      event.B,
		Path:   event.Path,
	}})
}

// SystemPayload is the JSON envelope for simple system events that don't
// carry a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	WakeCause string `json:"wake_cause,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{System: SystemPayloadInner{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		WakeCause: event.WakeCause,
		Reason:    event.Reason,
	}})
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRecord(RecordEvent) error { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
func (NopPublisher) IsConnected() bool               { return false }

package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Device        string      `json:"device"`
	WakeCause     string      `json:"wake_cause"`
	SleptMs       *int64      `json:"slept_ms,omitempty"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	BootTime      string      `json:"boot_time"`
	Timestamp     string      `json:"timestamp"`
	LastRecord    *RecordJSON `json:"last_record,omitempty"`
	Records       int         `json:"records_written"`
	Export        ExportJSON  `json:"export"`
	QueueDropped  uint64      `json:"queue_dropped"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Config        ConfigJSON  `json:"config"`
}

// RecordJSON is the JSON representation of the last record.
type RecordJSON struct {
	Time string `json:"time"`
	A    int    `json:"a"`
	B    int    `json:"b"`
	Path string `json:"path"`
}

// ExportJSON reports removable-drive export activity.
type ExportJSON struct {
	DrivePresent bool `json:"drive_present"`
	Exports      int  `json:"exports"`
	Files        int  `json:"files"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of logger config.
type ConfigJSON struct {
	LogRoot        string `json:"log_root"`
	TimerPeriodMs  int64  `json:"timer_period_ms"`
	WakePin        int    `json:"wake_pin"`
	ExtractDwellMs int64  `json:"extract_dwell_ms"`
	HTTPAddr       string `json:"http_addr,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Device:        snap.Config.DeviceID,
		WakeCause:     snap.WakeCause,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		BootTime:      snap.BootTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Records:       snap.RecordsWritten,
		Export: ExportJSON{
			DrivePresent: snap.DrivePresent,
			Exports:      snap.Exports,
			Files:        snap.FilesExported,
		},
		QueueDropped: snap.QueueDropped,
		MQTT:         MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			LogRoot:        snap.Config.LogRoot,
			TimerPeriodMs:  snap.Config.TimerPeriodMs,
			WakePin:        snap.Config.WakePin,
			ExtractDwellMs: snap.Config.ExtractDwellMs,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if snap.SleptMs >= 0 {
		ms := snap.SleptMs
		inner.SleptMs = &ms
	}
	if r := snap.LastRecord; r != nil {
		inner.LastRecord = &RecordJSON{Time: r.Time, A: r.A, B: r.B, Path: r.Path}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

package dutycycle

import (
	"context"
	"log"
	"time"
)

// DefaultMountInterval is how often MountWatcher polls.
const DefaultMountInterval = 500 * time.Millisecond

// MountWatcher polls a mount point and reports a removable drive arriving
// or leaving as DeviceConnected and DeviceDisconnected messages.
type MountWatcher struct {
	Path     string
	Interval time.Duration

	// Probe reports whether a drive is mounted at a path.
	// Defaults to IsMountPoint.
	Probe func(path string) bool
}

// Run polls until ctx is done.
func (w MountWatcher) Run(ctx context.Context, q *Queue) {
	probe := w.Probe
	if probe == nil {
		probe = IsMountPoint
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultMountInterval
	}

	present := false
	poll := func() error {
		now := probe(w.Path)
		if now == present {
			return nil
		}
		present = now
		id := DeviceDisconnected
		if now {
			id = DeviceConnected
		}
		log.Printf("dutycycle: drive %s at %s", id, w.Path)
		return q.Send(ctx, Message{ID: id, MountPath: w.Path})
	}

	if poll() != nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if poll() != nil {
				return
			}
		}
	}
}

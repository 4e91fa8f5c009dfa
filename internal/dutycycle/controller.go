// Package dutycycle runs one boot of the logger: it dispatches on the wake
// cause, records a sample or opens a data-extraction session, re-arms the
// wake sources and puts the board back into deep sleep.
//
// Every boot is independent. Nothing carries over from the previous boot
// except what the platform retains: the wake cause and the sleep-entry
// timestamp in the sleep store.
package dutycycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sweeney/dutycycle-logger/internal/adc"
	"github.com/sweeney/dutycycle-logger/internal/datalog"
	"github.com/sweeney/dutycycle-logger/internal/gpio"
	"github.com/sweeney/dutycycle-logger/internal/mqtt"
	"github.com/sweeney/dutycycle-logger/internal/platform"
	"github.com/sweeney/dutycycle-logger/internal/rtc"
	"github.com/sweeney/dutycycle-logger/internal/sleepstore"
	"github.com/sweeney/dutycycle-logger/internal/status"
)

// Defaults for Config.
const (
	DefaultTimerPeriod  = 30 * time.Second
	DefaultGracePeriod  = 1 * time.Second
	DefaultExtractDwell = 5 * time.Minute
)

// Config tunes the duty cycle.
type Config struct {
	// TimerPeriod is how long the board sleeps between samples.
	TimerPeriod time.Duration

	// WakePinMask selects the pins that start an extraction session.
	WakePinMask uint64
	WakeLevel   platform.Level

	// GracePeriod is the pause before sleep that lets pending writes land.
	GracePeriod time.Duration

	// IsolatePins disconnects analog-sensitive pins before sleeping.
	IsolatePins bool

	// ExtractDwell is how long an extraction session stays up. Zero sends
	// the board straight back to sleep after a pin wake.
	ExtractDwell time.Duration

	// QuitPin ends an extraction session early when pulled low. -1 disables.
	QuitPin int

	// MountPoint is polled for a removable drive during extraction.
	// Empty disables export.
	MountPoint    string
	MountInterval time.Duration
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		TimerPeriod:  DefaultTimerPeriod,
		WakePinMask:  1 << gpio.DefaultWakePin,
		WakeLevel:    platform.WakeOnLow,
		GracePeriod:  DefaultGracePeriod,
		ExtractDwell: DefaultExtractDwell,
		QuitPin:      gpio.DefaultQuitPin,
	}
}

// HTTPServer is the status server run during extraction sessions.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Deps are the collaborators of a Controller. Platform, Clock, Sensors,
// Store and Resolver are required.
type Deps struct {
	Platform platform.Platform
	Clock    rtc.Clock
	Sensors  adc.Reader
	Store    sleepstore.Store
	Resolver datalog.Resolver

	// Optional.
	Publisher mqtt.Publisher
	Tracker   *status.Tracker
	Pins      gpio.Watcher
	HTTP      HTTPServer
	Probe     func(path string) bool
	Now       func() time.Time
}

// Controller runs one boot.
type Controller struct {
	cfg  Config
	deps Deps

	quit io.Closer
}

// New validates deps and fills optional ones with inert defaults.
func New(cfg Config, deps Deps) (*Controller, error) {
	switch {
	case deps.Platform == nil:
		return nil, errors.New("dutycycle: no platform")
	case deps.Clock == nil:
		return nil, errors.New("dutycycle: no clock")
	case deps.Sensors == nil:
		return nil, errors.New("dutycycle: no sensors")
	case deps.Store == nil:
		return nil, errors.New("dutycycle: no sleep store")
	case deps.Resolver.Root == "" || deps.Resolver.DeviceID == "":
		return nil, errors.New("dutycycle: log root and device id are required")
	}
	if cfg.TimerPeriod <= 0 {
		return nil, fmt.Errorf("dutycycle: timer period %v must be positive", cfg.TimerPeriod)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Publisher == nil {
		deps.Publisher = mqtt.NopPublisher{}
	}
	if deps.Tracker == nil {
		deps.Tracker = status.NewTracker(deps.Now(), status.Config{DeviceID: deps.Resolver.DeviceID})
	}
	return &Controller{cfg: cfg, deps: deps}, nil
}

// Boot runs the whole boot. With real hardware it does not return on
// success: DeepSleep replaces the process. Any returned error is fatal to
// this boot.
func (c *Controller) Boot(ctx context.Context) error {
	cause := c.deps.Platform.WakeCause()
	sleptMs := c.previousSleep(cause)
	c.deps.Tracker.SetWake(cause.String(), sleptMs)
	c.publishStatus("BOOT", "")

	switch cause {
	case platform.TimerExpired:
		log.Printf("dutycycle: wake up from timer, time spent in deep sleep: %dms", sleptMs)
		if err := c.persist(); err != nil {
			return err
		}
	case platform.ExternalPin:
		log.Printf("dutycycle: wake up from external pin (mask 0x%x)", c.deps.Platform.WakePins())
		if err := c.extract(ctx); err != nil {
			return err
		}
	default:
		log.Printf("dutycycle: not a deep sleep reset (%s)", cause)
		if err := c.persist(); err != nil {
			return err
		}
	}

	if err := c.arm(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- c.enterSleep(ctx) }()
	return <-done
}

// previousSleep reads the stored sleep-entry timestamp and returns how long
// ago it was, or -1 if unknown or meaningless for this cause.
func (c *Controller) previousSleep(cause platform.WakeCause) int64 {
	ts, err := c.deps.Store.Load()
	if err != nil {
		if !errors.Is(err, sleepstore.ErrNotFound) {
			log.Printf("dutycycle: read sleep timestamp: %v", err)
		}
		return -1
	}
	if cause == platform.ColdBoot {
		return -1
	}
	return ts.SinceMs(sleepstore.FromTime(c.deps.Now()))
}

// arm re-issues both wake sources. Neither survives deep sleep.
func (c *Controller) arm() error {
	if err := c.deps.Platform.EnableTimerWakeup(c.cfg.TimerPeriod); err != nil {
		return fmt.Errorf("arm timer wakeup: %w", err)
	}
	if c.cfg.WakePinMask != 0 {
		if err := c.deps.Platform.EnableExtWakeup(c.cfg.WakePinMask, c.cfg.WakeLevel); err != nil {
			return fmt.Errorf("arm pin wakeup: %w", err)
		}
	}
	return nil
}

func (c *Controller) publishStatus(event, reason string) {
	if cs, ok := c.deps.Publisher.(mqtt.ConnectionStatus); ok {
		c.deps.Tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := c.deps.Tracker.Snapshot()
	err := c.deps.Publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  c.deps.Now(),
		Event:      event,
		WakeCause:  snap.WakeCause,
		Reason:     reason,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Printf("dutycycle: publish %s event: %v", event, err)
	}
}

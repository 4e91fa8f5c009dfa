// Command dutycycle-logger samples two analog channels on an RTC-timed duty
// cycle, appends them to a dated CSV log and puts the board back to sleep.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/sweeney/dutycycle-logger/internal/adc"
	"github.com/sweeney/dutycycle-logger/internal/config"
	"github.com/sweeney/dutycycle-logger/internal/datalog"
	"github.com/sweeney/dutycycle-logger/internal/dutycycle"
	"github.com/sweeney/dutycycle-logger/internal/gpio"
	"github.com/sweeney/dutycycle-logger/internal/mqtt"
	"github.com/sweeney/dutycycle-logger/internal/platform"
	"github.com/sweeney/dutycycle-logger/internal/rtc"
	"github.com/sweeney/dutycycle-logger/internal/sleepstore"
	"github.com/sweeney/dutycycle-logger/internal/status"
	"github.com/sweeney/dutycycle-logger/internal/web"
)

type options struct {
	configPath string
	envFile    string
	deletePath string
	setClock   string
	printTime  bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "/etc/dutycycle/config.yaml", "YAML config file")
	flag.StringVar(&o.envFile, "env-file", "", "KEY=value file loaded into the environment before the config")
	flag.StringVar(&o.deletePath, "delete", "", "Delete a log file (relative to the log root) and exit")
	flag.StringVar(&o.setClock, "set-clock", "", `Set the RTC ("now" or 2006-01-02T15:04:05) and exit`)
	flag.BoolVar(&o.printTime, "print-time", false, "Print the RTC time and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	log.Printf("config: %s", cfg)

	if o.deletePath != "" {
		return deleteLog(cfg.LogRoot, o.deletePath)
	}

	// The clock is the only device every mode needs.
	rtcBus, err := rtc.OpenI2C(cfg.RTC.Bus)
	if err != nil {
		return fmt.Errorf("init rtc bus: %w", err)
	}
	defer rtcBus.Close()

	clock, err := rtc.Open(rtc.NewTimeoutBus(rtcBus))
	if err != nil {
		return fmt.Errorf("init rtc: %w", err)
	}
	defer clock.Close()

	if o.setClock != "" {
		dt, err := parseClock(o.setClock, time.Now)
		if err != nil {
			return err
		}
		if err := clock.SetTime(dt); err != nil {
			return err
		}
		fmt.Printf("RTC set to %s\n", dt)
		return nil
	}
	if o.printTime {
		f, err := clock.ReadTime()
		if err != nil {
			return fmt.Errorf("read rtc: %w", err)
		}
		fmt.Println(f.Decode())
		return nil
	}

	if fi, err := os.Stat(cfg.LogRoot); err != nil || !fi.IsDir() {
		return fmt.Errorf("storage not mounted at %s", cfg.LogRoot)
	}

	adcBus := i2c.Bus(rtcBus)
	if cfg.ADC.Bus != cfg.RTC.Bus {
		b, err := rtc.OpenI2C(cfg.ADC.Bus)
		if err != nil {
			return fmt.Errorf("init adc bus: %w", err)
		}
		defer b.Close()
		adcBus = b
	}
	sensors, err := adc.OpenADS1115(adcBus, cfg.ADC.ChannelA, cfg.ADC.ChannelB, cfg.ADC.Calibrated)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer sensors.Close()

	pins, err := gpio.NewRealWatcher(cfg.Wake.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	var simPin <-chan struct{}
	if cfg.Platform == "sim" {
		simPin = simPinSignal()
	}
	plat, err := newPlatform(cfg, pins, simPin)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.SleepStore)
	if err != nil {
		return err
	}

	publisher := newPublisher(cfg)
	tracker := status.NewTracker(time.Now(), trackerConfig(cfg))

	deps := dutycycle.Deps{
		Platform:  plat,
		Clock:     clock,
		Sensors:   sensors,
		Store:     store,
		Resolver:  datalog.Resolver{Root: cfg.LogRoot, DeviceID: cfg.DeviceID},
		Publisher: publisher,
		Tracker:   tracker,
		Pins:      pins,
		Probe:     dutycycle.IsMountPoint,
	}
	if cfg.Extract.HTTPAddr != "" {
		deps.HTTP = web.New(cfg.Extract.HTTPAddr, tracker, cfg.LogRoot)
	}

	ctrl, err := dutycycle.New(controllerConfig(cfg), deps)
	if err != nil {
		return err
	}

	ctx, sigName, stop := shutdownContext(context.Background())
	defer stop()

	return runBoot(ctx, ctrl, publisher, tracker, time.Now, sigName)
}

func loadConfig(o options) (*config.Config, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deleteLog removes one day file. Relative paths are taken from the log root.
func deleteLog(root, path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if err := datalog.Delete(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	log.Printf("deleted %s", path)
	return nil
}

// parseClock turns the -set-clock value into RTC fields.
func parseClock(value string, now func() time.Time) (rtc.DateTime, error) {
	if value == "now" {
		return rtc.FromTime(now()), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.Local)
	if err != nil {
		return rtc.DateTime{}, fmt.Errorf("set-clock: %w", err)
	}
	return rtc.FromTime(t), nil
}

func newPlatform(cfg *config.Config, pins gpio.Watcher, simPin <-chan struct{}) (platform.Platform, error) {
	switch cfg.Platform {
	case "sysfs":
		p := platform.NewSysfs(pins)
		p.IsolateOffsets = cfg.Wake.Isolate
		return p, nil
	case "sim":
		return platform.NewSim(simPin), nil
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}
}

func openStore(sc config.SleepStoreConfig) (sleepstore.Store, error) {
	switch sc.Backend {
	case "retained":
		return sleepstore.NewRetainedStore(sc.Path), nil
	case "kv":
		return sleepstore.NewKVStore(sc.Path), nil
	default:
		return nil, fmt.Errorf("unknown sleep store %q", sc.Backend)
	}
}

// newPublisher connects to the broker if one is configured. Telemetry is
// optional, so a failure only costs this boot its events.
func newPublisher(cfg *config.Config) mqtt.Publisher {
	if cfg.MQTT.Broker == "" {
		return mqtt.NopPublisher{}
	}
	p, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:         cfg.MQTT.Broker,
		DeviceID:       cfg.DeviceID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		Backlog:        cfg.MQTT.Backlog,
	})
	if err != nil {
		log.Printf("mqtt disabled: %v", err)
		return mqtt.NopPublisher{}
	}
	return p
}

func controllerConfig(cfg *config.Config) dutycycle.Config {
	return dutycycle.Config{
		TimerPeriod:   cfg.TimerPeriod,
		WakePinMask:   cfg.WakeMask(),
		WakeLevel:     cfg.WakeLevel(),
		GracePeriod:   cfg.GracePeriod,
		IsolatePins:   len(cfg.Wake.Isolate) > 0,
		ExtractDwell:  cfg.Extract.Dwell,
		QuitPin:       cfg.Extract.QuitPin,
		MountPoint:    cfg.Extract.MountPoint,
		MountInterval: cfg.Extract.MountInterval,
	}
}

func trackerConfig(cfg *config.Config) status.Config {
	wakePin := -1
	if len(cfg.Wake.Pins) > 0 {
		wakePin = cfg.Wake.Pins[0]
	}
	return status.Config{
		DeviceID:       cfg.DeviceID,
		LogRoot:        cfg.LogRoot,
		TimerPeriodMs:  cfg.TimerPeriod.Milliseconds(),
		WakePin:        wakePin,
		ExtractDwellMs: cfg.Extract.Dwell.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.Extract.HTTPAddr,
	}
}

type booter interface {
	Boot(ctx context.Context) error
}

// runBoot runs one boot. A signal ends it cleanly with a retained SHUTDOWN
// event. Any other error is reported as FATAL and returned so the supervisor
// restarts the process.
func runBoot(ctx context.Context, b booter, publisher mqtt.Publisher, tracker *status.Tracker, now func() time.Time, signalName func() string) error {
	err := b.Boot(ctx)
	if err == nil {
		return nil
	}

	event, reason := "FATAL", err.Error()
	if errors.Is(err, context.Canceled) {
		event, reason = "SHUTDOWN", signalName()
		log.Printf("received %s, shutting down", reason)
	}

	if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
		tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := tracker.Snapshot()
	if perr := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  now(),
		Event:      event,
		WakeCause:  snap.WakeCause,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}); perr != nil {
		log.Printf("failed to publish %s event: %v", event, perr)
	} else {
		log.Printf("published %s event", event)
	}
	publisher.Close()

	if event == "SHUTDOWN" {
		return nil
	}
	return err
}

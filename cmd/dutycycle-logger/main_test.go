package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/dutycycle-logger/internal/config"
	"github.com/sweeney/dutycycle-logger/internal/gpio"
	"github.com/sweeney/dutycycle-logger/internal/mqtt"
	"github.com/sweeney/dutycycle-logger/internal/platform"
	"github.com/sweeney/dutycycle-logger/internal/rtc"
	"github.com/sweeney/dutycycle-logger/internal/sleepstore"
	"github.com/sweeney/dutycycle-logger/internal/status"
)

type bootFunc func(ctx context.Context) error

func (f bootFunc) Boot(ctx context.Context) error { return f(ctx) }

var fixedNow = time.Date(2024, 6, 5, 14, 23, 10, 0, time.UTC)

func TestParseClockNow(t *testing.T) {
	dt, err := parseClock("now", func() time.Time { return fixedNow })
	if err != nil {
		t.Fatal(err)
	}
	want := rtc.DateTime{Year: 2024, Month: 6, Day: 5, Hour: 14, Minute: 23, Second: 10, Weekday: 4}
	if dt != want {
		t.Errorf("got %+v, want %+v", dt, want)
	}
}

func TestParseClockExplicit(t *testing.T) {
	dt, err := parseClock("2025-12-31T23:59:58", time.Now)
	if err != nil {
		t.Fatal(err)
	}
	if dt.Year != 2025 || dt.Month != 12 || dt.Day != 31 || dt.Hour != 23 || dt.Minute != 59 || dt.Second != 58 {
		t.Errorf("got %+v", dt)
	}
	// 2025-12-31 is a Wednesday.
	if dt.Weekday != 4 {
		t.Errorf("weekday: got %d, want 4", dt.Weekday)
	}
}

func TestParseClockInvalid(t *testing.T) {
	if _, err := parseClock("yesterday", time.Now); err == nil {
		t.Error("expected error")
	}
}

func TestDeleteLogRelative(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "m-2003", "2024", "jun", "05-06-24.csv")
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("14:23:10,812,301\n"), 0o644)

	if err := deleteLog(root, "m-2003/2024/jun/05-06-24.csv"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}
	if err := deleteLog(root, path); err == nil {
		t.Error("deleting a missing file should fail")
	}
}

func TestNewPlatform(t *testing.T) {
	t.Setenv(platform.EnvWakeCause, "timer")
	cfg := config.Default()
	cfg.Wake.Isolate = []int{12}

	p, err := newPlatform(cfg, gpio.NewFakeWatcher(), nil)
	if err != nil {
		t.Fatal(err)
	}
	sys, ok := p.(*platform.Sysfs)
	if !ok {
		t.Fatalf("got %T, want *platform.Sysfs", p)
	}
	if len(sys.IsolateOffsets) != 1 || sys.IsolateOffsets[0] != 12 {
		t.Errorf("isolate offsets: got %v", sys.IsolateOffsets)
	}
	if p.WakeCause() != platform.TimerExpired {
		t.Errorf("wake cause: got %s", p.WakeCause())
	}

	cfg.Platform = "sim"
	if p, _ := newPlatform(cfg, nil, nil); p == nil {
		t.Error("sim platform missing")
	} else if _, ok := p.(*platform.Sim); !ok {
		t.Errorf("got %T, want *platform.Sim", p)
	}

	cfg.Platform = "esp32"
	if _, err := newPlatform(cfg, nil, nil); err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	s, err := openStore(config.SleepStoreConfig{Backend: "retained", Path: filepath.Join(dir, "sleep.msgpack")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*sleepstore.RetainedStore); !ok {
		t.Errorf("got %T, want *sleepstore.RetainedStore", s)
	}

	s, err = openStore(config.SleepStoreConfig{Backend: "kv", Path: filepath.Join(dir, "nvs.db")})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(sleepstore.Timestamp{Sec: 100, Usec: 5}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil || got.Sec != 100 || got.Usec != 5 {
		t.Errorf("got %+v, %v", got, err)
	}

	if _, err := openStore(config.SleepStoreConfig{Backend: "flash"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewPublisherWithoutBroker(t *testing.T) {
	if _, ok := newPublisher(config.Default()).(mqtt.NopPublisher); !ok {
		t.Error("no broker should give a NopPublisher")
	}
}

func TestControllerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Wake.Pins = []int{5, 6}
	cfg.Wake.Level = "high"
	dc := controllerConfig(cfg)

	if dc.TimerPeriod != 30*time.Second {
		t.Errorf("timer period: got %v", dc.TimerPeriod)
	}
	if dc.WakePinMask != 1<<5|1<<6 {
		t.Errorf("mask: got 0x%x", dc.WakePinMask)
	}
	if dc.WakeLevel != platform.WakeOnHigh {
		t.Errorf("level: got %s", dc.WakeLevel)
	}
	if dc.IsolatePins {
		t.Error("no isolate pins configured")
	}
	if dc.QuitPin != 27 || dc.ExtractDwell != 5*time.Minute || dc.MountPoint != "/media/usb" {
		t.Errorf("extract settings: got %+v", dc)
	}
}

func TestTrackerConfig(t *testing.T) {
	cfg := config.Default()
	sc := trackerConfig(cfg)
	if sc.DeviceID != "m-2003" || sc.WakePin != 17 || sc.TimerPeriodMs != 30000 || sc.ExtractDwellMs != 300000 {
		t.Errorf("got %+v", sc)
	}

	cfg.Wake.Pins = nil
	if got := trackerConfig(cfg).WakePin; got != -1 {
		t.Errorf("no wake pin: got %d, want -1", got)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "dutycycle.env")
	os.WriteFile(envFile, []byte("DUTYCYCLE_DEVICE_ID=m-env\n"), 0o644)
	yamlFile := filepath.Join(dir, "config.yaml")
	os.WriteFile(yamlFile, []byte("device_id: m-file\ntimer_period: 1m\n"), 0o644)
	t.Cleanup(func() { os.Unsetenv(config.EnvDeviceID) })

	cfg, err := loadConfig(options{configPath: yamlFile, envFile: envFile})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DeviceID != "m-env" {
		t.Errorf("device: got %q, want env override", cfg.DeviceID)
	}
	if cfg.TimerPeriod != time.Minute {
		t.Errorf("timer period: got %v", cfg.TimerPeriod)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv(config.EnvPlatform, "esp32")
	if _, err := loadConfig(options{}); err == nil {
		t.Error("expected validation error")
	}
}

func TestRunBootSuccess(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(fixedNow, status.Config{DeviceID: "m-2003"})

	err := runBoot(context.Background(), bootFunc(func(context.Context) error { return nil }),
		pub, tracker, func() time.Time { return fixedNow }, func() string { return "SIGINT" })
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.SystemEvents) != 0 {
		t.Errorf("no events expected, got %v", pub.SystemEventNames())
	}
}

func TestRunBootShutdown(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(fixedNow, status.Config{DeviceID: "m-2003"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runBoot(ctx, bootFunc(func(ctx context.Context) error { return ctx.Err() }),
		pub, tracker, func() time.Time { return fixedNow }, func() string { return "SIGTERM" })
	if err != nil {
		t.Fatalf("shutdown should not be an error: %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.SystemEvents))
	}
	ev := pub.SystemEvents[0]
	if ev.Event != "SHUTDOWN" || ev.Reason != "SIGTERM" || !ev.Retained {
		t.Errorf("got %+v", ev)
	}
	if len(ev.RawPayload) == 0 {
		t.Error("expected status payload")
	}
	if !pub.Closed {
		t.Error("publisher should be closed")
	}
}

func TestRunBootFatal(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishSystemError = errors.New("broker down")
	tracker := status.NewTracker(fixedNow, status.Config{DeviceID: "m-2003"})
	boom := errors.New("read sensors: i2c timeout")

	err := runBoot(context.Background(), bootFunc(func(context.Context) error { return boom }),
		pub, tracker, func() time.Time { return fixedNow }, func() string { return "" })
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
	if !pub.Closed {
		t.Error("publisher should be closed even when publishing fails")
	}
}

func TestSignalName(t *testing.T) {
	tests := map[os.Signal]string{
		syscall.SIGINT:  "SIGINT",
		syscall.SIGTERM: "SIGTERM",
		os.Kill:         "UNKNOWN",
	}
	for sig, want := range tests {
		if got := signalName(sig); got != want {
			t.Errorf("%v: got %q, want %q", sig, got, want)
		}
	}
}

func TestShutdownContextStop(t *testing.T) {
	ctx, name, stop := shutdownContext(context.Background())
	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stop should cancel the context")
	}
	if name() != "UNKNOWN" {
		t.Errorf("name: got %q", name())
	}
}

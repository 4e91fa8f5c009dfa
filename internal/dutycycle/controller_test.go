package dutycycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/dutycycle-logger/internal/adc"
	"github.com/sweeney/dutycycle-logger/internal/datalog"
	"github.com/sweeney/dutycycle-logger/internal/mqtt"
	"github.com/sweeney/dutycycle-logger/internal/platform"
	"github.com/sweeney/dutycycle-logger/internal/rtc"
	"github.com/sweeney/dutycycle-logger/internal/sleepstore"
)

var refTime = rtc.DateTime{Year: 2024, Month: 6, Day: 5, Hour: 14, Minute: 23, Second: 10, Weekday: 3}

type harness struct {
	cfg     Config
	plat    *platform.Fake
	bus     *rtc.FakeBus
	sensors *adc.FakeReader
	store   *sleepstore.MemoryStore
	pub     *mqtt.FakePublisher
	root    string
	now     time.Time
}

func newHarness(t *testing.T, cause platform.WakeCause) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GracePeriod = 0
	return &harness{
		cfg:     cfg,
		plat:    &platform.Fake{Cause: cause},
		bus:     rtc.NewFakeBus(refTime),
		sensors: adc.NewFakeReader(adc.Sample{A: 812, B: 301}),
		store:   &sleepstore.MemoryStore{},
		pub:     mqtt.NewFakePublisher(),
		root:    filepath.Join(t.TempDir(), "sdcard"),
		now:     time.Unix(1717597390, 0),
	}
}

func (h *harness) controller(t *testing.T) *Controller {
	t.Helper()
	if err := os.MkdirAll(h.root, 0o755); err != nil {
		t.Fatal(err)
	}
	clock, err := rtc.Open(h.bus)
	if err != nil {
		t.Fatalf("rtc.Open: %v", err)
	}
	c, err := New(h.cfg, Deps{
		Platform:  h.plat,
		Clock:     clock,
		Sensors:   h.sensors,
		Store:     h.store,
		Resolver:  datalog.Resolver{Root: h.root, DeviceID: "m-2003"},
		Publisher: h.pub,
		Now:       func() time.Time { return h.now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func (h *harness) dayFile() string {
	return filepath.Join(h.root, "m-2003", "2024", "jun", "05-06-24.csv")
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestColdBootEndToEnd(t *testing.T) {
	h := newHarness(t, platform.ColdBoot)
	c := h.controller(t)

	if err := c.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	lines := readLines(t, h.dayFile())
	if len(lines) != 1 || lines[0] != "14:23:10,812,301" {
		t.Errorf("log lines: got %q, want [14:23:10,812,301]", lines)
	}
	if !h.plat.Slept {
		t.Error("expected deep sleep")
	}
	if h.plat.TimerPeriod != 30*time.Second {
		t.Errorf("timer period: got %v, want 30s", h.plat.TimerPeriod)
	}
	if h.plat.ExtMask != 1<<17 || h.plat.ExtLevel != platform.WakeOnLow {
		t.Errorf("ext wake: got (0x%x, %v)", h.plat.ExtMask, h.plat.ExtLevel)
	}
	if len(h.pub.Records) != 1 || h.pub.Records[0].Path != h.dayFile() {
		t.Errorf("published records: got %+v", h.pub.Records)
	}
	if h.pub.Records[0].Date != "2024-06-05" {
		t.Errorf("record date: got %q", h.pub.Records[0].Date)
	}
}

func TestTimerWakePersistsBeforeRearm(t *testing.T) {
	h := newHarness(t, platform.TimerExpired)
	h.store.Save(sleepstore.FromTime(h.now.Add(-29200 * time.Millisecond)))

	// Snapshot the log at the moment the timer is re-armed.
	var linesAtArm int
	h.plat.OnCall = func(call string) {
		if strings.HasPrefix(call, "EnableTimerWakeup") {
			if data, err := os.ReadFile(h.dayFile()); err == nil {
				linesAtArm = strings.Count(string(data), "\n")
			}
		}
	}

	c := h.controller(t)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if linesAtArm != 1 {
		t.Errorf("record should be on disk before re-arm, found %d lines", linesAtArm)
	}
	if got := c.deps.Tracker.Snapshot().SleptMs; got != 29200 {
		t.Errorf("slept ms: got %d, want 29200", got)
	}
}

func TestExternalPinWakeSkipsPersist(t *testing.T) {
	h := newHarness(t, platform.ExternalPin)
	h.cfg.ExtractDwell = 0
	c := h.controller(t)

	if err := c.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if h.sensors.Reads != 0 {
		t.Errorf("sensors read %d times during a pin wake", h.sensors.Reads)
	}
	if _, err := os.Stat(filepath.Join(h.root, "m-2003")); !os.IsNotExist(err) {
		t.Errorf("no log tree should be created, stat err = %v", err)
	}
	if !h.plat.Slept {
		t.Error("pin wake should still re-arm and sleep")
	}
}

func TestUndefinedCausePersists(t *testing.T) {
	h := newHarness(t, platform.Undefined)
	c := h.controller(t)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if lines := readLines(t, h.dayFile()); len(lines) != 1 {
		t.Errorf("got %d lines, want 1", len(lines))
	}
}

func TestDegradedClock(t *testing.T) {
	h := newHarness(t, platform.TimerExpired)
	c := h.controller(t)
	h.bus.FailReg = map[byte]error{rtc.RegHours: errors.New("nack")}

	if err := c.Boot(context.Background()); err != nil {
		t.Fatalf("degraded clock must not abort the boot: %v", err)
	}

	path := filepath.Join(h.root, "m-2003", "2000", "unk", "00-00-00.csv")
	lines := readLines(t, path)
	if len(lines) != 1 || lines[0] != "00:00:00,812,301" {
		t.Errorf("got %q, want [00:00:00,812,301]", lines)
	}
}

func TestSensorFailureIsFatal(t *testing.T) {
	h := newHarness(t, platform.ColdBoot)
	h.sensors.ReadError = errors.New("i2c timeout")
	c := h.controller(t)

	err := c.Boot(context.Background())
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if h.plat.Slept {
		t.Error("must not sleep after a fatal error")
	}
	if h.store.Saves != 0 {
		t.Error("must not save a sleep timestamp after a fatal error")
	}
	if _, err := os.Stat(h.dayFile()); !os.IsNotExist(err) {
		t.Error("no partial record should be written")
	}
}

func TestWriteFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, platform.ColdBoot)
	c := h.controller(t)

	// A directory where the day file should be makes the append fail.
	if err := os.MkdirAll(h.dayFile(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := c.Boot(context.Background()); err != nil {
		t.Fatalf("write failure should not abort: %v", err)
	}
	if !h.plat.Slept {
		t.Error("expected sleep after a write failure")
	}
	if len(h.pub.Records) != 0 {
		t.Error("unwritten record should not be published")
	}
}

func TestRearmFailureIsFatal(t *testing.T) {
	for _, tc := range []struct {
		name string
		set  func(*platform.Fake)
	}{
		{"timer", func(f *platform.Fake) { f.TimerError = errors.New("no rtc alarm") }},
		{"pin", func(f *platform.Fake) { f.ExtError = errors.New("line busy") }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, platform.ColdBoot)
			tc.set(h.plat)
			c := h.controller(t)

			if err := c.Boot(context.Background()); err == nil {
				t.Fatal("expected fatal error")
			}
			if h.plat.Slept {
				t.Error("must not sleep unarmed")
			}
		})
	}
}

func TestTimestampSavedBeforeDeepSleep(t *testing.T) {
	h := newHarness(t, platform.ColdBoot)
	savesAtSleep := -1
	h.plat.OnCall = func(call string) {
		if call == "DeepSleep" {
			savesAtSleep = h.store.Saves
		}
	}
	c := h.controller(t)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if savesAtSleep != 1 {
		t.Errorf("saves at DeepSleep: got %d, want 1", savesAtSleep)
	}
	ts, _ := h.store.Load()
	if ts != sleepstore.FromTime(h.now) {
		t.Errorf("saved %+v, want %+v", ts, sleepstore.FromTime(h.now))
	}
	if !h.pub.Closed {
		t.Error("publisher should be closed before sleep")
	}
}

func TestSaveFailureIsFatal(t *testing.T) {
	h := newHarness(t, platform.ColdBoot)
	h.store.SaveError = errors.New("read-only")
	c := h.controller(t)
	if err := c.Boot(context.Background()); err == nil {
		t.Fatal("expected fatal error")
	}
	if h.plat.Slept {
		t.Error("must not sleep without a saved timestamp")
	}
}

func TestCallOrder(t *testing.T) {
	h := newHarness(t, platform.ColdBoot)
	h.cfg.IsolatePins = true
	c := h.controller(t)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := "WakeCause|EnableTimerWakeup(30s)|EnableExtWakeup(0x20000,low)|IsolatePins|DeepSleep"
	if got := strings.Join(h.plat.Calls, "|"); got != want {
		t.Errorf("calls:\n got %s\nwant %s", got, want)
	}

	names := strings.Join(h.pub.SystemEventNames(), "|")
	if names != "BOOT|SLEEP" {
		t.Errorf("system events: got %s", names)
	}
}

func TestGracePeriodHonoursCancel(t *testing.T) {
	h := newHarness(t, platform.ColdBoot)
	h.cfg.GracePeriod = time.Hour
	c := h.controller(t)

	ctx, cancel := context.WithCancel(context.Background())
	h.plat.OnCall = func(call string) {
		if strings.HasPrefix(call, "EnableExtWakeup") {
			cancel()
		}
	}
	if err := c.Boot(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if h.plat.Slept {
		t.Error("cancelled boot must not sleep")
	}
}

func TestStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slp.bin")

	h := newHarness(t, platform.ColdBoot)
	c := h.controller(t)
	c.deps.Store = sleepstore.NewRetainedStore(path)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Next boot: fresh controller, fresh store over the same region.
	h2 := newHarness(t, platform.TimerExpired)
	h2.now = h.now.Add(30 * time.Second)
	c2 := h2.controller(t)
	c2.deps.Store = sleepstore.NewRetainedStore(path)
	if err := c2.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := c2.deps.Tracker.Snapshot().SleptMs; got != 30000 {
		t.Errorf("slept ms: got %d, want 30000", got)
	}
}

func TestNewValidates(t *testing.T) {
	h := newHarness(t, platform.ColdBoot)
	clock, _ := rtc.Open(h.bus)
	good := Deps{
		Platform: h.plat,
		Clock:    clock,
		Sensors:  h.sensors,
		Store:    h.store,
		Resolver: datalog.Resolver{Root: h.root, DeviceID: "m-2003"},
	}
	if _, err := New(h.cfg, good); err != nil {
		t.Fatalf("valid deps: %v", err)
	}

	bad := good
	bad.Clock = nil
	if _, err := New(h.cfg, bad); err == nil {
		t.Error("expected error without clock")
	}
	bad = good
	bad.Resolver.DeviceID = ""
	if _, err := New(h.cfg, bad); err == nil {
		t.Error("expected error without device id")
	}
	cfg := h.cfg
	cfg.TimerPeriod = 0
	if _, err := New(cfg, good); err == nil {
		t.Error("expected error for zero timer period")
	}
}

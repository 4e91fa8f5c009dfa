// Package config loads the logger configuration: defaults, then an optional
// YAML file, then DUTYCYCLE_* environment overrides (optionally read from an
// env file first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/dutycycle-logger/internal/platform"
)

// Config represents the logger configuration.
type Config struct {
	DeviceID    string        `yaml:"device_id"`
	LogRoot     string        `yaml:"log_root"`
	Platform    string        `yaml:"platform"` // "sysfs" or "sim"
	TimerPeriod time.Duration `yaml:"timer_period"`
	GracePeriod time.Duration `yaml:"grace_period"`

	Wake       WakeConfig       `yaml:"wake"`
	Extract    ExtractConfig    `yaml:"extract"`
	RTC        BusConfig        `yaml:"rtc"`
	ADC        ADCConfig        `yaml:"adc"`
	SleepStore SleepStoreConfig `yaml:"sleep_store"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// WakeConfig selects the external wake pins.
type WakeConfig struct {
	Chip    string `yaml:"chip"`
	Pins    []int  `yaml:"pins"`
	Level   string `yaml:"level"` // "low" or "high"
	Isolate []int  `yaml:"isolate"`
}

// ExtractConfig tunes the data-extraction session.
type ExtractConfig struct {
	Dwell         time.Duration `yaml:"dwell"`
	QuitPin       int           `yaml:"quit_pin"` // -1 disables
	MountPoint    string        `yaml:"mount_point"`
	MountInterval time.Duration `yaml:"mount_interval"`
	HTTPAddr      string        `yaml:"http_addr"`
}

// BusConfig names an I2C bus. Empty selects the first one found.
type BusConfig struct {
	Bus string `yaml:"bus"`
}

// ADCConfig selects the converter channels.
type ADCConfig struct {
	Bus        string `yaml:"bus"`
	ChannelA   int    `yaml:"channel_a"`
	ChannelB   int    `yaml:"channel_b"`
	Calibrated bool   `yaml:"calibrated"`
}

// SleepStoreConfig selects where the sleep-entry timestamp lives.
type SleepStoreConfig struct {
	Backend string `yaml:"backend"` // "retained" or "kv"
	Path    string `yaml:"path"`
}

// MQTTConfig configures telemetry. An empty broker disables it.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Backlog        int           `yaml:"backlog"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		DeviceID:    "m-2003",
		LogRoot:     "/sdcard",
		Platform:    "sysfs",
		TimerPeriod: 30 * time.Second,
		GracePeriod: 1 * time.Second,
		Wake: WakeConfig{
			Chip:  "gpiochip0",
			Pins:  []int{17},
			Level: "low",
		},
		Extract: ExtractConfig{
			Dwell:         5 * time.Minute,
			QuitPin:       27,
			MountPoint:    "/media/usb",
			MountInterval: 500 * time.Millisecond,
			HTTPAddr:      ":80",
		},
		ADC: ADCConfig{
			ChannelA:   0,
			ChannelB:   1,
			Calibrated: true,
		},
		SleepStore: SleepStoreConfig{
			Backend: "retained",
			Path:    "/run/dutycycle/sleep.msgpack",
		},
		MQTT: MQTTConfig{
			ConnectTimeout: 3 * time.Second,
			Backlog:        16,
		},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ensureDefaults()
	return cfg, nil
}

// LoadEnvFile reads KEY=value pairs from path into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Environment variables that override file values.
const (
	EnvDeviceID     = "DUTYCYCLE_DEVICE_ID"
	EnvLogRoot      = "DUTYCYCLE_LOG_ROOT"
	EnvPlatform     = "DUTYCYCLE_PLATFORM"
	EnvTimerPeriod  = "DUTYCYCLE_TIMER_PERIOD"
	EnvExtractDwell = "DUTYCYCLE_EXTRACT_DWELL"
	EnvMQTTBroker   = "DUTYCYCLE_MQTT_BROKER"
	EnvMQTTUser     = "DUTYCYCLE_MQTT_USERNAME"
	EnvMQTTPassword = "DUTYCYCLE_MQTT_PASSWORD"
	EnvSleepStore   = "DUTYCYCLE_SLEEP_STORE"
)

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	str := map[string]*string{
		EnvDeviceID:     &c.DeviceID,
		EnvLogRoot:      &c.LogRoot,
		EnvPlatform:     &c.Platform,
		EnvMQTTBroker:   &c.MQTT.Broker,
		EnvMQTTUser:     &c.MQTT.Username,
		EnvMQTTPassword: &c.MQTT.Password,
		EnvSleepStore:   &c.SleepStore.Backend,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	dur := map[string]*time.Duration{
		EnvTimerPeriod:  &c.TimerPeriod,
		EnvExtractDwell: &c.Extract.Dwell,
	}
	for key, dst := range dur {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

// ensureDefaults fills fields a partial file left empty.
func (c *Config) ensureDefaults() {
	def := Default()
	if c.Platform == "" {
		c.Platform = def.Platform
	}
	if c.TimerPeriod == 0 {
		c.TimerPeriod = def.TimerPeriod
	}
	if c.Wake.Chip == "" {
		c.Wake.Chip = def.Wake.Chip
	}
	if c.Wake.Level == "" {
		c.Wake.Level = def.Wake.Level
	}
	if c.Extract.MountInterval == 0 {
		c.Extract.MountInterval = def.Extract.MountInterval
	}
	if c.SleepStore.Backend == "" {
		c.SleepStore.Backend = def.SleepStore.Backend
	}
	if c.SleepStore.Path == "" {
		c.SleepStore.Path = def.SleepStore.Path
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = def.MQTT.ConnectTimeout
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.DeviceID == "":
		return errors.New("config: device_id is required")
	case c.LogRoot == "":
		return errors.New("config: log_root is required")
	case c.TimerPeriod <= 0:
		return fmt.Errorf("config: timer_period %v must be positive", c.TimerPeriod)
	case c.GracePeriod < 0:
		return fmt.Errorf("config: grace_period %v is negative", c.GracePeriod)
	case c.Extract.Dwell < 0:
		return fmt.Errorf("config: extract.dwell %v is negative", c.Extract.Dwell)
	}
	if c.Platform != "sysfs" && c.Platform != "sim" {
		return fmt.Errorf("config: unknown platform %q", c.Platform)
	}
	if c.Wake.Level != "low" && c.Wake.Level != "high" {
		return fmt.Errorf("config: wake.level %q must be low or high", c.Wake.Level)
	}
	for _, p := range c.Wake.Pins {
		if p < 0 || p > 63 {
			return fmt.Errorf("config: wake pin %d out of range", p)
		}
	}
	if c.SleepStore.Backend != "retained" && c.SleepStore.Backend != "kv" {
		return fmt.Errorf("config: unknown sleep_store.backend %q", c.SleepStore.Backend)
	}
	return nil
}

// WakeMask returns the wake pins as a bit mask.
func (c *Config) WakeMask() uint64 {
	var mask uint64
	for _, p := range c.Wake.Pins {
		mask |= 1 << uint(p)
	}
	return mask
}

// WakeLevel returns the configured wake level.
func (c *Config) WakeLevel() platform.Level {
	if c.Wake.Level == "high" {
		return platform.WakeOnHigh
	}
	return platform.WakeOnLow
}

// String renders the non-secret settings for the startup log line.
func (c *Config) String() string {
	return "device=" + c.DeviceID +
		" root=" + c.LogRoot +
		" platform=" + c.Platform +
		" period=" + c.TimerPeriod.String() +
		" dwell=" + c.Extract.Dwell.String() +
		" store=" + c.SleepStore.Backend +
		" broker=" + strconv.Quote(c.MQTT.Broker)
}

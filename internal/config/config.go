// Package config loads and saves the gasguard daemon configuration.
// The file format is YAML; Default() provides values that work on a
// stock Raspberry Pi with the reference wiring.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration.
type Config struct {
	Poll       time.Duration    `yaml:"poll"`
	Sensors    SensorsConfig    `yaml:"sensors"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Alerting   AlertingConfig   `yaml:"alerting"`
	Actuators  ActuatorsConfig  `yaml:"actuators"`
	GPS        GPSConfig        `yaml:"gps"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Store      StoreConfig      `yaml:"store"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// SensorsConfig contains the analog front-end and per-channel curve settings.
type SensorsConfig struct {
	IIODir  string        `yaml:"iio_dir"` // ADC sysfs device directory
	VRef    float64       `yaml:"vref"`    // ADC reference voltage (V)
	Rl      float64       `yaml:"rl"`      // Load resistance (Ω)
	Preheat time.Duration `yaml:"preheat"` // Warm-up before readings are valid
	A       ChannelConfig `yaml:"a"`
	B       ChannelConfig `yaml:"b"`
}

// ChannelConfig contains the power-curve constants and calibration defaults
// for a single gas channel.
type ChannelConfig struct {
	ADCChannel  int     `yaml:"adc_channel"`
	CurveA      float64 `yaml:"curve_a"`
	CurveB      float64 `yaml:"curve_b"`
	BaselineOhm float64 `yaml:"baseline_ohm"` // Factory Ro until calibrated
	Sensitivity float64 `yaml:"sensitivity"`
}

// ThresholdsConfig contains the simple-band alert thresholds.
//
// Warning/Danger drive the alert state machine fallback bands. The legacy
// pair ships the second threshold set found in the field units (300/800);
// it only labels the status surface. The two sets disagree on purpose;
// which one is authoritative is still with product.
type ThresholdsConfig struct {
	Warning       float64 `yaml:"warning"`
	Danger        float64 `yaml:"danger"`
	LegacyWarning float64 `yaml:"legacy_warning"`
	LegacyDanger  float64 `yaml:"legacy_danger"`
}

// AlertingConfig contains notification gating parameters.
type AlertingConfig struct {
	PersistenceDelay time.Duration `yaml:"persistence_delay"` // Sustained-alert delay before first dispatch
	Cooldown         time.Duration `yaml:"cooldown"`          // Minimum spacing between dispatches
	ManualAddress    string        `yaml:"manual_address"`    // Fallback location when no fix exists
	GatewayURLs      []string      `yaml:"gateway_urls"`      // shoutrrr service URLs; empty disables dispatch
}

// ActuatorsConfig contains output pin assignments and write-queue tuning.
type ActuatorsConfig struct {
	PinGreen     int           `yaml:"pin_green"`
	PinYellow    int           `yaml:"pin_yellow"`
	PinRed       int           `yaml:"pin_red"`
	PinBuzzer    int           `yaml:"pin_buzzer"`
	BuzzerHold   time.Duration `yaml:"buzzer_hold"` // Audible hold after an alert clears
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Spacing      time.Duration `yaml:"spacing"` // Minimum gap between writes on one pin
	Retries      int           `yaml:"retries"`
}

// GPSConfig contains the position-service transport and gating settings.
type GPSConfig struct {
	Paths         []string      `yaml:"paths"` // Candidate serial devices, tried in order
	Baud          int           `yaml:"baud"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	BackoffCap    time.Duration `yaml:"backoff_cap"`
	MaxReconnects int           `yaml:"max_reconnects"`
	LastKnownFile string        `yaml:"last_known_file"`
}

// MQTTConfig contains the event-stream broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

// StoreConfig contains the reading/alert/contact database settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig contains the snapshot endpoint settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // Empty disables the server
}

// Default returns a configuration matching the reference hardware.
func Default() *Config {
	return &Config{
		Poll: 2 * time.Second,
		Sensors: SensorsConfig{
			IIODir:  "/sys/bus/iio/devices/iio:device0",
			VRef:    5.0,
			Rl:      10000,
			Preheat: 60 * time.Second,
			A: ChannelConfig{
				ADCChannel:  0,
				CurveA:      1000,
				CurveB:      2.5,
				BaselineOhm: 10000,
				Sensitivity: 1.0,
			},
			B: ChannelConfig{
				ADCChannel:  1,
				CurveA:      800,
				CurveB:      2.2,
				BaselineOhm: 20000,
				Sensitivity: 1.0,
			},
		},
		Thresholds: ThresholdsConfig{
			Warning:       100,
			Danger:        300,
			LegacyWarning: 300,
			LegacyDanger:  800,
		},
		Alerting: AlertingConfig{
			PersistenceDelay: 5 * time.Second,
			Cooldown:         5 * time.Minute,
		},
		Actuators: ActuatorsConfig{
			PinGreen:     17,
			PinYellow:    27,
			PinRed:       22,
			PinBuzzer:    18,
			BuzzerHold:   10 * time.Second,
			WriteTimeout: 2 * time.Second,
			Spacing:      100 * time.Millisecond,
			Retries:      2,
		},
		GPS: GPSConfig{
			Paths:         []string{"/dev/ttyAMA0", "/dev/serial0", "/dev/ttyUSB0", "/dev/ttyACM0"},
			Baud:          9600,
			StaleAfter:    30 * time.Second,
			BackoffBase:   2 * time.Second,
			BackoffCap:    60 * time.Second,
			MaxReconnects: 10,
			LastKnownFile: "/var/lib/gasguard/last-position.json",
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://127.0.0.1:1883",
			ClientID: "gasguard",
		},
		Store: StoreConfig{
			Path: "/var/lib/gasguard/gasguard.db",
		},
		HTTP: HTTPConfig{
			Addr: ":8090",
		},
	}
}

// Load reads configuration from the given path. A missing file is not an
// error: defaults are returned so a fresh install starts without setup.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Poll <= 0 {
		return fmt.Errorf("config: poll interval must be positive, got %v", c.Poll)
	}
	if c.Sensors.VRef <= 0 {
		return fmt.Errorf("config: vref must be positive, got %v", c.Sensors.VRef)
	}
	if c.Sensors.Rl <= 0 {
		return fmt.Errorf("config: load resistance must be positive, got %v", c.Sensors.Rl)
	}
	if c.Thresholds.Warning <= 0 || c.Thresholds.Danger <= c.Thresholds.Warning {
		return fmt.Errorf("config: thresholds must satisfy 0 < warning < danger, got %v/%v",
			c.Thresholds.Warning, c.Thresholds.Danger)
	}
	if c.Actuators.Retries < 0 {
		return fmt.Errorf("config: retries must not be negative, got %d", c.Actuators.Retries)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Poll != 2*time.Second {
		t.Errorf("poll = %v, want default 2s", cfg.Poll)
	}
	if cfg.Actuators.PinGreen != 17 || cfg.Actuators.PinBuzzer != 18 {
		t.Errorf("pins = %+v, want reference wiring", cfg.Actuators)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Poll = 5 * time.Second
	cfg.Thresholds.Warning = 120
	cfg.Thresholds.Danger = 400
	cfg.Alerting.ManualAddress = "12 Tank Farm Road"
	cfg.Alerting.GatewayURLs = []string{"telegram://token@telegram?chats=1"}
	cfg.GPS.Paths = []string{"/dev/ttyUSB1"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Poll != 5*time.Second {
		t.Errorf("poll = %v, want 5s", got.Poll)
	}
	if got.Thresholds.Warning != 120 || got.Thresholds.Danger != 400 {
		t.Errorf("thresholds = %+v", got.Thresholds)
	}
	if got.Alerting.ManualAddress != "12 Tank Farm Road" {
		t.Errorf("manual address = %q", got.Alerting.ManualAddress)
	}
	if len(got.Alerting.GatewayURLs) != 1 {
		t.Errorf("gateway urls = %v", got.Alerting.GatewayURLs)
	}
	if len(got.GPS.Paths) != 1 || got.GPS.Paths[0] != "/dev/ttyUSB1" {
		t.Errorf("gps paths = %v", got.GPS.Paths)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := "poll: 10s\nthresholds:\n  warning: 300\n  danger: 800\n"
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Poll != 10*time.Second {
		t.Errorf("poll = %v, want 10s", cfg.Poll)
	}
	if cfg.Thresholds.Warning != 300 || cfg.Thresholds.Danger != 800 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	// Untouched sections keep their defaults.
	if cfg.Sensors.VRef != 5.0 {
		t.Errorf("vref = %v, want default 5.0", cfg.Sensors.VRef)
	}
	if cfg.MQTT.Broker == "" {
		t.Error("broker default lost")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"inverted thresholds", "thresholds:\n  warning: 500\n  danger: 100\n"},
		{"zero poll", "poll: 0s\n"},
		{"negative vref", "sensors:\n  vref: -1\n"},
		{"negative retries", "actuators:\n  retries: -1\n"},
		{"garbage yaml", "{{{\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("stock parameters must validate: %v", err)
	}
	if got := cfg.Control.TickPeriod(); got != 10*time.Millisecond {
		t.Errorf("tick period = %s, want 10ms at 100 Hz", got)
	}
	if got := cfg.Control.CmdTimeout(); got != 100*time.Millisecond {
		t.Errorf("cmd timeout = %s, want 100ms", got)
	}
	if got := cfg.Bus.SDOTimeout(); got != 5*time.Millisecond {
		t.Errorf("sdo timeout = %s, want 5ms", got)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zlac.yaml")
	data := []byte(`
robot:
  wheel_radius: 0.1
control:
  torque_mode: true
bus:
  node_ids: {fl: 5, bl: 6, br: 7, fr: 8}
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Robot.WheelRadius != 0.1 {
		t.Errorf("wheel_radius = %g, want overlay value 0.1", cfg.Robot.WheelRadius)
	}
	if !cfg.Control.TorqueMode {
		t.Error("torque_mode overlay not applied")
	}
	if got := cfg.Bus.NodeIDs.Array(); got != [4]uint8{5, 6, 7, 8} {
		t.Errorf("node ids = %v, want [5 6 7 8]", got)
	}
	// Untouched keys keep their defaults.
	if cfg.Robot.TrackWidth != 0.8 {
		t.Errorf("track_width = %g, want default 0.8", cfg.Robot.TrackWidth)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("broker = %q, want default", cfg.MQTT.Broker)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("robot:\n  wheel_radius: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("zero wheel_radius must be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing config file must be an error")
	}
}

func TestBrokerEnvOverride(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://robot:1883")
	t.Setenv("MQTT_USERNAME", "drive")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://robot:1883" {
		t.Errorf("broker = %q, want env override", cfg.MQTT.Broker)
	}
	if cfg.MQTT.Username != "drive" {
		t.Errorf("username = %q, want env override", cfg.MQTT.Username)
	}
}

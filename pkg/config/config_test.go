package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartteach/masterlink/pkg/arm"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.MasterEndpoint != "192.168.0.43:50051" {
		t.Errorf("MasterEndpoint = %s", cfg.MasterEndpoint)
	}
	if cfg.SlaveEndpoint != "192.168.0.41:50054" {
		t.Errorf("SlaveEndpoint = %s", cfg.SlaveEndpoint)
	}
	if time.Duration(cfg.ConnectTimeout) != 5*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.ConnectTimeout)
	}
	if time.Duration(cfg.TickInterval) != 50*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval)
	}
	if cfg.HomePolicy != arm.HomeAlways {
		t.Errorf("HomePolicy = %s", cfg.HomePolicy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SlaveEndpoint != Default().SlaveEndpoint {
		t.Errorf("SlaveEndpoint = %s, want default", cfg.SlaveEndpoint)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masterlink.yaml")
	content := strings.Join([]string{
		"slave_endpoint: 10.0.0.9:6000",
		"tick_interval: 100ms",
		"connect_timeout: 2s",
		"home_policy: position_control_only",
		"left_arm:",
		"  port: /dev/ttyUSB0",
		"  calibration: calibration/left.json",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SlaveEndpoint != "10.0.0.9:6000" {
		t.Errorf("SlaveEndpoint = %s", cfg.SlaveEndpoint)
	}
	if time.Duration(cfg.TickInterval) != 100*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval)
	}
	if time.Duration(cfg.ConnectTimeout) != 2*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.ConnectTimeout)
	}
	if cfg.HomePolicy != arm.HomePositionOnly {
		t.Errorf("HomePolicy = %s", cfg.HomePolicy)
	}
	if cfg.LeftArm.Port != "/dev/ttyUSB0" {
		t.Errorf("LeftArm.Port = %s", cfg.LeftArm.Port)
	}
	// Unset fields keep their defaults.
	if cfg.MasterEndpoint != Default().MasterEndpoint {
		t.Errorf("MasterEndpoint = %s, want default", cfg.MasterEndpoint)
	}
}

func TestDurationBareSeconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masterlink.yaml")
	if err := os.WriteFile(path, []byte("connect_timeout: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if time.Duration(cfg.ConnectTimeout) != 3*time.Second {
		t.Errorf("ConnectTimeout = %v, want 3s", cfg.ConnectTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	// Env wins over file values, not just defaults.
	path := filepath.Join(t.TempDir(), "masterlink.yaml")
	content := "slave_endpoint: 10.0.0.9:6000\ntick_interval: 100ms\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MASTERLINK_SLAVE_ENDPOINT", "172.16.0.5:7070")
	t.Setenv("MASTERLINK_LOG_DIR", "/var/log/masterlink")
	t.Setenv("MASTERLINK_CONNECT_TIMEOUT", "250ms")
	t.Setenv("MASTERLINK_TICK_INTERVAL", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SlaveEndpoint != "172.16.0.5:7070" {
		t.Errorf("SlaveEndpoint = %s, want env override", cfg.SlaveEndpoint)
	}
	if cfg.LogDir != "/var/log/masterlink" {
		t.Errorf("LogDir = %s, want env override", cfg.LogDir)
	}
	if time.Duration(cfg.ConnectTimeout) != 250*time.Millisecond {
		t.Errorf("ConnectTimeout = %v, want env override 250ms", cfg.ConnectTimeout)
	}
	// Bare numbers are seconds, as in the original deployment.
	if time.Duration(cfg.TickInterval) != 2*time.Second {
		t.Errorf("TickInterval = %v, want env override 2s", cfg.TickInterval)
	}
}

func TestEnvOverrideBadDuration(t *testing.T) {
	t.Setenv("MASTERLINK_TICK_INTERVAL", "soon")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load accepted an unparseable MASTERLINK_TICK_INTERVAL")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad slave endpoint", func(c *Config) { c.SlaveEndpoint = "not-an-endpoint" }},
		{"empty host", func(c *Config) { c.SlaveEndpoint = ":50054" }},
		{"port zero", func(c *Config) { c.SlaveEndpoint = "10.0.0.1:0" }},
		{"port too large", func(c *Config) { c.MasterEndpoint = "10.0.0.1:70000" }},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }},
		{"zero timeout", func(c *Config) { c.ConnectTimeout = 0 }},
		{"bad home policy", func(c *Config) { c.HomePolicy = "sometimes" }},
		{"empty log dir", func(c *Config) { c.LogDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masterlink.yaml")

	cfg := Default()
	cfg.SlaveEndpoint = "10.1.1.1:5000"
	cfg.TickInterval = Duration(25 * time.Millisecond)
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SlaveEndpoint != cfg.SlaveEndpoint {
		t.Errorf("SlaveEndpoint = %s, want %s", loaded.SlaveEndpoint, cfg.SlaveEndpoint)
	}
	if loaded.TickInterval != cfg.TickInterval {
		t.Errorf("TickInterval = %v, want %v", loaded.TickInterval, cfg.TickInterval)
	}
}

// Package config loads the master device configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smartteach/masterlink/pkg/arm"
)

// DefaultConfigFile is the config filename looked up in the working
// directory.
const DefaultConfigFile = "masterlink.yaml"

// Duration wraps time.Duration with YAML support for values like "50ms".
type Duration time.Duration

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML parses either a duration string or a bare number of
// seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// parseDuration accepts either time.Duration syntax ("50ms") or a bare
// number of seconds, matching the original deployment's env convention.
func parseDuration(s string) (Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return Duration(time.Duration(secs) * time.Second), nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return Duration(parsed), nil
}

// ArmPorts configures the local servo bus connection for one arm.
type ArmPorts struct {
	Port        string `yaml:"port"`
	Calibration string `yaml:"calibration"`
}

// Config is the device configuration.
type Config struct {
	// MasterEndpoint is the master device's own streaming endpoint.
	MasterEndpoint string `yaml:"master_endpoint"`
	// SlaveEndpoint is the slave robot the controller streams to.
	SlaveEndpoint  string         `yaml:"slave_endpoint"`
	ConnectTimeout Duration       `yaml:"connect_timeout"`
	TickInterval   Duration       `yaml:"tick_interval"`
	LogDir         string         `yaml:"log_dir"`
	HomePolicy     arm.HomePolicy `yaml:"home_policy"`
	LeftArm        ArmPorts       `yaml:"left_arm"`
	RightArm       ArmPorts       `yaml:"right_arm"`
}

// Default returns the factory configuration for the master device.
func Default() Config {
	return Config{
		MasterEndpoint: "192.168.0.43:50051",
		SlaveEndpoint:  "192.168.0.41:50054",
		ConnectTimeout: Duration(5 * time.Second),
		TickInterval:   Duration(50 * time.Millisecond),
		LogDir:         "logs",
		HomePolicy:     arm.HomeAlways,
	}
}

// Load reads path, falling back to defaults if the file does not exist,
// then applies environment overrides and validates. An empty path uses
// DefaultConfigFile.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnv overrides file values from the environment, mirroring the
// device's deployment convention.
func (c *Config) applyEnv() error {
	if v := os.Getenv("MASTERLINK_MASTER_ENDPOINT"); v != "" {
		c.MasterEndpoint = v
	}
	if v := os.Getenv("MASTERLINK_SLAVE_ENDPOINT"); v != "" {
		c.SlaveEndpoint = v
	}
	if v := os.Getenv("MASTERLINK_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("MASTERLINK_CONNECT_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("MASTERLINK_CONNECT_TIMEOUT: %w", err)
		}
		c.ConnectTimeout = d
	}
	if v := os.Getenv("MASTERLINK_TICK_INTERVAL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("MASTERLINK_TICK_INTERVAL: %w", err)
		}
		c.TickInterval = d
	}
	return nil
}

// Validate checks endpoints, intervals, and the home policy.
func (c Config) Validate() error {
	if err := validateEndpoint(c.MasterEndpoint); err != nil {
		return fmt.Errorf("master_endpoint: %w", err)
	}
	if err := validateEndpoint(c.SlaveEndpoint); err != nil {
		return fmt.Errorf("slave_endpoint: %w", err)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if !c.HomePolicy.Valid() {
		return fmt.Errorf("home_policy %q is not one of %q, %q", c.HomePolicy, arm.HomeAlways, arm.HomePositionOnly)
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir must not be empty")
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return fmt.Errorf("invalid host:port %q: %w", endpoint, err)
	}
	if host == "" {
		return fmt.Errorf("empty host in %q", endpoint)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port in %q", endpoint)
	}
	return nil
}

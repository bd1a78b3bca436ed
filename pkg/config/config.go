package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/internal/consumer"
	"github.com/srg/blemap/internal/device"
	"github.com/srg/blemap/internal/report"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// LogLevel is a logrus level name; empty keeps logging silent.
	LogLevel string `yaml:"log_level"`

	Target           TargetConfig  `yaml:"target"`
	Scan             ScanConfig    `yaml:"scan"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout" default:"10s"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" default:"10s"`
	Policy           PolicyConfig  `yaml:"policy"`
	OutputFormat     string        `yaml:"output_format" default:"table"`
	Write            WriteConfig   `yaml:"write"`
}

// TargetConfig names the peripheral and service to map.
type TargetConfig struct {
	Name        string `yaml:"name"`
	ServiceUUID string `yaml:"service_uuid"`
	StartHandle uint16 `yaml:"start_handle" default:"1"`
	EndHandle   uint16 `yaml:"end_handle" default:"65535"`
}

// ScanConfig holds scan parameters. Interval and window are in 0.625 ms units.
type ScanConfig struct {
	Active          bool   `yaml:"active" default:"true"`
	Interval        uint16 `yaml:"interval" default:"96"`
	Window          uint16 `yaml:"window" default:"48"`
	AllowDuplicates bool   `yaml:"allow_duplicates"`
}

// PolicyConfig holds the opt-in recovery policies.
type PolicyConfig struct {
	RescanOnDisconnect          bool `yaml:"rescan_on_disconnect"`
	DisconnectOnServiceNotFound bool `yaml:"disconnect_on_service_not_found"`
}

// WriteConfig configures the post-discovery payload writer.
type WriteConfig struct {
	CharacteristicUUID string `yaml:"characteristic_uuid" default:"0001"`
	WithResponse       bool   `yaml:"with_response"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. Fields absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.TargetSpec(); err != nil {
		return err
	}
	if c.Scan.Interval == 0 || c.Scan.Window == 0 {
		return fmt.Errorf("scan.interval and scan.window must be > 0")
	}
	if c.Scan.Window > c.Scan.Interval {
		return fmt.Errorf("scan.window (%d) must not exceed scan.interval (%d)", c.Scan.Window, c.Scan.Interval)
	}
	if c.ConnectTimeout < 0 || c.DiscoveryTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if _, err := report.ParseFormat(c.OutputFormat); err != nil {
		return fmt.Errorf("output_format: %w", err)
	}
	if _, err := device.ParseUUID(c.Write.CharacteristicUUID); err != nil {
		return fmt.Errorf("write.characteristic_uuid: %w", err)
	}
	return nil
}

// Level parses LogLevel. Empty means PanicLevel.
func (c *Config) Level() (logrus.Level, error) {
	if strings.TrimSpace(c.LogLevel) == "" {
		return logrus.PanicLevel, nil
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.PanicLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// TargetSpec builds the session target.
func (c *Config) TargetSpec() (central.TargetSpec, error) {
	target, err := central.NewTargetSpec(c.Target.Name, c.Target.ServiceUUID)
	if err != nil {
		return central.TargetSpec{}, err
	}
	target.StartHandle = c.Target.StartHandle
	target.EndHandle = c.Target.EndHandle
	if err := target.Validate(); err != nil {
		return central.TargetSpec{}, err
	}
	return target, nil
}

// Options builds the session options.
func (c *Config) Options() central.Options {
	opts := central.DefaultOptions()
	opts.Scan = device.ScanParams{
		Active:          c.Scan.Active,
		Interval:        c.Scan.Interval,
		Window:          c.Scan.Window,
		AllowDuplicates: c.Scan.AllowDuplicates,
	}
	opts.ConnectTimeout = c.ConnectTimeout
	opts.DiscoveryTimeout = c.DiscoveryTimeout
	opts.RescanOnDisconnect = c.Policy.RescanOnDisconnect
	opts.DisconnectOnServiceNotFound = c.Policy.DisconnectOnServiceNotFound
	return opts
}

// WriterOptions builds the payload writer options.
func (c *Config) WriterOptions() consumer.WriterOptions {
	opts := consumer.DefaultWriterOptions()
	opts.CharacteristicUUID = c.Write.CharacteristicUUID
	opts.WithResponse = c.Write.WithResponse
	return opts
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	lvl, err := c.Level()
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// YAML renders the effective configuration.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

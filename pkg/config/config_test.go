package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/device"
	"github.com/srg/blemap/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "", cfg.LogLevel)
	assert.Equal(t, uint16(1), cfg.Target.StartHandle)
	assert.Equal(t, uint16(0xFFFF), cfg.Target.EndHandle)
	assert.True(t, cfg.Scan.Active)
	assert.Equal(t, uint16(0x0060), cfg.Scan.Interval)
	assert.Equal(t, uint16(0x0030), cfg.Scan.Window)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.DiscoveryTimeout)
	assert.False(t, cfg.Policy.RescanOnDisconnect)
	assert.False(t, cfg.Policy.DisconnectOnServiceNotFound)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, "0001", cfg.Write.CharacteristicUUID)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	// GOAL: Verify file values override defaults and absent fields keep them
	//
	// TEST SCENARIO: fixture sets a subset of fields → those change, the rest stay default

	data, err := testutils.LoadFixture("pkg/config/testdata/christmas.yaml")
	require.NoError(t, err)

	cfg, err := Parse([]byte(data))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Christmas display", cfg.Target.Name)
	assert.False(t, cfg.Scan.Active, "an explicit false MUST override the default")
	assert.Equal(t, uint16(0x0060), cfg.Scan.Interval, "absent fields MUST keep defaults")
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.DiscoveryTimeout)
	assert.True(t, cfg.Policy.RescanOnDisconnect)
	assert.Equal(t, "json", cfg.OutputFormat)

	opts := cfg.Options()
	assert.Equal(t, device.ScanParams{Active: false, Interval: 0x0060, Window: 0x0030}, opts.Scan)
	assert.Equal(t, 5*time.Second, opts.ConnectTimeout)
	assert.True(t, opts.RescanOnDisconnect)
	assert.False(t, opts.DisconnectOnServiceNotFound)

	target, err := cfg.TargetSpec()
	require.NoError(t, err)
	assert.Equal(t, "1234", device.UUIDString(target.Service))
	assert.Equal(t, uint16(1), target.StartHandle)

	w := cfg.WriterOptions()
	assert.Equal(t, "0001", w.CharacteristicUUID)
	assert.True(t, w.WithResponse)
	assert.Equal(t, 20, w.ChunkSize)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("testdata/missing.yaml")
	assert.ErrorContains(t, err, "reading config file")

	_, err = Parse([]byte("target: [unclosed"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Target.Name = "Christmas display"
		cfg.Target.ServiceUUID = "1234"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty name", func(c *Config) { c.Target.Name = "" }, "target name cannot be empty"},
		{"long name", func(c *Config) { c.Target.Name = "this advertised name is far too long" }, "longer than"},
		{"missing service", func(c *Config) { c.Target.ServiceUUID = "" }, "UUID cannot be empty"},
		{"bad service", func(c *Config) { c.Target.ServiceUUID = "xyz" }, "invalid UUID"},
		{"zero start handle", func(c *Config) { c.Target.StartHandle = 0 }, "at least 0x0001"},
		{"inverted range", func(c *Config) { c.Target.StartHandle = 0x20; c.Target.EndHandle = 0x10 }, "above end handle"},
		{"window above interval", func(c *Config) { c.Scan.Window = 0x100 }, "must not exceed"},
		{"zero interval", func(c *Config) { c.Scan.Interval = 0 }, "must be > 0"},
		{"negative timeout", func(c *Config) { c.ConnectTimeout = -time.Second }, "negative"},
		{"unknown format", func(c *Config) { c.OutputFormat = "csv" }, "unknown output format"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
		{"bad write uuid", func(c *Config) { c.Write.CharacteristicUUID = "" }, "write.characteristic_uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{name: "silent by default", logLevel: "", want: logrus.PanicLevel},
		{name: "debug", logLevel: "debug", want: logrus.DebugLevel},
		{name: "info", logLevel: "info", want: logrus.InfoLevel},
		{name: "warn", logLevel: "warn", want: logrus.WarnLevel},
		{name: "error", logLevel: "ERROR", want: logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_YAMLRoundTripsThroughParse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target.Name = "Christmas display"
	cfg.Target.ServiceUUID = "1234"

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "name: Christmas display")

	back, err := Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}

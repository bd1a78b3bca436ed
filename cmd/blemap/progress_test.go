package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer shared with the printer goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressPrinter_ShowsPhaseUntilReady(t *testing.T) {
	// GOAL: Verify the printer reports phase changes and clears the line once mapping completes
	//
	// TEST SCENARIO: start → connecting → ready → line cleared, ticker stopped

	out := &syncBuffer{}
	p := newProgressPrinter(out, true, "Looking for \"Lamp\"")
	p.Start()

	p.Phase(central.PhaseConnecting)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), central.PhaseConnecting.String())
	}, time.Second, 10*time.Millisecond, "connecting phase MUST be shown")

	p.Phase(central.PhaseReady)
	assert.True(t, strings.HasSuffix(out.String(), clearLineSequence), "ready MUST clear the progress line")

	p.Stop()
	assert.True(t, strings.HasSuffix(out.String(), clearLineSequence), "a second Stop MUST be a no-op")
	assert.Contains(t, out.String(), "Looking for \"Lamp\"")
}

func TestProgressPrinter_DisabledWritesNothing(t *testing.T) {
	out := &syncBuffer{}
	p := newProgressPrinter(out, false, "Looking")
	p.Start()
	p.Phase(central.PhaseScanning)
	p.Stop()

	assert.Empty(t, out.String())
}

func TestProgressPrinter_StartTwicePanics(t *testing.T) {
	p := newProgressPrinter(&syncBuffer{}, false, "Looking")
	p.Start()
	assert.Panics(t, p.Start)
}

func TestConfigureLogger(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String("log-level", "", "")
		cmd.Flags().Bool("verbose", false, "")
		return cmd
	}

	tests := []struct {
		name     string
		logLevel string
		verbose  bool
		cfgLevel string
		want     logrus.Level
		wantErr  string
	}{
		{name: "silent by default", want: logrus.PanicLevel},
		{name: "config level", cfgLevel: "info", want: logrus.InfoLevel},
		{name: "verbose beats config", verbose: true, cfgLevel: "warn", want: logrus.DebugLevel},
		{name: "flag beats verbose", logLevel: "error", verbose: true, want: logrus.ErrorLevel},
		{name: "trace", logLevel: "trace", want: logrus.TraceLevel},
		{name: "bad flag", logLevel: "loud", wantErr: "invalid log level"},
		{name: "bad config", cfgLevel: "loud", wantErr: "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newCmd()
			require.NoError(t, cmd.Flags().Set("log-level", tt.logLevel))
			if tt.verbose {
				require.NoError(t, cmd.Flags().Set("verbose", "true"))
			}
			cmd.SetErr(&bytes.Buffer{})

			cfg := config.DefaultConfig()
			cfg.LogLevel = tt.cfgLevel

			logger, err := configureLogger(cmd, cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/internal/device"
	goble "github.com/srg/blemap/internal/device/go-ble"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "bluetooth off",
			err:  fmt.Errorf("%w: %w", central.ErrRadioUnavailable, goble.ErrBluetoothOff),
			want: "Bluetooth is turned off or no adapter is available; enable it and retry",
		},
		{
			name: "radio unavailable",
			err:  fmt.Errorf("%w: %w", central.ErrRadioUnavailable, errors.New("adapter busy")),
			want: "could not start scanning: adapter busy",
		},
		{
			name: "service not found",
			err:  &central.NotFoundError{Resource: "service", UUIDs: []string{"1234"}},
			want: "service 1234 not found on the device",
		},
		{
			name: "characteristic not found",
			err:  &central.NotFoundError{Resource: "characteristic", UUIDs: []string{"1234", "0001"}},
			want: "characteristic 0001 not found on the device",
		},
		{
			name: "connect timeout",
			err: &central.ConnectionFailedError{
				Address: TestDeviceAddress1,
				Status:  device.StatusConnectionTimeout,
				Err:     central.ErrTimeout,
			},
			want: fmt.Sprintf("could not connect to %s: %s", TestDeviceAddress1, device.StatusConnectionTimeout),
		},
		{
			name: "link lost",
			err:  &central.DisconnectedError{Handle: 1, Reason: device.StatusRemoteUserTerminated},
			want: fmt.Sprintf("device disconnected: %s", device.StatusRemoteUserTerminated),
		},
		{
			name: "discovery timeout",
			err:  fmt.Errorf("discovery: %w", central.ErrTimeout),
			want: "device stopped responding (discovery: timeout)",
		},
		{
			name: "deadline",
			err:  ErrTargetNotFound,
			want: "no matching device was found before the timeout",
		},
		{
			name: "raw deadline",
			err:  context.DeadlineExceeded,
			want: "no matching device was found before the timeout",
		},
		{
			name: "other",
			err:  errors.New("something odd"),
			want: "something odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

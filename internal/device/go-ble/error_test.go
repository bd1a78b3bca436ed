package goble

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/srg/blemap/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"darwin powered off", errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"), ErrBluetoothOff},
		{"explicit off", errors.New("Bluetooth is turned off"), ErrBluetoothOff},
		{"linux hci", errors.New("can't init hci: no such device"), ErrBluetoothOff},
		{"no adapter", errors.New("no devices available"), ErrBluetoothOff},
		{"not connected", errors.New("device not connected"), ErrNotConnected},
		{"disconnected", errors.New("connection disconnected"), ErrNotConnected},
		{"already connected", errors.New("Device already connected"), ErrAlreadyConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeError(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.Contains(t, got.Error(), tt.in.Error(), "the original message MUST be kept")
		})
	}

	t.Run("unknown passes through", func(t *testing.T) {
		in := fmt.Errorf("att: insufficient authentication")
		assert.Same(t, in, NormalizeError(in))
	})
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, NormalizeError(nil))
	})
}

func TestConnectStatus(t *testing.T) {
	assert.Equal(t, device.StatusLocalHostTerminated, connectStatus(context.Canceled, true))
	assert.Equal(t, device.StatusConnectionTimeout, connectStatus(fmt.Errorf("dial: %w", context.DeadlineExceeded), false))
	assert.Equal(t, device.StatusConnectionFailed, connectStatus(errors.New("le connection failed"), false))
}

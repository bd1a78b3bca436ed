package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/blemap/internal/device"
)

// Transport-level errors.
var (
	ErrBluetoothOff     = errors.New("bluetooth is turned off")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrUnknownHandle    = errors.New("unknown connection handle")
	ErrAlreadyScanning  = errors.New("scan already in progress")
	ErrNotScanning      = errors.New("no scan in progress")
)

// NormalizeError maps known go-ble error strings to the transport sentinels.
// The original error stays in the message.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "can't init hci"), containsIgnoreCase(msg, "no devices available"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "device not connected"), containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	default:
		return err
	}
}

// connectStatus picks the HCI status reported for a failed dial.
func connectStatus(err error, local bool) device.Status {
	switch {
	case local:
		return device.StatusLocalHostTerminated
	case errors.Is(err, context.DeadlineExceeded):
		return device.StatusConnectionTimeout
	default:
		return device.StatusConnectionFailed
	}
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

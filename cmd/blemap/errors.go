package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/blemap/internal/central"
	goble "github.com/srg/blemap/internal/device/go-ble"
)

// Command-level errors
var (
	// ErrTargetNotFound means the deadline passed before a matching device
	// was mapped.
	ErrTargetNotFound = errors.New("target device not mapped before the deadline")
)

// FormatUserError turns an error into a one-line operator message.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var (
		notFound   *central.NotFoundError
		connFailed *central.ConnectionFailedError
		lost       *central.DisconnectedError
		state      *central.StateError
	)

	switch {
	case errors.Is(err, goble.ErrBluetoothOff):
		return "Bluetooth is turned off or no adapter is available; enable it and retry"
	case errors.Is(err, central.ErrRadioUnavailable):
		return fmt.Sprintf("could not start scanning: %s", cause(err, central.ErrRadioUnavailable))
	case errors.As(err, &notFound):
		if len(notFound.UUIDs) > 0 {
			return fmt.Sprintf("%s %s not found on the device", notFound.Resource, notFound.UUIDs[len(notFound.UUIDs)-1])
		}
		return notFound.Error()
	case errors.As(err, &connFailed):
		return fmt.Sprintf("could not connect to %s: %s", connFailed.Address, connFailed.Status)
	case errors.As(err, &lost):
		return fmt.Sprintf("device disconnected: %s", lost.Reason)
	case errors.Is(err, central.ErrTimeout):
		return fmt.Sprintf("device stopped responding (%s)", err)
	case errors.Is(err, ErrTargetNotFound), errors.Is(err, context.DeadlineExceeded):
		return "no matching device was found before the timeout"
	case errors.As(err, &state):
		return fmt.Sprintf("internal state error: %s", state)
	default:
		return err.Error()
	}
}

// cause strips the sentinel prefix from a wrapped message.
func cause(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

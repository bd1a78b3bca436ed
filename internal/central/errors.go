package central

import (
	"errors"
	"fmt"

	"github.com/srg/blemap/internal/device"
)

// Request and lifecycle errors.
var (
	ErrRadioUnavailable       = errors.New("radio unavailable")
	ErrScanStopFailed         = errors.New("scan stop failed")
	ErrConnectRequestFailed   = errors.New("connect request failed")
	ErrDiscoveryRequestFailed = errors.New("discovery request failed")
	ErrServiceNotFound        = errors.New("service not found")
	ErrStaleCallback          = errors.New("stale callback")
	ErrTimeout                = errors.New("timeout")
	ErrInvalidState           = errors.New("invalid state")
)

// StateError reports an operation requested in a state that does not allow it.
type StateError struct {
	Op    string
	State fmt.Stringer
}

func (e *StateError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: not allowed while %s", e.Op, e.State)
}

// Is lets errors.Is match ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ConnectionFailedError reports an asynchronous connect failure.
type ConnectionFailedError struct {
	Address string
	Status  device.Status
	Err     error
}

func (e *ConnectionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection to %s failed: status %s: %v", e.Address, e.Status, e.Err)
	}
	return fmt.Sprintf("connection to %s failed: status %s", e.Address, e.Status)
}

func (e *ConnectionFailedError) Unwrap() error {
	return e.Err
}

// DisconnectedError reports the loss of the live connection.
type DisconnectedError struct {
	Handle device.ConnHandle
	Reason device.Status
}

func (e *DisconnectedError) Error() string {
	return fmt.Sprintf("disconnected %s: reason %s", e.Handle, e.Reason)
}

// NotFoundError represents a GATT resource the peripheral does not expose.
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // [service] or [service, characteristic]
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// Is lets errors.Is match ErrServiceNotFound for missing services.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrServiceNotFound && e.Resource == "service"
}

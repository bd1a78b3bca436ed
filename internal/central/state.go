package central

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/blemap/internal/device"
)

// ScanState is the scan controller state.
type ScanState int

const (
	ScanIdle ScanState = iota
	ScanScanning
)

func (s ScanState) String() string {
	switch s {
	case ScanIdle:
		return "idle"
	case ScanScanning:
		return "scanning"
	default:
		return fmt.Sprintf("ScanState(%d)", int(s))
	}
}

// ConnState is the connection controller state.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
)

func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Phase is the overall session phase derived from both controllers.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseConnecting
	PhaseConnected
	PhaseDiscoveringServices
	PhaseDiscoveringCharacteristics
	PhaseReady
)

var phaseNames = [...]string{
	PhaseIdle:                       "idle",
	PhaseScanning:                   "scanning",
	PhaseConnecting:                 "connecting",
	PhaseConnected:                  "connected",
	PhaseDiscoveringServices:        "discovering services",
	PhaseDiscoveringCharacteristics: "discovering characteristics",
	PhaseReady:                      "ready",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// cursor is the in-flight state of one discovery phase.
type cursor struct {
	id    uint64
	typ   device.DiscoveryType
	uuid  ble.UUID
	start uint16
	end   uint16
}

func (c *cursor) request() device.DiscoveryRequest {
	return device.DiscoveryRequest{Cursor: c.id, Type: c.typ, UUID: c.uuid, Start: c.start, End: c.end}
}

func (c *cursor) contains(h uint16) bool {
	return h >= c.start && h <= c.end
}

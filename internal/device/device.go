package device

import (
	"fmt"
	"time"

	"github.com/go-ble/ble"
)

// ConnHandle identifies one connection at the transport boundary.
// The zero value never names a live connection.
type ConnHandle uint64

// NoHandle is the zero ConnHandle.
const NoHandle ConnHandle = 0

func (h ConnHandle) String() string {
	if h == NoHandle {
		return "none"
	}
	return fmt.Sprintf("conn#%d", uint64(h))
}

// Status is an HCI status or disconnect reason code.
type Status uint8

const (
	StatusSuccess              Status = 0x00
	StatusConnectionTimeout    Status = 0x08
	StatusRemoteUserTerminated Status = 0x13
	StatusLocalHostTerminated  Status = 0x16
	StatusUnspecified          Status = 0x1F
	StatusConnectionFailed     Status = 0x3E
)

var statusNames = map[Status]string{
	StatusSuccess:              "success",
	StatusConnectionTimeout:    "connection timeout",
	StatusRemoteUserTerminated: "remote user terminated connection",
	StatusLocalHostTerminated:  "connection terminated by local host",
	StatusUnspecified:          "unspecified error",
	StatusConnectionFailed:     "connection failed to be established",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return fmt.Sprintf("0x%02x (%s)", uint8(s), name)
	}
	return fmt.Sprintf("0x%02x", uint8(s))
}

// AdvType is the advertising PDU type of a report.
type AdvType uint8

const (
	AdvInd        AdvType = 0x00 // connectable undirected
	AdvDirectInd  AdvType = 0x01 // connectable directed
	AdvScanInd    AdvType = 0x02 // scannable undirected
	AdvNonconnInd AdvType = 0x03 // non-connectable undirected
	AdvScanRsp    AdvType = 0x04 // scan response
)

// AdElement is one type-tagged data element of an advertising payload.
type AdElement struct {
	Type byte
	Data []byte
}

// AdvertisementReport is one received advertisement. Reports are transient:
// consumers must not retain Elements past the callback that delivered them.
type AdvertisementReport struct {
	Address  string
	RSSI     int
	AdvType  AdvType
	Elements []AdElement
}

// ScanParams configures scanning. Interval and Window are in 0.625 ms units.
type ScanParams struct {
	Active          bool
	Interval        uint16
	Window          uint16
	AllowDuplicates bool
}

// DefaultScanParams returns active fast-scan parameters.
func DefaultScanParams() ScanParams {
	return ScanParams{
		Active:   true,
		Interval: 0x0060,
		Window:   0x0030,
	}
}

// ConnParams holds link parameters for a connect request.
// Intervals are in 1.25 ms units.
type ConnParams struct {
	IntervalMin        uint16
	IntervalMax        uint16
	Latency            uint16
	SupervisionTimeout time.Duration
}

// DefaultConnParams returns the default link parameters.
func DefaultConnParams() ConnParams {
	return ConnParams{
		IntervalMin:        0x0018,
		IntervalMax:        0x0028,
		Latency:            0,
		SupervisionTimeout: 4 * time.Second,
	}
}

// DiscoveryType selects what a discovery request walks.
type DiscoveryType int

const (
	DiscoverPrimaryService DiscoveryType = iota + 1
	DiscoverCharacteristic
)

func (t DiscoveryType) String() string {
	switch t {
	case DiscoverPrimaryService:
		return "primary service"
	case DiscoverCharacteristic:
		return "characteristic"
	default:
		return fmt.Sprintf("discovery(%d)", int(t))
	}
}

// DiscoveryRequest asks the transport to walk one attribute type over a handle range.
// UUID is nil when no filter applies.
type DiscoveryRequest struct {
	Cursor uint64
	Type   DiscoveryType
	UUID   ble.UUID
	Start  uint16
	End    uint16
}

// ServiceValue is the payload of a primary service declaration.
type ServiceValue struct {
	UUID      ble.UUID
	EndHandle uint16
}

// CharacteristicValue is the payload of a characteristic declaration.
type CharacteristicValue struct {
	UUID        ble.UUID
	Properties  ble.Property
	ValueHandle uint16
}

// Attribute is one discovery result. Exactly one of Service and
// Characteristic is set, matching Kind.
type Attribute struct {
	Handle         uint16
	Kind           DiscoveryType
	Service        *ServiceValue
	Characteristic *CharacteristicValue
}

// ServiceRecord is a discovered primary service.
type ServiceRecord struct {
	UUID  ble.UUID
	Start uint16
	End   uint16
}

// CharacteristicRecord is a discovered characteristic.
type CharacteristicRecord struct {
	UUID        ble.UUID
	Properties  ble.Property
	Handle      uint16
	ValueHandle uint16
}

// Iter is the verdict returned for a delivered discovery attribute.
type Iter bool

const (
	IterStop     Iter = false
	IterContinue Iter = true
)

func (i Iter) String() string {
	if i == IterContinue {
		return "continue"
	}
	return "stop"
}

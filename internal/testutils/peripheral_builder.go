package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/blemap/internal/device"
	blemocks "github.com/srg/blemap/internal/testutils/mocks/goble"
	"github.com/stretchr/testify/mock"
)

// CharacteristicConfig describes one characteristic of a mocked peripheral.
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g. "read,write,notify"
}

// ServiceConfig describes one primary service of a mocked peripheral.
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// PeripheralConfig is the attribute table of a mocked peripheral.
// Handles are laid out from StartHandle: a service declaration, then a
// declaration and a value handle per characteristic.
type PeripheralConfig struct {
	StartHandle uint16          `json:"startHandle,omitempty"`
	Services    []ServiceConfig `json:"services"`
}

// PeripheralBuilder builds GATT tables for transport and session tests.
type PeripheralBuilder struct {
	config PeripheralConfig
}

// NewPeripheralBuilder returns an empty table starting at handle 0x0001.
func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{config: PeripheralConfig{StartHandle: 0x0001}}
}

// WithStartHandle moves the first service declaration to h.
func (b *PeripheralBuilder) WithStartHandle(h uint16) *PeripheralBuilder {
	b.config.StartHandle = h
	return b
}

// WithService appends a primary service.
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.config.Services = append(b.config.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic appends a characteristic to the last added service.
func (b *PeripheralBuilder) WithCharacteristic(uuid, properties string) *PeripheralBuilder {
	if len(b.config.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := &b.config.Services[len(b.config.Services)-1]
	last.Characteristics = append(last.Characteristics, CharacteristicConfig{UUID: uuid, Properties: properties})
	return b
}

// FromJSON replaces the table with the given JSON.
// Panics on invalid JSON as this is intended for test data setup.
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	var cfg PeripheralConfig
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &cfg); err != nil {
		panic(fmt.Sprintf("PeripheralBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	if cfg.StartHandle == 0 {
		cfg.StartHandle = 0x0001
	}
	b.config = cfg
	return b
}

// Build lays out the table as go-ble services with handles assigned.
func (b *PeripheralBuilder) Build() []*ble.Service {
	next := b.config.StartHandle
	svcs := make([]*ble.Service, 0, len(b.config.Services))
	for _, sc := range b.config.Services {
		svc := &ble.Service{UUID: ble.MustParse(device.NormalizeUUID(sc.UUID)), Handle: next}
		next++
		for _, cc := range sc.Characteristics {
			props, err := device.ParseProperties(cc.Properties)
			if err != nil {
				panic(fmt.Sprintf("PeripheralBuilder.Build: %v", err))
			}
			svc.Characteristics = append(svc.Characteristics, &ble.Characteristic{
				UUID:        ble.MustParse(device.NormalizeUUID(cc.UUID)),
				Property:    props,
				Handle:      next,
				ValueHandle: next + 1,
			})
			next += 2
		}
		svc.EndHandle = next - 1
		svcs = append(svcs, svc)
	}
	return svcs
}

// ServiceAttributes returns what a primary service walk delivers.
func (b *PeripheralBuilder) ServiceAttributes() []device.Attribute {
	var attrs []device.Attribute
	for _, s := range b.Build() {
		attrs = append(attrs, device.Attribute{
			Handle:  s.Handle,
			Kind:    device.DiscoverPrimaryService,
			Service: &device.ServiceValue{UUID: s.UUID, EndHandle: s.EndHandle},
		})
	}
	return attrs
}

// CharacteristicAttributes returns what a characteristic walk over service i delivers.
func (b *PeripheralBuilder) CharacteristicAttributes(i int) []device.Attribute {
	var attrs []device.Attribute
	for _, c := range b.Build()[i].Characteristics {
		attrs = append(attrs, device.Attribute{
			Handle: c.Handle,
			Kind:   device.DiscoverCharacteristic,
			Characteristic: &device.CharacteristicValue{
				UUID:        c.UUID,
				Properties:  c.Property,
				ValueHandle: c.ValueHandle,
			},
		})
	}
	return attrs
}

// CharacteristicRecords returns the records a full walk over service i yields.
func (b *PeripheralBuilder) CharacteristicRecords(i int) []device.CharacteristicRecord {
	var recs []device.CharacteristicRecord
	for _, c := range b.Build()[i].Characteristics {
		recs = append(recs, device.CharacteristicRecord{
			UUID:        c.UUID,
			Properties:  c.Property,
			Handle:      c.Handle,
			ValueHandle: c.ValueHandle,
		})
	}
	return recs
}

// BuildClient returns a mocked client serving the table. Service discovery
// honours the UUID filter; characteristic discovery returns the service's
// characteristics; writes and cancellation succeed.
func (b *PeripheralBuilder) BuildClient() *blemocks.MockClient {
	svcs := b.Build()
	client := blemocks.NewMockClient()

	client.On("DiscoverServices", mock.Anything).Return(func(filter []ble.UUID) []*ble.Service {
		return filterServices(svcs, filter)
	}, nil).Maybe()
	for _, s := range svcs {
		client.On("DiscoverCharacteristics", mock.Anything, mock.MatchedBy(sameService(s))).
			Return(s.Characteristics, nil).Maybe()
	}
	client.On("WriteCharacteristic", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	client.On("CancelConnection").Return(nil).Maybe()
	return client
}

// GetServices returns the configured services.
func (b *PeripheralBuilder) GetServices() []ServiceConfig {
	return b.config.Services
}

func filterServices(svcs []*ble.Service, filter []ble.UUID) []*ble.Service {
	if len(filter) == 0 {
		return svcs
	}
	var out []*ble.Service
	for _, s := range svcs {
		for _, u := range filter {
			if s.UUID.Equal(u) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func sameService(want *ble.Service) func(*ble.Service) bool {
	return func(got *ble.Service) bool {
		return got != nil && got.UUID.Equal(want.UUID) && got.Handle == want.Handle
	}
}

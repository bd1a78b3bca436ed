package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/blemap/internal/device"
	blemocks "github.com/srg/blemap/internal/testutils/mocks/goble"
)

// AdvertisementBuilder builds advertisement reports, raw advertising payloads
// and mocked ble.Advertisement values for tests.
type AdvertisementBuilder struct {
	address   string
	rssi      int
	advType   device.AdvType
	elements  []device.AdElement
	name      string
	services  []string
	manufData []byte
}

// NewAdvertisementBuilder returns a builder for a connectable report with no elements.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{advType: device.AdvInd}
}

// WithAddress sets the advertiser address.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	return b
}

// WithRSSI sets the signal strength.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	return b
}

// WithAdvType sets the advertising PDU type.
func (b *AdvertisementBuilder) WithAdvType(t device.AdvType) *AdvertisementBuilder {
	b.advType = t
	return b
}

// WithFlags adds a flags element.
func (b *AdvertisementBuilder) WithFlags(flags byte) *AdvertisementBuilder {
	return b.WithElement(device.AdFlags, []byte{flags})
}

// WithName adds a complete local name element.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	if b.name == "" {
		b.name = name
	}
	return b.WithElement(device.AdCompleteName, []byte(name))
}

// WithShortName adds a shortened local name element.
func (b *AdvertisementBuilder) WithShortName(name string) *AdvertisementBuilder {
	if b.name == "" {
		b.name = name
	}
	return b.WithElement(device.AdShortName, []byte(name))
}

// WithServices adds 16-bit service UUIDs ("180d") as an incomplete list element.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	var data []byte
	for _, s := range uuids {
		u := ble.MustParse(s)
		data = append(data, u...)
	}
	b.services = append(b.services, uuids...)
	return b.WithElement(device.AdSomeUUID16, data)
}

// WithManufacturerData adds a manufacturer specific data element.
func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.manufData = data
	return b.WithElement(device.AdManufacturerData, data)
}

// WithElement adds an arbitrary element.
func (b *AdvertisementBuilder) WithElement(typ byte, data []byte) *AdvertisementBuilder {
	cp := make([]byte, len(data))
	copy(cp, data)
	b.elements = append(b.elements, device.AdElement{Type: typ, Data: cp})
	return b
}

// FromJSON fills the builder from {"address","rssi","name","shortName","services","manufacturerData"}.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	var data struct {
		Address          string   `json:"address"`
		RSSI             int      `json:"rssi"`
		Name             *string  `json:"name"`
		ShortName        *string  `json:"shortName"`
		Services         []string `json:"services"`
		ManufacturerData []byte   `json:"manufacturerData"`
	}
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}

	b.WithAddress(data.Address).WithRSSI(data.RSSI)
	if data.Name != nil {
		b.WithName(*data.Name)
	}
	if data.ShortName != nil {
		b.WithShortName(*data.ShortName)
	}
	if len(data.Services) > 0 {
		b.WithServices(data.Services...)
	}
	if data.ManufacturerData != nil {
		b.WithManufacturerData(data.ManufacturerData)
	}
	return b
}

// Build returns the report.
func (b *AdvertisementBuilder) Build() device.AdvertisementReport {
	elems := make([]device.AdElement, len(b.elements))
	copy(elems, b.elements)
	return device.AdvertisementReport{
		Address:  b.address,
		RSSI:     b.rssi,
		AdvType:  b.advType,
		Elements: elems,
	}
}

// Payload encodes the elements as a raw advertising payload.
// Panics on an element too long to encode as this is intended for test data setup.
func (b *AdvertisementBuilder) Payload() []byte {
	var out []byte
	for _, el := range b.elements {
		var err error
		if out, err = device.AppendElement(out, el.Type, el.Data); err != nil {
			panic(fmt.Sprintf("AdvertisementBuilder.Payload: %v", err))
		}
	}
	return out
}

// BuildMock returns a mocked ble.Advertisement carrying the same data.
// Only the accessors a transport reads are stubbed.
func (b *AdvertisementBuilder) BuildMock() *blemocks.MockAdvertisement {
	adv := &blemocks.MockAdvertisement{}

	services := make([]ble.UUID, 0, len(b.services))
	for _, s := range b.services {
		services = append(services, ble.MustParse(s))
	}

	adv.On("LocalName").Return(b.name).Maybe()
	adv.On("RSSI").Return(b.rssi).Maybe()
	adv.On("Addr").Return(ble.NewAddr(b.address)).Maybe()
	adv.On("Connectable").Return(b.advType == device.AdvInd || b.advType == device.AdvDirectInd).Maybe()
	adv.On("ManufacturerData").Return(b.manufData).Maybe()
	adv.On("Services").Return(services).Maybe()
	adv.On("ServiceData").Return([]ble.ServiceData(nil)).Maybe()
	adv.On("OverflowService").Return([]ble.UUID(nil)).Maybe()
	adv.On("SolicitedService").Return([]ble.UUID(nil)).Maybe()
	adv.On("TxPowerLevel").Return(127).Maybe()
	return adv
}

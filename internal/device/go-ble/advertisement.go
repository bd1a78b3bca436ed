package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blemap/internal/device"
)

// txPowerUnknown is what go-ble reports when no TX power element was present.
const txPowerUnknown = 127

// ReportFromAdvertisement rebuilds an advertisement report from the decoded
// fields go-ble exposes. Element order follows the usual payload layout.
func ReportFromAdvertisement(adv ble.Advertisement) device.AdvertisementReport {
	r := device.AdvertisementReport{
		RSSI:    adv.RSSI(),
		AdvType: device.AdvNonconnInd,
	}
	if a := adv.Addr(); a != nil {
		r.Address = a.String()
	}
	if adv.Connectable() {
		r.AdvType = device.AdvInd
	}

	if name := adv.LocalName(); name != "" {
		r.Elements = append(r.Elements, device.AdElement{Type: device.AdCompleteName, Data: []byte(name)})
	}

	var uuid16, uuid128 []byte
	for _, u := range adv.Services() {
		switch u.Len() {
		case 2:
			uuid16 = append(uuid16, u...)
		case 16:
			uuid128 = append(uuid128, u...)
		}
	}
	if len(uuid16) > 0 {
		r.Elements = append(r.Elements, device.AdElement{Type: device.AdSomeUUID16, Data: uuid16})
	}
	if len(uuid128) > 0 {
		r.Elements = append(r.Elements, device.AdElement{Type: device.AdSomeUUID128, Data: uuid128})
	}

	if tx := adv.TxPowerLevel(); tx != txPowerUnknown && tx >= -128 && tx < 127 {
		r.Elements = append(r.Elements, device.AdElement{Type: device.AdTxPower, Data: []byte{byte(int8(tx))}})
	}

	for _, sd := range adv.ServiceData() {
		if sd.UUID.Len() != 2 {
			continue
		}
		data := make([]byte, 0, 2+len(sd.Data))
		data = append(data, sd.UUID...)
		data = append(data, sd.Data...)
		r.Elements = append(r.Elements, device.AdElement{Type: device.AdServiceData16, Data: data})
	}

	if md := adv.ManufacturerData(); len(md) > 0 {
		data := make([]byte, len(md))
		copy(data, md)
		r.Elements = append(r.Elements, device.AdElement{Type: device.AdManufacturerData, Data: data})
	}
	return r
}

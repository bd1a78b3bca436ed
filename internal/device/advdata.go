package device

import "fmt"

// Advertising data type tags.
const (
	AdFlags            = 0x01
	AdSomeUUID16       = 0x02
	AdAllUUID16        = 0x03
	AdSomeUUID128      = 0x06
	AdAllUUID128       = 0x07
	AdShortName        = 0x08
	AdCompleteName     = 0x09
	AdTxPower          = 0x0A
	AdServiceData16    = 0x16
	AdManufacturerData = 0xFF
)

// MaxAdvertisingDataLen is the legacy advertising payload limit.
const MaxAdvertisingDataLen = 31

// ParseAdvertisingData splits a length-type-value advertising payload into elements.
// A zero length byte ends the significant part of the payload.
func ParseAdvertisingData(b []byte) ([]AdElement, error) {
	var elems []AdElement
	for off := 0; off < len(b); {
		l := int(b[off])
		if l == 0 {
			break
		}
		if off+1+l > len(b) {
			return elems, fmt.Errorf("advertising element at offset %d: length %d exceeds payload", off, l)
		}
		data := make([]byte, l-1)
		copy(data, b[off+2:off+1+l])
		elems = append(elems, AdElement{Type: b[off+1], Data: data})
		off += 1 + l
	}
	return elems, nil
}

// MaxElementDataLen is the most data one length byte can describe.
const MaxElementDataLen = 0xFF - 1

// AppendElement encodes one element in length-type-value form. Data longer
// than MaxElementDataLen cannot be encoded and b is returned unchanged.
func AppendElement(b []byte, typ byte, data []byte) ([]byte, error) {
	if len(data) > MaxElementDataLen {
		return b, fmt.Errorf("advertising element 0x%02x: %d data bytes exceed %d", typ, len(data), MaxElementDataLen)
	}
	b = append(b, byte(len(data)+1), typ)
	return append(b, data...), nil
}

// LocalName returns the first name element of a report, complete or shortened.
func LocalName(r AdvertisementReport) string {
	for _, el := range r.Elements {
		if el.Type == AdCompleteName || el.Type == AdShortName {
			return string(el.Data)
		}
	}
	return ""
}

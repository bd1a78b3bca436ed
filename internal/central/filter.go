package central

import (
	"bytes"

	"github.com/srg/blemap/internal/device"
)

// MaxNameLen bounds how much of a name element is decoded.
const MaxNameLen = 30

// Filter decides whether an advertisement report names the target.
type Filter interface {
	Match(r device.AdvertisementReport) bool
}

// NameFilter matches reports carrying a complete or shortened local name
// equal to the configured name. Comparison is exact and case-sensitive.
type NameFilter struct {
	name []byte
}

// NewNameFilter returns a filter for name.
func NewNameFilter(name string) *NameFilter {
	return &NameFilter{name: []byte(name)}
}

// Match reports whether r names the target. It never mutates r.
func (f *NameFilter) Match(r device.AdvertisementReport) bool {
	for _, el := range r.Elements {
		if el.Type != device.AdCompleteName && el.Type != device.AdShortName {
			continue
		}
		name, truncated := decodeName(el.Data)
		// a truncated name only shares a prefix with the target
		if !truncated && bytes.Equal(name, f.name) {
			return true
		}
	}
	return false
}

// decodeName returns at most MaxNameLen bytes of a name element.
func decodeName(data []byte) ([]byte, bool) {
	if len(data) > MaxNameLen {
		return data[:MaxNameLen], true
	}
	return data, false
}

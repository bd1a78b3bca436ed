package device

import (
	"fmt"
	"strings"

	"github.com/go-ble/ble"
)

var propertyNames = []struct {
	bit  ble.Property
	name string
}{
	{ble.CharBroadcast, "broadcast"},
	{ble.CharRead, "read"},
	{ble.CharWriteNR, "write-without-response"},
	{ble.CharWrite, "write"},
	{ble.CharNotify, "notify"},
	{ble.CharIndicate, "indicate"},
	{ble.CharSignedWrite, "authenticated-signed-writes"},
	{ble.CharExtended, "extended-properties"},
}

// PropertyNames lists the capability flags set in p, lowest bit first.
func PropertyNames(p ble.Property) []string {
	var names []string
	for _, pn := range propertyNames {
		if p&pn.bit != 0 {
			names = append(names, pn.name)
		}
	}
	return names
}

// PropertyString joins PropertyNames with commas.
func PropertyString(p ble.Property) string {
	return strings.Join(PropertyNames(p), ",")
}

// CanWrite reports whether p allows writes with or without response.
func CanWrite(p ble.Property) bool {
	return p&(ble.CharWrite|ble.CharWriteNR) != 0
}

// ParseProperties parses a comma separated list of names as produced by
// PropertyString. Short aliases "write-nr" and "wnr" are accepted.
func ParseProperties(s string) (ble.Property, error) {
	var p ble.Property
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if name == "write-nr" || name == "wnr" {
			name = "write-without-response"
		}
		found := false
		for _, pn := range propertyNames {
			if pn.name == name {
				p |= pn.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown characteristic property %q", part)
		}
	}
	return p, nil
}

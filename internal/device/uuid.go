package device

import (
	"fmt"
	"strings"

	"github.com/go-ble/ble"
)

// sigBaseSuffix is the Bluetooth SIG base UUID tail (xxxxxxxx-0000-1000-8000-00805f9b34fb).
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to lowercase hex without dashes or a 0x prefix.
// Full 128-bit UUIDs on the Bluetooth SIG base with a 0000 prefix collapse
// to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	s := strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
	s = strings.TrimPrefix(s, "0x")
	if len(s) == 32 && strings.HasPrefix(s, "0000") && strings.HasSuffix(s, sigBaseSuffix) {
		return s[4:8]
	}
	return s
}

// NormalizeUUIDs normalizes a slice of UUID strings.
func NormalizeUUIDs(uuids []string) []string {
	normalized := make([]string, len(uuids))
	for i, uuid := range uuids {
		normalized[i] = NormalizeUUID(uuid)
	}
	return normalized
}

// ParseUUID parses a 16-, 32- or 128-bit UUID in any format NormalizeUUID accepts.
func ParseUUID(uuid string) (ble.UUID, error) {
	s := NormalizeUUID(uuid)
	if s == "" {
		return nil, fmt.Errorf("UUID cannot be empty")
	}
	u, err := ble.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID %q: %w", uuid, err)
	}
	return u, nil
}

// UUIDString renders a ble.UUID in normalized form.
func UUIDString(u ble.UUID) string {
	if u == nil {
		return ""
	}
	return NormalizeUUID(u.String())
}

// SameUUID compares two UUIDs by normalized form, so a 16-bit UUID equals
// its 128-bit expansion on the Bluetooth SIG base.
func SameUUID(a, b ble.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return UUIDString(a) == UUIDString(b)
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

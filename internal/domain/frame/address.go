package frame

import (
	"strings"
)

// Address is a BLE hardware address in canonical "AA:BB:CC:DD:EE:FF" form.
type Address string

// NormalizeAddress accepts ':', '-' or '_' separated hex octets in any case
// and returns the canonical upper-case colon form.
func NormalizeAddress(raw string) (Address, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return "", &ValidationError{Field: "ble_mac_address", Reason: "empty"}
	}
	value = strings.NewReplacer("-", ":", "_", ":").Replace(value)

	parts := strings.Split(value, ":")
	if len(parts) != 6 {
		return "", &ValidationError{Field: "ble_mac_address", Reason: "expected 6 octets"}
	}
	for _, part := range parts {
		if len(part) != 2 || !isHex(part[0]) || !isHex(part[1]) {
			return "", &ValidationError{Field: "ble_mac_address", Reason: "non-hex octet " + part}
		}
	}
	return Address(value), nil
}

// String returns the canonical form.
func (a Address) String() string {
	return string(a)
}

// DBusSuffix returns the BlueZ object path form, e.g. "dev_AA_BB_CC_DD_EE_FF".
func (a Address) DBusSuffix() string {
	return "dev_" + strings.ReplaceAll(string(a), ":", "_")
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

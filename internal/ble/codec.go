package ble

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrMalformedUUID is returned for anything but a canonical 36-char UUID.
var ErrMalformedUUID = errors.New("malformed uuid")

// wakeCommand is fixed by frame firmware.
const wakeCommand byte = 0x01

var (
	// WakeCharacteristicUUID is the characteristic BLOOMIN frames listen on.
	WakeCharacteristicUUID = uuid.MustParse("0000f001-0000-1000-8000-00805f9b34fb")
	// DefaultServiceUUID is the vendor service usually carrying the wake characteristic.
	DefaultServiceUUID = uuid.MustParse("0000ff00-0000-1000-8000-00805f9b34fb")

	bluetoothBaseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")
)

// EncodeWakeCommand returns the payload written to the wake characteristic.
func EncodeWakeCommand() []byte {
	return []byte{wakeCommand}
}

// ValidateUUID parses a canonical hyphenated 128-bit UUID.
func ValidateUUID(raw string) (uuid.UUID, error) {
	value := strings.TrimSpace(raw)
	if len(value) != 36 || value[8] != '-' || value[13] != '-' || value[18] != '-' || value[23] != '-' {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrMalformedUUID, raw)
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q: %v", ErrMalformedUUID, raw, err)
	}
	return parsed, nil
}

// shortUUID returns the 16-bit alias of a UUID built on the Bluetooth base.
func shortUUID(u uuid.UUID) (uint16, bool) {
	if u[0] != 0 || u[1] != 0 {
		return 0, false
	}
	for i := 4; i < len(u); i++ {
		if u[i] != bluetoothBaseUUID[i] {
			return 0, false
		}
	}
	return binary.BigEndian.Uint16(u[2:4]), true
}

// isVendorService reports services in the 0xF000-0xFFFF short range that
// frame vendors use for control endpoints.
func isVendorService(u uuid.UUID) bool {
	short, ok := shortUUID(u)
	return ok && short >= 0xF000
}

// isStandardService reports SIG-assigned GATT services (0x18xx).
func isStandardService(u uuid.UUID) bool {
	short, ok := shortUUID(u)
	return ok && short >= 0x1800 && short < 0x1900
}

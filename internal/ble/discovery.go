package ble

import (
	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

// selection is the outcome of matching discovered services.
type selection struct {
	cache    frame.BLECache
	fallback bool
}

// selectWakeCharacteristic picks, in order: the known wake characteristic,
// the first writable characteristic of a vendor-range service, the first
// writable characteristic of the first non-standard service.
func selectWakeCharacteristic(services []Service) (selection, error) {
	for _, svc := range services {
		for _, ch := range svc.Characteristics {
			if ch.UUID == WakeCharacteristicUUID && ch.Writable() {
				return selection{cache: cacheOf(svc, ch)}, nil
			}
		}
	}
	for _, svc := range services {
		if !isVendorService(svc.UUID) {
			continue
		}
		if ch, ok := firstWritable(svc); ok {
			return selection{cache: cacheOf(svc, ch)}, nil
		}
	}
	for _, svc := range services {
		if isStandardService(svc.UUID) {
			continue
		}
		if ch, ok := firstWritable(svc); ok {
			return selection{cache: cacheOf(svc, ch), fallback: true}, nil
		}
		break
	}
	return selection{}, ErrNoWritableCharacteristic
}

func firstWritable(svc Service) (Characteristic, bool) {
	for _, ch := range svc.Characteristics {
		if ch.Writable() {
			return ch, true
		}
	}
	return Characteristic{}, false
}

func cacheOf(svc Service, ch Characteristic) frame.BLECache {
	return frame.BLECache{ServiceUUID: svc.UUID.String(), CharacteristicUUID: ch.UUID.String()}
}

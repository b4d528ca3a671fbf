package frame

import (
	"context"
	"sync"
)

// Channel identifies one wake method.
type Channel string

const (
	ChannelBLE           Channel = "ble"
	ChannelRemoteService Channel = "remote_service"
	ChannelHTTP          Channel = "http"
)

// BLECache holds discovered GATT identifiers for the wake characteristic.
type BLECache struct {
	ServiceUUID        string
	CharacteristicUUID string
}

// Empty reports whether discovery is still required.
func (c BLECache) Empty() bool {
	return c.ServiceUUID == "" || c.CharacteristicUUID == ""
}

// CacheStore persists the BLE cache of one configured frame.
type CacheStore interface {
	SaveBLECache(ctx context.Context, frameID string, cache BLECache) error
	ClearBLECache(ctx context.Context, frameID string) error
}

// Target is the record for the one frame an orchestrator manages. Only the
// BLE cache changes after construction.
type Target struct {
	ID      string
	Host    string
	BLEAddr Address

	mu    sync.RWMutex
	cache BLECache
}

// NewTarget builds a target; bleAddr is empty when BLE wake is disabled.
func NewTarget(id, host string, bleAddr Address, cache BLECache) *Target {
	return &Target{ID: id, Host: host, BLEAddr: bleAddr, cache: cache}
}

// BLEEnabled reports whether the frame has a BLE address configured.
func (t *Target) BLEEnabled() bool {
	return t != nil && t.BLEAddr != ""
}

// BLECache returns the committed cache value.
func (t *Target) BLECache() BLECache {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cache
}

// SetBLECache commits a freshly discovered pair.
func (t *Target) SetBLECache(cache BLECache) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache = cache
}

// InvalidateBLECache drops the in-memory pair so the next attempt rediscovers.
func (t *Target) InvalidateBLECache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache = BLECache{}
}

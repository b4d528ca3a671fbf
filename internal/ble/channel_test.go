package ble

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

type fakeConn struct {
	adapter *fakeAdapter
}

func (c *fakeConn) Services(context.Context) ([]Service, error) {
	a := c.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servicesCalls++
	if a.servicesPanic {
		panic("gatt table corrupted")
	}
	return a.services, nil
}

func (c *fakeConn) Write(_ context.Context, service, characteristic uuid.UUID, payload []byte) error {
	a := c.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes = append(a.writes, fakeWrite{service: service, characteristic: characteristic, payload: append([]byte(nil), payload...)})
	for _, svc := range a.services {
		if svc.UUID != service {
			continue
		}
		for _, ch := range svc.Characteristics {
			if ch.UUID == characteristic {
				return a.writeErr
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrCharacteristicNotFound, characteristic)
}

func (c *fakeConn) Close() error {
	c.adapter.mu.Lock()
	defer c.adapter.mu.Unlock()
	c.adapter.closeCalls++
	return nil
}

type fakeWrite struct {
	service        uuid.UUID
	characteristic uuid.UUID
	payload        []byte
}

type fakeAdapter struct {
	mu            sync.Mutex
	services      []Service
	connectErr    error
	writeErr      error
	servicesPanic bool

	connectCalls  int
	servicesCalls int
	closeCalls    int
	writes        []fakeWrite
}

func (a *fakeAdapter) Connect(context.Context, frame.Address) (Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectCalls++
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	return &fakeConn{adapter: a}, nil
}

func (a *fakeAdapter) setServices(services []Service) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.services = services
}

func (a *fakeAdapter) snapshot() (connects, services, closes int, writes []fakeWrite) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectCalls, a.servicesCalls, a.closeCalls, append([]fakeWrite(nil), a.writes...)
}

type memoryCacheStore struct {
	mu      sync.Mutex
	saved   map[string]frame.BLECache
	cleared int
}

func (s *memoryCacheStore) ClearBLECache(_ context.Context, frameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, frameID)
	s.cleared++
	return nil
}

func (s *memoryCacheStore) snapshot(frameID string) (frame.BLECache, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.saved[frameID]
	return cache, ok, s.cleared
}

func (s *memoryCacheStore) SaveBLECache(_ context.Context, frameID string, cache frame.BLECache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]frame.BLECache)
	}
	s.saved[frameID] = cache
	return nil
}

func frameServices() []Service {
	return []Service{
		{UUID: genericAccess, Characteristics: []Characteristic{{UUID: deviceName, Flags: []string{"read"}}}},
		{UUID: DefaultServiceUUID, Characteristics: []Characteristic{{UUID: WakeCharacteristicUUID, Flags: []string{"write"}}}},
	}
}

func newTestTarget(t *testing.T, cache frame.BLECache) *frame.Target {
	t.Helper()
	addr, err := frame.NormalizeAddress("aa-bb-cc-dd-ee-ff")
	require.NoError(t, err)
	return frame.NewTarget("living_room", "192.168.1.50", addr, cache)
}

func TestAttemptDiscoversOnceAcrossWakes(t *testing.T) {
	adapter := &fakeAdapter{services: frameServices()}
	store := &memoryCacheStore{}
	channel := NewChannel(adapter, store, time.Second, nil)
	target := newTestTarget(t, frame.BLECache{})

	for i := 0; i < 2; i++ {
		require.NoError(t, channel.Attempt(context.Background(), target), "attempt #%d", i+1)
	}

	connects, services, closes, writes := adapter.snapshot()
	assert.Equal(t, 1, services, "Services calls")
	assert.Equal(t, 2, connects)
	assert.Equal(t, 2, closes)
	require.Len(t, writes, 2)
	for _, w := range writes {
		assert.Equal(t, WakeCharacteristicUUID, w.characteristic)
		assert.Equal(t, []byte{0x01}, w.payload)
	}

	want := frame.BLECache{ServiceUUID: DefaultServiceUUID.String(), CharacteristicUUID: WakeCharacteristicUUID.String()}
	assert.Equal(t, want, target.BLECache())
	persisted, ok, _ := store.snapshot("living_room")
	assert.True(t, ok)
	assert.Equal(t, want, persisted)
}

func TestAttemptRediscoversWhenCachedCharacteristicMissing(t *testing.T) {
	adapter := &fakeAdapter{services: frameServices()}
	channel := NewChannel(adapter, nil, time.Second, nil)
	stale := frame.BLECache{
		ServiceUUID:        DefaultServiceUUID.String(),
		CharacteristicUUID: "0000ff09-0000-1000-8000-00805f9b34fb",
	}
	target := newTestTarget(t, stale)

	require.NoError(t, channel.Attempt(context.Background(), target))

	connects, services, closes, writes := adapter.snapshot()
	assert.Equal(t, 1, services, "Services calls")
	assert.Equal(t, 2, connects)
	assert.Equal(t, 2, closes)
	require.Len(t, writes, 2, "stale write then wake write")
	assert.Equal(t, WakeCharacteristicUUID, writes[1].characteristic)
	assert.Equal(t, WakeCharacteristicUUID.String(), target.BLECache().CharacteristicUUID)
}

func TestAttemptInvalidatesCacheOnOtherFailures(t *testing.T) {
	adapter := &fakeAdapter{services: frameServices(), writeErr: ErrWriteRejected}
	cached := frame.BLECache{
		ServiceUUID:        DefaultServiceUUID.String(),
		CharacteristicUUID: WakeCharacteristicUUID.String(),
	}
	store := &memoryCacheStore{saved: map[string]frame.BLECache{"living_room": cached}}
	channel := NewChannel(adapter, store, time.Second, nil)
	target := newTestTarget(t, cached)

	err := channel.Attempt(context.Background(), target)
	require.ErrorIs(t, err, ErrWriteRejected)
	assert.True(t, target.BLECache().Empty(), "cache should be invalidated after failure")

	_, persisted, cleared := store.snapshot("living_room")
	assert.False(t, persisted, "stale pair still persisted")
	assert.Equal(t, 1, cleared)

	_, services, closes, _ := adapter.snapshot()
	assert.Equal(t, 0, services)
	assert.Equal(t, 1, closes)
}

func TestAttemptDisabledTarget(t *testing.T) {
	adapter := &fakeAdapter{services: frameServices()}
	channel := NewChannel(adapter, nil, time.Second, nil)
	target := frame.NewTarget("kitchen", "192.168.1.51", "", frame.BLECache{})

	assert.False(t, channel.Eligible(target), "target without address should not be eligible")
	assert.ErrorIs(t, channel.Attempt(context.Background(), target), frame.ErrBLEDisabled)
	connects, _, _, _ := adapter.snapshot()
	assert.Equal(t, 0, connects, "adapter touched for disabled target")
}

func TestAttemptConnectFailure(t *testing.T) {
	adapter := &fakeAdapter{connectErr: ErrOutOfRange}
	channel := NewChannel(adapter, nil, time.Second, nil)
	target := newTestTarget(t, frame.BLECache{})

	assert.ErrorIs(t, channel.Attempt(context.Background(), target), ErrOutOfRange)
	_, _, closes, _ := adapter.snapshot()
	assert.Equal(t, 0, closes, "Close called without a connection")
}

func TestAttemptRecoversTransportPanic(t *testing.T) {
	adapter := &fakeAdapter{services: frameServices(), servicesPanic: true}
	channel := NewChannel(adapter, nil, time.Second, nil)
	target := newTestTarget(t, frame.BLECache{})

	assert.Error(t, channel.Attempt(context.Background(), target))
	_, _, closes, _ := adapter.snapshot()
	assert.Equal(t, 1, closes)
}

func TestAttemptNoWritableCharacteristic(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.setServices([]Service{
		{UUID: genericAccess, Characteristics: []Characteristic{{UUID: deviceName, Flags: []string{"read"}}}},
	})
	channel := NewChannel(adapter, nil, time.Second, nil)
	target := newTestTarget(t, frame.BLECache{})

	assert.ErrorIs(t, channel.Attempt(context.Background(), target), ErrNoWritableCharacteristic)
	assert.True(t, target.BLECache().Empty(), "cache populated without a selection")
}

func TestDiscoverOnly(t *testing.T) {
	adapter := &fakeAdapter{services: frameServices()}
	channel := NewChannel(adapter, nil, time.Second, nil)
	target := newTestTarget(t, frame.BLECache{})

	cache, err := channel.Discover(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, WakeCharacteristicUUID.String(), cache.CharacteristicUUID)
	_, _, _, writes := adapter.snapshot()
	assert.Empty(t, writes, "Discover must not write")
}

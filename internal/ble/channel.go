package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

const defaultAttemptTimeout = 8 * time.Second

// Channel wakes the frame by writing the wake command over BLE.
type Channel struct {
	adapter Adapter
	store   frame.CacheStore
	timeout time.Duration
	logger  *slog.Logger

	// one outstanding BLE session per frame
	mu sync.Mutex
}

// NewChannel builds a BLE wake channel. store may be nil when the cache is
// not persisted (tests, CLI discovery).
func NewChannel(adapter Adapter, store frame.CacheStore, timeout time.Duration, logger *slog.Logger) *Channel {
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{adapter: adapter, store: store, timeout: timeout, logger: logger}
}

// Name identifies the channel in outcomes and metrics.
func (c *Channel) Name() frame.Channel {
	return frame.ChannelBLE
}

// Eligible is false when the frame has no BLE address configured.
func (c *Channel) Eligible(target *frame.Target) bool {
	return target.BLEEnabled()
}

// Attempt writes the wake command, discovering the characteristic first when
// nothing is cached or the cached one vanished.
func (c *Channel) Attempt(ctx context.Context, target *frame.Target) (err error) {
	if !target.BLEEnabled() {
		return frame.ErrBLEDisabled
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("ble transport panic: %v", recovered)
		}
		if err != nil && ctx.Err() != nil && !errors.Is(err, ErrConnectTimeout) {
			err = fmt.Errorf("%w: %v", ErrConnectTimeout, err)
		}
	}()

	if cache := target.BLECache(); !cache.Empty() {
		err := c.withConnection(ctx, target.BLEAddr, func(conn Conn) error {
			return writeWake(ctx, conn, cache)
		})
		if err == nil {
			c.logger.Info("frame woken via ble", "frame", target.ID, "characteristic", cache.CharacteristicUUID)
			return nil
		}
		c.invalidate(ctx, target)
		if !errors.Is(err, ErrCharacteristicNotFound) {
			return err
		}
		c.logger.Warn("cached ble characteristic not found, rediscovering", "frame", target.ID, "err", err)
	}

	return c.withConnection(ctx, target.BLEAddr, func(conn Conn) error {
		cache, err := c.discover(ctx, conn, target)
		if err != nil {
			return err
		}
		if err := writeWake(ctx, conn, cache); err != nil {
			return err
		}
		c.logger.Info("frame woken via ble after discovery", "frame", target.ID, "characteristic", cache.CharacteristicUUID)
		return nil
	})
}

// Discover runs service discovery only and commits the result.
func (c *Channel) Discover(ctx context.Context, target *frame.Target) (frame.BLECache, error) {
	if !target.BLEEnabled() {
		return frame.BLECache{}, frame.ErrBLEDisabled
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var cache frame.BLECache
	err := c.withConnection(ctx, target.BLEAddr, func(conn Conn) error {
		var err error
		cache, err = c.discover(ctx, conn, target)
		return err
	})
	return cache, err
}

func (c *Channel) discover(ctx context.Context, conn Conn, target *frame.Target) (frame.BLECache, error) {
	services, err := conn.Services(ctx)
	if err != nil {
		return frame.BLECache{}, fmt.Errorf("enumerate services: %w", err)
	}
	picked, err := selectWakeCharacteristic(services)
	if err != nil {
		return frame.BLECache{}, err
	}
	if picked.fallback {
		c.logger.Warn("known wake characteristic not advertised, using first writable characteristic",
			"frame", target.ID,
			"service", picked.cache.ServiceUUID,
			"characteristic", picked.cache.CharacteristicUUID,
		)
	}

	target.SetBLECache(picked.cache)
	if c.store != nil {
		if err := c.store.SaveBLECache(ctx, target.ID, picked.cache); err != nil {
			c.logger.Warn("persist ble cache failed", "frame", target.ID, "err", err)
		}
	}
	c.logger.Info("ble discovery complete", "frame", target.ID,
		"service", picked.cache.ServiceUUID, "characteristic", picked.cache.CharacteristicUUID)
	return picked.cache, nil
}

// invalidate drops the cached pair in memory and in the store.
func (c *Channel) invalidate(ctx context.Context, target *frame.Target) {
	target.InvalidateBLECache()
	if c.store == nil {
		return
	}
	// the attempt context may already be spent
	clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.store.ClearBLECache(clearCtx, target.ID); err != nil {
		c.logger.Warn("clear persisted ble cache failed", "frame", target.ID, "err", err)
	}
}

// withConnection scopes a connection to fn and releases it on every path.
func (c *Channel) withConnection(ctx context.Context, addr frame.Address, fn func(Conn) error) (err error) {
	conn, err := c.adapter.Connect(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			c.logger.Debug("ble disconnect failed", "addr", addr, "err", closeErr)
		}
	}()
	return fn(conn)
}

func writeWake(ctx context.Context, conn Conn, cache frame.BLECache) error {
	service, err := ValidateUUID(cache.ServiceUUID)
	if err != nil {
		return fmt.Errorf("%w: cached service: %v", ErrCharacteristicNotFound, err)
	}
	characteristic, err := ValidateUUID(cache.CharacteristicUUID)
	if err != nil {
		return fmt.Errorf("%w: cached characteristic: %v", ErrCharacteristicNotFound, err)
	}
	return conn.Write(ctx, service, characteristic, EncodeWakeCommand())
}

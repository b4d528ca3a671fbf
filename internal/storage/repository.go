package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
	"github.com/micro-ha/bloomin-presence/internal/pkg/utils"
)

var ErrNotFound = errors.New("not found")

// FrameRecord is the persisted part of a frame target.
type FrameRecord struct {
	ID           string
	Host         string
	BLEAddress   string
	Cache        frame.BLECache
	DiscoveredAt *time.Time
	UpdatedAt    time.Time
}

// LoadFrame returns ErrNotFound for an unknown id.
func (r *Repository) LoadFrame(ctx context.Context, id string) (FrameRecord, error) {
	var (
		rec          FrameRecord
		discoveredAt sql.NullString
		updatedAt    string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, host, ble_address, ble_service_uuid, ble_characteristic_uuid, discovered_at, updated_at
		FROM frames WHERE id = ?`, id).Scan(
		&rec.ID, &rec.Host, &rec.BLEAddress, &rec.Cache.ServiceUUID, &rec.Cache.CharacteristicUUID, &discoveredAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FrameRecord{}, ErrNotFound
	}
	if err != nil {
		return FrameRecord{}, err
	}
	rec.DiscoveredAt = toTimePtr(discoveredAt)
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = ts.UTC()
	}
	return rec, nil
}

// SyncFrame records the configured host and address and returns the cache
// that is still valid for them. Changing the BLE address drops the cache.
func (r *Repository) SyncFrame(ctx context.Context, id, host string, addr frame.Address) (frame.BLECache, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return frame.BLECache{}, err
	}
	defer tx.Rollback()

	var storedAddr string
	var cache frame.BLECache
	err = tx.QueryRowContext(ctx, `
		SELECT ble_address, ble_service_uuid, ble_characteristic_uuid FROM frames WHERE id = ?`, id).
		Scan(&storedAddr, &cache.ServiceUUID, &cache.CharacteristicUUID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return frame.BLECache{}, err
	case storedAddr != addr.String():
		if r.logger != nil && !cache.Empty() {
			r.logger.Info("ble address changed, dropping cached characteristic", "frame", id)
		}
		cache = frame.BLECache{}
	}

	now := fromTime(utils.NowUTC())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO frames (id, host, ble_address, ble_service_uuid, ble_characteristic_uuid, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			host=excluded.host,
			ble_address=excluded.ble_address,
			ble_service_uuid=excluded.ble_service_uuid,
			ble_characteristic_uuid=excluded.ble_characteristic_uuid,
			updated_at=excluded.updated_at`,
		id, host, addr.String(), cache.ServiceUUID, cache.CharacteristicUUID, now); err != nil {
		return frame.BLECache{}, fmt.Errorf("sync frame %s: %w", id, err)
	}
	return cache, tx.Commit()
}

// SaveBLECache persists a discovered service/characteristic pair.
func (r *Repository) SaveBLECache(ctx context.Context, frameID string, cache frame.BLECache) error {
	now := fromTime(utils.NowUTC())
	res, err := r.db.ExecContext(ctx, `
		UPDATE frames SET ble_service_uuid = ?, ble_characteristic_uuid = ?, discovered_at = ?, updated_at = ?
		WHERE id = ?`,
		cache.ServiceUUID, cache.CharacteristicUUID, now, now, frameID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearBLECache forgets a pair that stopped working so a restart does not
// reload it.
func (r *Repository) ClearBLECache(ctx context.Context, frameID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE frames SET ble_service_uuid = '', ble_characteristic_uuid = '', discovered_at = NULL, updated_at = ?
		WHERE id = ?`,
		fromTime(utils.NowUTC()), frameID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

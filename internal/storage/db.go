package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	repo := &Repository{db: db, logger: logger}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS frames (
			id TEXT PRIMARY KEY,
			host TEXT NOT NULL,
			ble_address TEXT NOT NULL DEFAULT '',
			ble_service_uuid TEXT NOT NULL DEFAULT '',
			ble_characteristic_uuid TEXT NOT NULL DEFAULT '',
			discovered_at TEXT,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return r.normalizeLegacyAddresses(ctx)
}

// normalizeLegacyAddresses rewrites addresses stored with '-' or '_'
// separators or lower case so lookups compare canonical forms.
func (r *Repository) normalizeLegacyAddresses(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE frames SET ble_address = REPLACE(REPLACE(UPPER(TRIM(ble_address)), '-', ':'), '_', ':')
		WHERE ble_address != REPLACE(REPLACE(UPPER(TRIM(ble_address)), '-', ':'), '_', ':')`)
	if err != nil {
		return fmt.Errorf("legacy address normalization failed: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 && r.logger != nil {
		r.logger.Info("normalized legacy ble addresses", "rows", rows)
	}
	return nil
}

func toTimePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func fromTime(v time.Time) string {
	return v.UTC().Format(time.RFC3339Nano)
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements bootstrap the schema on startup. Statements are
// idempotent so repeated runs are safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS device_types (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS manufacturers (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id           BIGSERIAL PRIMARY KEY,
		username     TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT '',
		role         TEXT NOT NULL DEFAULT 'member',
		active       BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id               BIGSERIAL PRIMARY KEY,
		hostname         TEXT NOT NULL UNIQUE,
		ip_address       TEXT NOT NULL,
		device_type      TEXT NOT NULL,
		device_type_id   BIGINT REFERENCES device_types(id),
		manufacturer_id  BIGINT REFERENCES manufacturers(id),
		location         TEXT,
		status           TEXT NOT NULL DEFAULT 'active',
		notes            TEXT,
		assigned_user_id BIGINT,
		assigned_at      TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT devices_assignment_paired
			CHECK ((assigned_user_id IS NULL) = (assigned_at IS NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS device_files (
		id              BIGSERIAL PRIMARY KEY,
		device_id       BIGINT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		filename        TEXT NOT NULL,
		storage_locator TEXT NOT NULL,
		version         INT NOT NULL,
		content_type    TEXT,
		file_size       BIGINT NOT NULL,
		uploaded_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT device_files_version_unique UNIQUE (device_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS device_history (
		id            BIGSERIAL PRIMARY KEY,
		device_id     BIGINT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		action        TEXT NOT NULL,
		actor_user_id BIGINT,
		details       JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices (status)`,
	`CREATE INDEX IF NOT EXISTS idx_device_files_device ON device_files (device_id, version DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_device_history_device ON device_history (device_id, created_at DESC)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

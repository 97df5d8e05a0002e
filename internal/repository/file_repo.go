package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// PostgresFileRepository implements FileRepository using PostgreSQL.
type PostgresFileRepository struct {
	db *sqlx.DB
}

// NewPostgresFileRepository creates a new PostgreSQL file repository.
func NewPostgresFileRepository(db *sqlx.DB) *PostgresFileRepository {
	return &PostgresFileRepository{db: db}
}

// Insert records attachment metadata, computing the next version inside
// the statement so each attempt is atomic. Two concurrent inserts for
// the same device can still compute the same version; the UNIQUE
// (device_id, version) constraint rejects the loser, which the caller
// retries with IsUniqueViolation.
func (r *PostgresFileRepository) Insert(ctx context.Context, file *model.DeviceFile) error {
	query := `
		INSERT INTO device_files (
			device_id, filename, storage_locator, version,
			content_type, file_size, uploaded_at
		)
		SELECT $1, $2, $3, COALESCE(MAX(version), 0) + 1, $4, $5, $6
		FROM device_files
		WHERE device_id = $1
		RETURNING id, version
	`

	var contentType sql.NullString
	if file.ContentType != "" {
		contentType = sql.NullString{String: file.ContentType, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		file.DeviceID, file.Filename, file.StorageLocator,
		contentType, file.FileSize, file.UploadedAt,
	).Scan(&file.ID, &file.Version)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert device file: %w", err)
	}

	return nil
}

// ListByDevice returns a device's attachments, most recent version first.
func (r *PostgresFileRepository) ListByDevice(ctx context.Context, deviceID int64) ([]*model.DeviceFile, error) {
	query := `
		SELECT id, device_id, filename, storage_locator, version,
		       COALESCE(content_type, '') AS content_type, file_size, uploaded_at
		FROM device_files
		WHERE device_id = $1
		ORDER BY version DESC, uploaded_at DESC
	`

	// non-nil even when empty, so an empty list renders as [] not null
	files := make([]*model.DeviceFile, 0)
	if err := r.db.SelectContext(ctx, &files, query, deviceID); err != nil {
		return nil, fmt.Errorf("failed to list device files: %w", err)
	}

	return files, nil
}

// GetByID fetches one attachment scoped to its device, (nil, nil) when
// absent.
func (r *PostgresFileRepository) GetByID(ctx context.Context, deviceID, fileID int64) (*model.DeviceFile, error) {
	query := `
		SELECT id, device_id, filename, storage_locator, version,
		       COALESCE(content_type, '') AS content_type, file_size, uploaded_at
		FROM device_files
		WHERE device_id = $1 AND id = $2
	`

	var file model.DeviceFile
	err := r.db.GetContext(ctx, &file, query, deviceID, fileID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device file: %w", err)
	}

	return &file, nil
}

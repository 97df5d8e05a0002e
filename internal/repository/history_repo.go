package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// PostgresHistoryRepository implements HistoryRepository using
// PostgreSQL. The ledger only ever grows; there is no update or delete
// statement in this file by construction.
type PostgresHistoryRepository struct {
	db *sqlx.DB
}

// NewPostgresHistoryRepository creates a new PostgreSQL history repository.
func NewPostgresHistoryRepository(db *sqlx.DB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

// Append inserts a history entry and fills in its generated id.
func (r *PostgresHistoryRepository) Append(ctx context.Context, entry *model.HistoryEntry) error {
	query := `
		INSERT INTO device_history (device_id, action, actor_user_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var details []byte
	if len(entry.Details) > 0 {
		details, _ = json.Marshal(entry.Details)
	}

	err := r.db.QueryRowContext(ctx, query,
		entry.DeviceID, entry.Action, entry.ActorUserID, details, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// ListByDevice returns a device's history, newest first.
func (r *PostgresHistoryRepository) ListByDevice(ctx context.Context, deviceID int64, limit int) ([]*model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, device_id, action, actor_user_id, details, created_at
		FROM device_history
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	var rows []dbHistoryEntry
	if err := r.db.SelectContext(ctx, &rows, query, deviceID, limit); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	entries := make([]*model.HistoryEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toModel()
	}

	return entries, nil
}

type dbHistoryEntry struct {
	ID          int64     `db:"id"`
	DeviceID    int64     `db:"device_id"`
	Action      string    `db:"action"`
	ActorUserID *int64    `db:"actor_user_id"`
	Details     []byte    `db:"details"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row *dbHistoryEntry) toModel() *model.HistoryEntry {
	entry := &model.HistoryEntry{
		ID:          row.ID,
		DeviceID:    row.DeviceID,
		Action:      model.HistoryAction(row.Action),
		ActorUserID: row.ActorUserID,
		CreatedAt:   row.CreatedAt,
	}
	if len(row.Details) > 0 {
		json.Unmarshal(row.Details, &entry.Details)
	}
	return entry
}

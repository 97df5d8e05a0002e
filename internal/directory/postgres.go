package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// PostgresDirectory reads users from the shared users table.
type PostgresDirectory struct {
	db *sqlx.DB
}

// NewPostgresDirectory creates a Postgres-backed user directory.
func NewPostgresDirectory(db *sqlx.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// GetUser retrieves a user by id, (nil, nil) when absent.
func (d *PostgresDirectory) GetUser(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, username, display_name, email, role, active
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := d.db.GetContext(ctx, &user, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ListUsers returns all directory users, ordered by display name.
func (d *PostgresDirectory) ListUsers(ctx context.Context) ([]*model.User, error) {
	query := `
		SELECT id, username, display_name, email, role, active
		FROM users
		ORDER BY display_name ASC, username ASC
	`

	// non-nil even when empty, so an empty list renders as [] not null
	users := make([]*model.User, 0)
	if err := d.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

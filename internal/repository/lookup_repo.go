package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// PostgresLookupRepository implements LookupRepository over the
// device_types and manufacturers tables.
type PostgresLookupRepository struct {
	db *sqlx.DB
}

// NewPostgresLookupRepository creates a new PostgreSQL lookup repository.
func NewPostgresLookupRepository(db *sqlx.DB) *PostgresLookupRepository {
	return &PostgresLookupRepository{db: db}
}

func (r *PostgresLookupRepository) ListDeviceTypes(ctx context.Context) ([]*model.Lookup, error) {
	return r.list(ctx, "device_types")
}

func (r *PostgresLookupRepository) GetDeviceType(ctx context.Context, id int64) (*model.Lookup, error) {
	return r.get(ctx, "device_types", id)
}

func (r *PostgresLookupRepository) CreateDeviceType(ctx context.Context, name string) (*model.Lookup, error) {
	return r.create(ctx, "device_types", name)
}

func (r *PostgresLookupRepository) EnsureDeviceType(ctx context.Context, name string) error {
	return r.ensure(ctx, "device_types", name)
}

func (r *PostgresLookupRepository) ListManufacturers(ctx context.Context) ([]*model.Lookup, error) {
	return r.list(ctx, "manufacturers")
}

func (r *PostgresLookupRepository) GetManufacturer(ctx context.Context, id int64) (*model.Lookup, error) {
	return r.get(ctx, "manufacturers", id)
}

func (r *PostgresLookupRepository) CreateManufacturer(ctx context.Context, name string) (*model.Lookup, error) {
	return r.create(ctx, "manufacturers", name)
}

func (r *PostgresLookupRepository) EnsureManufacturer(ctx context.Context, name string) error {
	return r.ensure(ctx, "manufacturers", name)
}

// The table name is always one of the two fixed vocabulary tables, never
// caller input, so building queries with Sprintf is safe here.

func (r *PostgresLookupRepository) list(ctx context.Context, table string) ([]*model.Lookup, error) {
	query := fmt.Sprintf("SELECT id, name FROM %s ORDER BY name ASC", table)

	// non-nil even when empty, so an empty list renders as [] not null
	entries := make([]*model.Lookup, 0)
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}

	return entries, nil
}

func (r *PostgresLookupRepository) get(ctx context.Context, table string, id int64) (*model.Lookup, error) {
	query := fmt.Sprintf("SELECT id, name FROM %s WHERE id = $1", table)

	var entry model.Lookup
	err := r.db.GetContext(ctx, &entry, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s entry: %w", table, err)
	}

	return &entry, nil
}

func (r *PostgresLookupRepository) create(ctx context.Context, table, name string) (*model.Lookup, error) {
	query := fmt.Sprintf("INSERT INTO %s (name) VALUES ($1) RETURNING id", table)

	entry := &model.Lookup{Name: name}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&entry.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create %s entry: %w", table, err)
	}

	return entry, nil
}

func (r *PostgresLookupRepository) ensure(ctx context.Context, table, name string) error {
	query := fmt.Sprintf("INSERT INTO %s (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", table)

	if _, err := r.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("failed to ensure %s entry: %w", table, err)
	}

	return nil
}

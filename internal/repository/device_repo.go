package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// deviceColumns selects a device row denormalized with its lookup names
// and, when assigned, the assignee's display name and email.
const deviceColumns = `
	d.id, d.hostname, d.ip_address, d.device_type, d.device_type_id,
	d.manufacturer_id, d.location, d.status, d.notes,
	d.assigned_user_id, d.assigned_at, d.created_at,
	dt.name AS device_type_name,
	m.name  AS manufacturer_name,
	u.display_name AS assignee_name,
	u.email AS assignee_email`

const deviceJoins = `
	FROM devices d
	LEFT JOIN device_types dt ON dt.id = d.device_type_id
	LEFT JOIN manufacturers m ON m.id = d.manufacturer_id
	LEFT JOIN users u ON u.id = d.assigned_user_id`

// PostgresDeviceRepository implements DeviceRepository using PostgreSQL.
type PostgresDeviceRepository struct {
	db *sqlx.DB
}

// NewPostgresDeviceRepository creates a new PostgreSQL device repository.
func NewPostgresDeviceRepository(db *sqlx.DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

// Create inserts a new device and fills in its generated id.
func (r *PostgresDeviceRepository) Create(ctx context.Context, device *model.Device) error {
	query := `
		INSERT INTO devices (
			hostname, ip_address, device_type, device_type_id,
			manufacturer_id, location, status, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	row := r.toDBDevice(device)
	err := r.db.QueryRowContext(ctx, query,
		row.Hostname, row.IPAddress, row.DeviceType, row.DeviceTypeID,
		row.ManufacturerID, row.Location, row.Status, row.Notes, row.CreatedAt,
	).Scan(&device.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to create device: %w", err)
	}

	return nil
}

// GetByID retrieves a device by id, returning (nil, nil) when absent.
func (r *PostgresDeviceRepository) GetByID(ctx context.Context, id int64) (*model.Device, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE d.id = $1", deviceColumns, deviceJoins)

	var row dbDevice
	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return r.fromDBDevice(&row), nil
}

// Update rewrites the mutable columns of an existing device.
func (r *PostgresDeviceRepository) Update(ctx context.Context, device *model.Device) error {
	query := `
		UPDATE devices SET
			hostname = $1,
			ip_address = $2,
			device_type = $3,
			device_type_id = $4,
			manufacturer_id = $5,
			location = $6,
			status = $7,
			notes = $8
		WHERE id = $9
	`

	row := r.toDBDevice(device)
	result, err := r.db.ExecContext(ctx, query,
		row.Hostname, row.IPAddress, row.DeviceType, row.DeviceTypeID,
		row.ManufacturerID, row.Location, row.Status, row.Notes, device.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to update device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// UpdateAssignment sets or clears both assignment fields in a single
// statement. Passing nils clears the assignment.
func (r *PostgresDeviceRepository) UpdateAssignment(ctx context.Context, deviceID int64, userID *int64, assignedAt *time.Time) error {
	query := `UPDATE devices SET assigned_user_id = $1, assigned_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, userID, assignedAt, deviceID)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Delete removes a device; attachments and history cascade at the
// storage level.
func (r *PostgresDeviceRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// List retrieves devices matching the filter, ordered by id ascending.
func (r *PostgresDeviceRepository) List(ctx context.Context, filter *model.DeviceFilter) ([]*model.Device, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if filter != nil && filter.Search != "" {
		conditions = append(conditions,
			fmt.Sprintf("(d.hostname ILIKE $%d OR d.ip_address ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	if filter != nil && filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", argIndex))
		args = append(args, string(filter.Status))
		argIndex++
	}

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY d.id ASC",
		deviceColumns, deviceJoins, strings.Join(conditions, " AND "))

	var rows []dbDevice
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	devices := make([]*model.Device, len(rows))
	for i := range rows {
		devices[i] = r.fromDBDevice(&rows[i])
	}

	return devices, nil
}

// Stats returns inventory counts for dashboards.
func (r *PostgresDeviceRepository) Stats(ctx context.Context) (*model.DeviceStats, error) {
	stats := &model.DeviceStats{
		ByStatus: make(map[model.DeviceStatus]int64),
	}

	var totals struct {
		Total    int64 `db:"total"`
		Assigned int64 `db:"assigned"`
	}
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(assigned_user_id) AS assigned
		FROM devices
	`
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("failed to get device stats: %w", err)
	}
	stats.Total = totals.Total
	stats.Assigned = totals.Assigned
	stats.Available = totals.Total - totals.Assigned

	var statusCounts []struct {
		Status model.DeviceStatus `db:"status"`
		Count  int64              `db:"count"`
	}
	statusQuery := `SELECT status, COUNT(*) AS count FROM devices GROUP BY status`
	if err := r.db.SelectContext(ctx, &statusCounts, statusQuery); err != nil {
		return nil, fmt.Errorf("failed to get status counts: %w", err)
	}
	for _, sc := range statusCounts {
		stats.ByStatus[sc.Status] = sc.Count
	}

	return stats, nil
}

// dbDevice mirrors the devices table with nullable columns.
type dbDevice struct {
	ID             int64          `db:"id"`
	Hostname       string         `db:"hostname"`
	IPAddress      string         `db:"ip_address"`
	DeviceType     string         `db:"device_type"`
	DeviceTypeID   sql.NullInt64  `db:"device_type_id"`
	ManufacturerID sql.NullInt64  `db:"manufacturer_id"`
	Location       sql.NullString `db:"location"`
	Status         string         `db:"status"`
	Notes          sql.NullString `db:"notes"`
	AssignedUserID sql.NullInt64  `db:"assigned_user_id"`
	AssignedAt     *time.Time     `db:"assigned_at"`
	CreatedAt      time.Time      `db:"created_at"`

	DeviceTypeName   sql.NullString `db:"device_type_name"`
	ManufacturerName sql.NullString `db:"manufacturer_name"`
	AssigneeName     sql.NullString `db:"assignee_name"`
	AssigneeEmail    sql.NullString `db:"assignee_email"`
}

func (r *PostgresDeviceRepository) toDBDevice(d *model.Device) *dbDevice {
	row := &dbDevice{
		ID:         d.ID,
		Hostname:   d.Hostname,
		IPAddress:  d.IPAddress,
		DeviceType: d.DeviceType,
		Status:     string(d.Status),
		AssignedAt: d.AssignedAt,
		CreatedAt:  d.CreatedAt,
	}

	if d.DeviceTypeID != nil {
		row.DeviceTypeID = sql.NullInt64{Int64: *d.DeviceTypeID, Valid: true}
	}
	if d.ManufacturerID != nil {
		row.ManufacturerID = sql.NullInt64{Int64: *d.ManufacturerID, Valid: true}
	}
	if d.Location != "" {
		row.Location = sql.NullString{String: d.Location, Valid: true}
	}
	if d.Notes != "" {
		row.Notes = sql.NullString{String: d.Notes, Valid: true}
	}
	if d.AssignedUserID != nil {
		row.AssignedUserID = sql.NullInt64{Int64: *d.AssignedUserID, Valid: true}
	}

	return row
}

func (r *PostgresDeviceRepository) fromDBDevice(row *dbDevice) *model.Device {
	d := &model.Device{
		ID:         row.ID,
		Hostname:   row.Hostname,
		IPAddress:  row.IPAddress,
		DeviceType: row.DeviceType,
		Status:     model.DeviceStatus(row.Status),
		AssignedAt: row.AssignedAt,
		CreatedAt:  row.CreatedAt,
	}

	if row.DeviceTypeID.Valid {
		id := row.DeviceTypeID.Int64
		d.DeviceTypeID = &id
	}
	if row.ManufacturerID.Valid {
		id := row.ManufacturerID.Int64
		d.ManufacturerID = &id
	}
	if row.Location.Valid {
		d.Location = row.Location.String
	}
	if row.Notes.Valid {
		d.Notes = row.Notes.String
	}
	if row.AssignedUserID.Valid {
		id := row.AssignedUserID.Int64
		d.AssignedUserID = &id
	}
	if row.DeviceTypeName.Valid {
		d.DeviceTypeName = row.DeviceTypeName.String
	}
	if row.ManufacturerName.Valid {
		d.ManufacturerName = row.ManufacturerName.String
	}
	if row.AssigneeName.Valid {
		d.AssigneeName = row.AssigneeName.String
	}
	if row.AssigneeEmail.Valid {
		d.AssigneeEmail = row.AssigneeEmail.String
	}

	return d
}

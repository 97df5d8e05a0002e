// Package repository provides data access for the device inventory.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// DeviceRepository defines device data access.
type DeviceRepository interface {
	Create(ctx context.Context, device *model.Device) error
	GetByID(ctx context.Context, id int64) (*model.Device, error)
	Update(ctx context.Context, device *model.Device) error
	// UpdateAssignment writes both assignment fields in one statement so
	// they can never diverge.
	UpdateAssignment(ctx context.Context, deviceID int64, userID *int64, assignedAt *time.Time) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter *model.DeviceFilter) ([]*model.Device, error)
	Stats(ctx context.Context) (*model.DeviceStats, error)
}

// LookupRepository defines access to the normalized vocabularies.
type LookupRepository interface {
	ListDeviceTypes(ctx context.Context) ([]*model.Lookup, error)
	GetDeviceType(ctx context.Context, id int64) (*model.Lookup, error)
	CreateDeviceType(ctx context.Context, name string) (*model.Lookup, error)
	EnsureDeviceType(ctx context.Context, name string) error

	ListManufacturers(ctx context.Context) ([]*model.Lookup, error)
	GetManufacturer(ctx context.Context, id int64) (*model.Lookup, error)
	CreateManufacturer(ctx context.Context, name string) (*model.Lookup, error)
	EnsureManufacturer(ctx context.Context, name string) error
}

// FileRepository defines attachment metadata access. Insert assigns the
// next version atomically; there is no update or delete.
type FileRepository interface {
	Insert(ctx context.Context, file *model.DeviceFile) error
	ListByDevice(ctx context.Context, deviceID int64) ([]*model.DeviceFile, error)
	GetByID(ctx context.Context, deviceID, fileID int64) (*model.DeviceFile, error)
}

// HistoryRepository defines the append-only audit ledger.
type HistoryRepository interface {
	Append(ctx context.Context, entry *model.HistoryEntry) error
	ListByDevice(ctx context.Context, deviceID int64, limit int) ([]*model.HistoryEntry, error)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (duplicate hostname, taken version slot).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

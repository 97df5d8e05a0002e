// Package model provides data models for the device inventory.
package model

import "time"

// DeviceStatus represents device lifecycle status values.
type DeviceStatus string

const (
	StatusActive      DeviceStatus = "active"
	StatusInactive    DeviceStatus = "inactive"
	StatusMaintenance DeviceStatus = "maintenance"
)

// Valid reports whether s is a known status value.
func (s DeviceStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance:
		return true
	}
	return false
}

// Device represents a tracked network device.
type Device struct {
	ID             int64        `json:"id" db:"id"`
	Hostname       string       `json:"hostname" db:"hostname"`
	IPAddress      string       `json:"ip_address" db:"ip_address"`
	DeviceType     string       `json:"device_type" db:"device_type"`
	DeviceTypeID   *int64       `json:"device_type_id,omitempty" db:"device_type_id"`
	ManufacturerID *int64       `json:"manufacturer_id,omitempty" db:"manufacturer_id"`
	Location       string       `json:"location,omitempty" db:"location"`
	Status         DeviceStatus `json:"status" db:"status"`
	Notes          string       `json:"notes,omitempty" db:"notes"`

	// Assignment: both fields are set together or null together.
	AssignedUserID *int64     `json:"assigned_user_id,omitempty" db:"assigned_user_id"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Denormalized read-side fields, populated on list/get.
	DeviceTypeName   string `json:"device_type_name,omitempty" db:"device_type_name"`
	ManufacturerName string `json:"manufacturer_name,omitempty" db:"manufacturer_name"`
	AssigneeName     string `json:"assignee_name,omitempty" db:"assignee_name"`
	AssigneeEmail    string `json:"assignee_email,omitempty" db:"assignee_email"`
}

// Assigned reports whether the device is currently checked out.
func (d *Device) Assigned() bool {
	return d.AssignedUserID != nil
}

// CreateDeviceRequest represents a request to register a new device.
type CreateDeviceRequest struct {
	Hostname       string       `json:"hostname" validate:"required"`
	IPAddress      string       `json:"ip_address" validate:"required"`
	DeviceType     string       `json:"device_type,omitempty"`
	DeviceTypeID   *int64       `json:"device_type_id,omitempty"`
	ManufacturerID *int64       `json:"manufacturer_id,omitempty"`
	Location       string       `json:"location,omitempty"`
	Status         DeviceStatus `json:"status,omitempty"`
	Notes          string       `json:"notes,omitempty"`
}

// UpdateDeviceRequest represents a partial device update. Nil fields are
// left untouched.
type UpdateDeviceRequest struct {
	Hostname       *string       `json:"hostname,omitempty"`
	IPAddress      *string       `json:"ip_address,omitempty"`
	DeviceType     *string       `json:"device_type,omitempty"`
	DeviceTypeID   *int64        `json:"device_type_id,omitempty"`
	ManufacturerID *int64        `json:"manufacturer_id,omitempty"`
	Location       *string       `json:"location,omitempty"`
	Status         *DeviceStatus `json:"status,omitempty"`
	Notes          *string       `json:"notes,omitempty"`
}

// DeviceFilter defines filters for listing devices.
type DeviceFilter struct {
	// Search matches hostname or IP address, case-insensitive substring.
	Search string `json:"search,omitempty"`
	// Status matches exactly when set.
	Status DeviceStatus `json:"status,omitempty"`
}

// DeviceStats summarizes the inventory for dashboards.
type DeviceStats struct {
	Total     int64                  `json:"total"`
	Assigned  int64                  `json:"assigned"`
	Available int64                  `json:"available"`
	ByStatus  map[DeviceStatus]int64 `json:"by_status"`
}

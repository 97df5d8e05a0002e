package model

import "time"

// DeviceFile is one versioned configuration attachment of a device.
// Rows are insert-only: uploads append the next version, and historical
// versions stay addressable forever.
type DeviceFile struct {
	ID             int64     `json:"id" db:"id"`
	DeviceID       int64     `json:"device_id" db:"device_id"`
	Filename       string    `json:"filename" db:"filename"`
	StorageLocator string    `json:"storage_locator" db:"storage_locator"`
	Version        int       `json:"version" db:"version"`
	ContentType    string    `json:"content_type,omitempty" db:"content_type"`
	FileSize       int64     `json:"file_size" db:"file_size"`
	UploadedAt     time.Time `json:"uploaded_at" db:"uploaded_at"`
}

package model

// Lookup is a normalized vocabulary entry (device type or manufacturer).
// Entries are created by seeding or ad hoc additions and never deleted;
// devices reference them by id.
type Lookup struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// CreateLookupRequest adds a vocabulary entry.
type CreateLookupRequest struct {
	Name string `json:"name" validate:"required"`
}

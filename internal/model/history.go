package model

import "time"

// HistoryAction identifies what kind of change a history entry records.
type HistoryAction string

const (
	ActionAssigned      HistoryAction = "assigned"
	ActionCheckedIn     HistoryAction = "checked_in"
	ActionStatusChanged HistoryAction = "status_changed"
	ActionCreated       HistoryAction = "created"
	ActionDeleted       HistoryAction = "deleted"
)

// HistoryEntry is one append-only audit record for a device. Entries are
// never updated or deleted; display order is newest first.
type HistoryEntry struct {
	ID          int64                  `json:"id" db:"id"`
	DeviceID    int64                  `json:"device_id" db:"device_id"`
	Action      HistoryAction          `json:"action" db:"action"`
	ActorUserID *int64                 `json:"actor_user_id,omitempty" db:"actor_user_id"`
	Details     map[string]interface{} `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}

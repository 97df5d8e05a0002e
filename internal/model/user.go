package model

// User is a directory principal devices can be assigned to. The user
// store itself is external; this service only reads it.
type User struct {
	ID          int64  `json:"id" db:"id"`
	Username    string `json:"username" db:"username"`
	DisplayName string `json:"display_name" db:"display_name"`
	Email       string `json:"email" db:"email"`
	Role        string `json:"role" db:"role"`
	Active      bool   `json:"active" db:"active"`
}

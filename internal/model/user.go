package model

import "time"

// User is an operator account. Regular devices never log in as users; the
// admin account exists to grant premium entitlements.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles. Devices authenticate with RoleDevice tokens, operators with RoleAdmin.
const (
	RoleAdmin  = "admin"
	RoleDevice = "device"
)

package model

import "time"

// DefaultAdminUsername is the username given to the single admin credential
// when none is configured.
const DefaultAdminUsername = "admin"

// AdminCredential is the single administrative account. At most one exists
// for the lifetime of a deployment. PasswordHash and Salt are hex strings and
// are never serialized to clients.
type AdminCredential struct {
	ID                int64      `json:"id"`
	Username          string     `json:"username"`
	PasswordHash      string     `json:"-"`
	Salt              string     `json:"-"`
	LoginAttempts     int        `json:"loginAttempts"`
	LockedUntil       *time.Time `json:"lockedUntil,omitempty"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// IsLocked reports whether the credential refuses verification at now.
// Lock state is derived from LockedUntil alone: locked iff it is set and
// strictly after now.
func (c *AdminCredential) IsLocked(now time.Time) bool {
	return c.LockedUntil != nil && c.LockedUntil.After(now)
}

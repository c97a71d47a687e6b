package models

import (
	"time"
)

type Role string

const (
	RoleManager    Role = "manager"
	RoleFrontDesk  Role = "front_desk"
	RoleNightAudit Role = "night_audit"
)

// ValidRole reports whether r is one of the known staff roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleManager, RoleFrontDesk, RoleNightAudit:
		return true
	}
	return false
}

type User struct {
	ID                  int        `json:"id"`
	Username            string     `json:"username"`
	Role                Role       `json:"role"`
	PasswordHash        string     `json:"-"` // Never expose in JSON
	IsActive            bool       `json:"is_active"`
	ForcePasswordChange bool       `json:"force_password_change"`
	CreatedAt           time.Time  `json:"created_at"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
}

// LockoutState tracks consecutive failed logins per username. Rows are
// created lazily on the first failure and reset when an expired lock is
// found at check time; there is no background sweep.
type LockoutState struct {
	Username     string     `json:"username"`
	AttemptCount int        `json:"attempt_count"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	LastAttempt  time.Time  `json:"last_attempt"`
}

// Locked reports whether the lock is still in effect at now.
func (l *LockoutState) Locked(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

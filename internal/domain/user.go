package domain

import "time"

// Member roles form a closed set.
const (
	RoleAdmin    = "ADMIN"
	RoleUser     = "USER"
	RoleProspect = "PROSPECT"
)

// ValidRole reports whether role belongs to the closed role set.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleUser, RoleProspect:
		return true
	}
	return false
}

// User represents a club member account.
//
// ResetToken and ResetTokenExpires are either both nil or both set; the
// database enforces this with a CHECK constraint and every write path
// touches them together.
type User struct {
	ID                string
	Username          string
	PasswordHash      []byte
	Email             string // empty when the member has no email on file
	Role              string
	FirstLogin        bool
	ResetToken        *string
	ResetTokenExpires *time.Time
	CreatedAt         time.Time
}

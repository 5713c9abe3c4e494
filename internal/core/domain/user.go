package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserRole gates admin-only operations.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User is the read model of the user-profile collaborator. The core never
// writes it; it only reads the role and the KYC gate.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Role        UserRole  `json:"role"`
	KYCApproved bool      `json:"kyc_approved"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsAdmin reports whether the user may call admin-only operations.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

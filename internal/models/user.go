package models

import (
	"time"

	"github.com/google/uuid"
)

// Role of a user
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Principal is the authenticated identity attached to a request or channel session
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     Role
}

// PrincipalOf builds the principal for a stored user
func PrincipalOf(u *User) *Principal {
	return &Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// IsAdmin reports whether the principal holds the ADMIN role
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

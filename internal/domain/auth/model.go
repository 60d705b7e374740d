// Package auth provides staff authentication: local accounts with bcrypt
// password hashes and short-lived JWT access tokens.
package auth

import (
	"context"
	"strings"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/entity"
)

// Role is the coarse authorization level of a staff account.
type Role string

const (
	// RoleAdmin manages accounts and can hard-delete movements
	RoleAdmin Role = "admin"
	// RoleNurse records movements and manages the directories
	RoleNurse Role = "nurse"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleNurse
}

// User is a staff account.
type User struct {
	entity.BaseCatalog

	Username string `db:"username" json:"username"`
	FullName string `db:"full_name" json:"fullName"`
	Role     Role   `db:"role" json:"role"`

	// PasswordHash is the bcrypt hash; never serialized
	PasswordHash string `db:"password_hash" json:"-"`
}

// NewUser creates a staff account with the given bcrypt hash.
func NewUser(username, passwordHash string, role Role) *User {
	return &User{
		BaseCatalog:  entity.NewBaseCatalog(),
		Username:     strings.ToLower(strings.TrimSpace(username)),
		Role:         role,
		PasswordHash: passwordHash,
	}
}

// Validate implements entity.Validatable.
func (u *User) Validate(ctx context.Context) error {
	if strings.TrimSpace(u.Username) == "" {
		return apperror.NewValidation("username is required").
			WithDetail("field", "username")
	}
	if !u.Role.Valid() {
		return apperror.NewValidation("unknown role").
			WithDetail("field", "role").
			WithDetail("value", string(u.Role))
	}
	if u.PasswordHash == "" {
		return apperror.NewValidation("password is required").
			WithDetail("field", "password")
	}
	return nil
}

// Credentials is a login request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest creates a new staff account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

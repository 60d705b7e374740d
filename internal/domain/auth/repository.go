package auth

import (
	"context"

	"botiquin/internal/core/id"
)

// UserRepository defines persistence operations for staff accounts.
type UserRepository interface {
	// Create inserts a user
	Create(ctx context.Context, u *User) error

	// GetByID retrieves a user by id
	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByUsername retrieves a non-deleted user by username
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update modifies a user
	Update(ctx context.Context, u *User) error

	// SetDeletionMark toggles the soft-delete mark
	SetDeletionMark(ctx context.Context, userID id.ID, deleted bool) error

	// List retrieves all non-deleted users ordered by username
	List(ctx context.Context) ([]*User, error)
}

package medication

import (
	"context"
	"time"

	"botiquin/internal/core/id"
	"botiquin/internal/domain"
)

// Repository defines persistence operations for medications.
type Repository interface {
	// Create inserts a new medication
	Create(ctx context.Context, med *Medication) error

	// GetByID retrieves a medication by ID
	GetByID(ctx context.Context, medID id.ID) (*Medication, error)

	// GetByIDForUpdate retrieves a medication with a row lock.
	// Used by the ledger to make validate+mutate linearizable.
	GetByIDForUpdate(ctx context.Context, medID id.ID) (*Medication, error)

	// GetByNameForUpdate retrieves a non-deleted medication by case-insensitive
	// exact name match, with a row lock. Returns a not-found error when absent.
	GetByNameForUpdate(ctx context.Context, name string) (*Medication, error)

	// Update modifies an existing medication (optimistic locking)
	Update(ctx context.Context, med *Medication) error

	// SetDeletionMark sets or clears the soft-delete mark
	SetDeletionMark(ctx context.Context, medID id.ID, marked bool) error

	// AdjustQuantity applies a signed delta to the on-hand quantity
	AdjustQuantity(ctx context.Context, medID id.ID, delta int64) error

	// List retrieves medications with filtering and pagination
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Medication], error)
}

// ListFilter for medication queries.
type ListFilter struct {
	// Search matches against name (ILIKE)
	Search string

	// ExpiringBefore returns only medications whose batch expires before the date
	ExpiringBefore *time.Time

	IncludeDeleted bool

	OrderBy string
	Limit   int
	Offset  int
}

package patient

import (
	"context"

	"botiquin/internal/core/id"
	"botiquin/internal/domain"
)

// Repository defines persistence operations for patients.
type Repository interface {
	// Create inserts a patient
	Create(ctx context.Context, p *Patient) error

	// GetByID retrieves a patient by id (including soft-deleted)
	GetByID(ctx context.Context, patientID id.ID) (*Patient, error)

	// Update modifies a patient (optimistic locking on version)
	Update(ctx context.Context, p *Patient) error

	// SetDeletionMark toggles the soft-delete mark
	SetDeletionMark(ctx context.Context, patientID id.ID, deleted bool) error

	// List retrieves patients matching the filter, ordered by name
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Patient], error)
}

// ListFilter for patient queries.
type ListFilter struct {
	// Search matches against full name and room
	Search string

	IncludeDeleted bool

	Limit  int
	Offset int
}

package ledger

import (
	"context"
	"time"

	"botiquin/internal/core/id"
	"botiquin/internal/domain"
)

// Repository defines persistence operations for movements and their lines.
// All write methods are expected to run inside a transaction opened by the engine.
type Repository interface {
	// Create inserts a movement header
	Create(ctx context.Context, m *Movement) error

	// Update modifies a movement header (optimistic locking on version)
	Update(ctx context.Context, m *Movement) error

	// Delete hard-deletes a movement header
	Delete(ctx context.Context, movementID id.ID) error

	// GetByID retrieves a movement header by id
	GetByID(ctx context.Context, movementID id.ID) (*Movement, error)

	// GetByIDForUpdate retrieves a movement header by id with a row lock held
	// until the surrounding transaction commits
	GetByIDForUpdate(ctx context.Context, movementID id.ID) (*Movement, error)

	// GetByFolio retrieves a movement header by folio
	GetByFolio(ctx context.Context, folio string) (*Movement, error)

	// GetLines retrieves a movement's lines, denormalizing medication name/unit
	// from the snapshot with a live-join fallback
	GetLines(ctx context.Context, movementID id.ID) ([]Line, error)

	// GetLinesByMovementIDs retrieves lines for many movements, batching the
	// id list to bound query size
	GetLinesByMovementIDs(ctx context.Context, movementIDs []id.ID) (map[id.ID][]Line, error)

	// SaveLines replaces a movement's line set (delete existing + insert new)
	SaveLines(ctx context.Context, movementID id.ID, lines []Line) error

	// DeleteLines removes a movement's lines
	DeleteLines(ctx context.Context, movementID id.ID) error

	// List retrieves movement headers matching the filter, newest first
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Movement], error)
}

// ListFilter for movement queries.
type ListFilter struct {
	Kind      *Kind
	PatientID *id.ID
	Status    *Status
	DateFrom  *time.Time
	DateTo    *time.Time

	Limit  int
	Offset int
}

package prescription

import (
	"context"

	"botiquin/internal/core/id"
)

// Repository defines persistence operations for prescriptions.
type Repository interface {
	// Create inserts a prescription record
	Create(ctx context.Context, p *Prescription) error

	// ListByPatient retrieves a patient's prescriptions, newest first
	ListByPatient(ctx context.Context, patientID id.ID, limit, offset int) ([]*Prescription, error)
}

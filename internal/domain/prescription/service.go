package prescription

import (
	"context"
	"fmt"
	"time"

	"botiquin/internal/core/id"
	"botiquin/internal/domain"
	"botiquin/pkg/logger"
)

// Service provides the prescription read path and implements the recorder
// interface the ledger engine calls after a dispensing movement commits.
type Service struct {
	repo Repository
}

// NewService creates a new prescription service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends a prescription. Called by the ledger after commit, outside any
// transaction; a failure here never affects the movement.
func (s *Service) Record(ctx context.Context, patientID, medicationID id.ID, dosage, frequency string, quantity int64) error {
	p := &Prescription{
		ID:           id.New(),
		PatientID:    patientID,
		MedicationID: medicationID,
		Dosage:       dosage,
		Frequency:    frequency,
		Quantity:     quantity,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("record prescription: %w", err)
	}

	logger.Debug(ctx, "prescription recorded",
		"patient_id", patientID,
		"medication_id", medicationID,
	)
	return nil
}

// ListByPatient retrieves a patient's prescription history, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID id.ID, limit, offset int) ([]*Prescription, error) {
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

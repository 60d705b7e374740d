package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"botiquin/internal/core/id"
	"botiquin/internal/domain/prescription"
)

// PrescriptionRepo is the PostgreSQL prescription repository.
type PrescriptionRepo struct {
	txManager *TxManager
}

var _ prescription.Repository = (*PrescriptionRepo)(nil)

// NewPrescriptionRepo creates a new prescription repository.
func NewPrescriptionRepo(txManager *TxManager) *PrescriptionRepo {
	return &PrescriptionRepo{txManager: txManager}
}

// Create inserts a prescription record.
func (r *PrescriptionRepo) Create(ctx context.Context, p *prescription.Prescription) error {
	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("prescriptions").
		Columns("id", "patient_id", "medication_id", "dosage", "frequency", "quantity", "created_at").
		Values(p.ID, p.PatientID, p.MedicationID, p.Dosage, p.Frequency, p.Quantity, p.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

// ListByPatient retrieves a patient's prescriptions, newest first. The current
// medication name is joined in for display.
func (r *PrescriptionRepo) ListByPatient(ctx context.Context, patientID id.ID, limit, offset int) ([]*prescription.Prescription, error) {
	sql := `
		SELECT p.id, p.patient_id, p.medication_id, p.dosage, p.frequency,
		       p.quantity, p.created_at, m.name AS medication_name
		FROM prescriptions p
		JOIN medications m ON m.id = p.medication_id
		WHERE p.patient_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`

	var items []*prescription.Prescription
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, patientID, limit, offset); err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	return items, nil
}

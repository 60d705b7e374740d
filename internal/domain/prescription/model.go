// Package prescription keeps the per-patient medication regimen derived from
// exit movements that carry a recommended dosage and frequency.
package prescription

import (
	"time"

	"botiquin/internal/core/id"
)

// Prescription is one dispensing record with its dosage instructions.
// Rows are append-only; the latest record per (patient, medication) is the
// current regimen.
type Prescription struct {
	ID           id.ID     `db:"id" json:"id"`
	PatientID    id.ID     `db:"patient_id" json:"patientId"`
	MedicationID id.ID     `db:"medication_id" json:"medicationId"`
	Dosage       string    `db:"dosage" json:"dosage"`
	Frequency    string    `db:"frequency" json:"frequency"`
	Quantity     int64     `db:"quantity" json:"quantity"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`

	// MedicationName is joined in on reads for display
	MedicationName string `db:"medication_name" json:"medicationName,omitempty"`
}

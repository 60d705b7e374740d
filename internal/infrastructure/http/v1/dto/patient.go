package dto

import (
	"time"

	"botiquin/internal/domain/patient"
	"botiquin/internal/domain/prescription"
)

// --- Request DTOs ---

// CreatePatientRequest admits a patient.
type CreatePatientRequest struct {
	FullName   string     `json:"fullName" binding:"required"`
	Room       string     `json:"room,omitempty"`
	BirthDate  *time.Time `json:"birthDate,omitempty"`
	AdmittedAt *time.Time `json:"admittedAt,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreatePatientRequest) ToEntity() *patient.Patient {
	p := patient.New(r.FullName, r.Room)
	p.BirthDate = r.BirthDate
	p.Notes = r.Notes
	if r.AdmittedAt != nil {
		p.AdmittedAt = *r.AdmittedAt
	}
	return p
}

// UpdatePatientRequest updates a patient record.
type UpdatePatientRequest struct {
	FullName  *string    `json:"fullName,omitempty"`
	Room      *string    `json:"room,omitempty"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdatePatientRequest) ApplyTo(p *patient.Patient) {
	if r.FullName != nil {
		p.FullName = *r.FullName
	}
	if r.Room != nil {
		p.Room = *r.Room
	}
	if r.BirthDate != nil {
		p.BirthDate = r.BirthDate
	}
	if r.Notes != nil {
		p.Notes = r.Notes
	}
}

// ListPatientsRequest filters the patient list.
type ListPatientsRequest struct {
	Search         string `form:"search"`
	IncludeDeleted bool   `form:"includeDeleted"`
	Limit          int    `form:"limit"`
	Offset         int    `form:"offset"`
}

// ToFilter converts the request to a domain filter.
func (r *ListPatientsRequest) ToFilter() patient.ListFilter {
	return patient.ListFilter{
		Search:         r.Search,
		IncludeDeleted: r.IncludeDeleted,
		Limit:          r.Limit,
		Offset:         r.Offset,
	}
}

// --- Response DTOs ---

// PatientResponse represents a patient in API responses.
type PatientResponse struct {
	ID           string     `json:"id"`
	FullName     string     `json:"fullName"`
	Room         string     `json:"room,omitempty"`
	BirthDate    *time.Time `json:"birthDate,omitempty"`
	AdmittedAt   time.Time  `json:"admittedAt"`
	Notes        *string    `json:"notes,omitempty"`
	DeletionMark bool       `json:"deletionMark,omitempty"`
	Version      int        `json:"version"`
}

// FromPatient converts domain entity to response DTO.
func FromPatient(p *patient.Patient) *PatientResponse {
	return &PatientResponse{
		ID:           p.ID.String(),
		FullName:     p.FullName,
		Room:         p.Room,
		BirthDate:    p.BirthDate,
		AdmittedAt:   p.AdmittedAt,
		Notes:        p.Notes,
		DeletionMark: p.DeletionMark,
		Version:      p.Version,
	}
}

// PrescriptionResponse represents a prescription record in API responses.
type PrescriptionResponse struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patientId"`
	MedicationID   string    `json:"medicationId"`
	MedicationName string    `json:"medicationName,omitempty"`
	Dosage         string    `json:"dosage"`
	Frequency      string    `json:"frequency"`
	Quantity       int64     `json:"quantity"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FromPrescription converts domain entity to response DTO.
func FromPrescription(p *prescription.Prescription) *PrescriptionResponse {
	return &PrescriptionResponse{
		ID:             p.ID.String(),
		PatientID:      p.PatientID.String(),
		MedicationID:   p.MedicationID.String(),
		MedicationName: p.MedicationName,
		Dosage:         p.Dosage,
		Frequency:      p.Frequency,
		Quantity:       p.Quantity,
		CreatedAt:      p.CreatedAt,
	}
}

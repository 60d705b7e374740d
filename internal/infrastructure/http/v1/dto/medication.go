package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"botiquin/internal/domain/medication"
)

// --- Request DTOs ---

// CreateMedicationRequest registers a medication in the directory.
type CreateMedicationRequest struct {
	Name      string          `json:"name" binding:"required"`
	Unit      string          `json:"unit,omitempty"`
	Quantity  int64           `json:"quantity,omitempty"`
	Strength  decimal.Decimal `json:"strength,omitempty"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Notes     *string         `json:"notes,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateMedicationRequest) ToEntity() *medication.Medication {
	med := medication.New(r.Name, r.Unit)
	med.Quantity = r.Quantity
	med.Strength = r.Strength
	med.ExpiresAt = r.ExpiresAt
	med.Notes = r.Notes
	return med
}

// UpdateMedicationRequest updates a medication.
type UpdateMedicationRequest struct {
	Name      *string          `json:"name,omitempty"`
	Unit      *string          `json:"unit,omitempty"`
	Quantity  *int64           `json:"quantity,omitempty"`
	Strength  *decimal.Decimal `json:"strength,omitempty"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateMedicationRequest) ApplyTo(med *medication.Medication) {
	if r.Name != nil {
		med.Name = *r.Name
	}
	if r.Unit != nil {
		med.Unit = *r.Unit
	}
	if r.Quantity != nil {
		med.Quantity = *r.Quantity
	}
	if r.Strength != nil {
		med.Strength = *r.Strength
	}
	if r.ExpiresAt != nil {
		med.ExpiresAt = r.ExpiresAt
	}
	if r.Notes != nil {
		med.Notes = r.Notes
	}
}

// ListMedicationsRequest filters the medication list.
type ListMedicationsRequest struct {
	Search         string     `form:"search"`
	ExpiringBefore *time.Time `form:"expiringBefore" time_format:"2006-01-02"`
	IncludeDeleted bool       `form:"includeDeleted"`
	OrderBy        string     `form:"orderBy"`
	Limit          int        `form:"limit"`
	Offset         int        `form:"offset"`
}

// ToFilter converts the request to a domain filter.
func (r *ListMedicationsRequest) ToFilter() medication.ListFilter {
	return medication.ListFilter{
		Search:         r.Search,
		ExpiringBefore: r.ExpiringBefore,
		IncludeDeleted: r.IncludeDeleted,
		OrderBy:        r.OrderBy,
		Limit:          r.Limit,
		Offset:         r.Offset,
	}
}

// --- Response DTOs ---

// MedicationResponse represents a medication in API responses.
type MedicationResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit,omitempty"`
	Quantity     int64           `json:"quantity"`
	Strength     decimal.Decimal `json:"strength"`
	ExpiresAt    *time.Time      `json:"expiresAt,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	DeletionMark bool            `json:"deletionMark,omitempty"`
	Version      int             `json:"version"`
}

// FromMedication converts domain entity to response DTO.
func FromMedication(med *medication.Medication) *MedicationResponse {
	return &MedicationResponse{
		ID:           med.ID.String(),
		Name:         med.Name,
		Unit:         med.Unit,
		Quantity:     med.Quantity,
		Strength:     med.Strength,
		ExpiresAt:    med.ExpiresAt,
		Notes:        med.Notes,
		DeletionMark: med.DeletionMark,
		Version:      med.Version,
	}
}

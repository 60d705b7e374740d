// Package patient provides the resident directory of the care facility.
package patient

import (
	"context"
	"strings"
	"time"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/entity"
)

// Patient represents a resident of the facility. Exit movements dispense
// medication against a patient; the record is soft-deleted on discharge so the
// dispensing history keeps resolving.
type Patient struct {
	entity.BaseCatalog

	// FullName is the resident's legal name
	FullName string `db:"full_name" json:"fullName"`

	// Room is the assigned room or bed label ("A-12")
	Room string `db:"room" json:"room,omitempty"`

	// BirthDate is optional; used for dosage review by nursing staff
	BirthDate *time.Time `db:"birth_date" json:"birthDate,omitempty"`

	// AdmittedAt is the admission date
	AdmittedAt time.Time `db:"admitted_at" json:"admittedAt"`

	// Notes is optional free text (allergies, dietary restrictions)
	Notes *string `db:"notes" json:"notes,omitempty"`
}

// New creates a patient admitted now.
func New(fullName, room string) *Patient {
	return &Patient{
		BaseCatalog: entity.NewBaseCatalog(),
		FullName:    strings.TrimSpace(fullName),
		Room:        strings.TrimSpace(room),
		AdmittedAt:  time.Now().UTC(),
	}
}

// Validate implements entity.Validatable.
func (p *Patient) Validate(ctx context.Context) error {
	if strings.TrimSpace(p.FullName) == "" {
		return apperror.NewValidation("patient name is required").
			WithDetail("field", "fullName")
	}

	if p.BirthDate != nil && p.BirthDate.After(time.Now()) {
		return apperror.NewValidation("birth date cannot be in the future").
			WithDetail("field", "birthDate")
	}

	return nil
}

package dto

import (
	"time"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/domain/ledger"
)

// --- Request DTOs ---

// CreateMovementRequest creates a ledger movement.
type CreateMovementRequest struct {
	Kind      string                `json:"kind" binding:"required"`
	PatientID *string               `json:"patientId,omitempty"`
	DueDate   *time.Time            `json:"dueDate,omitempty"`
	Status    string                `json:"status,omitempty"`
	Comment   string                `json:"comment,omitempty"`
	Lines     []MovementLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// MovementLineRequest is one line in a create/update request. Either
// medicationId or medicationName must be set; name-only lines are the
// entry-by-name path.
type MovementLineRequest struct {
	MedicationID      *string    `json:"medicationId,omitempty"`
	MedicationName    *string    `json:"medicationName,omitempty"`
	Unit              *string    `json:"unit,omitempty"`
	Quantity          int64      `json:"quantity" binding:"required,gt=0"`
	RecommendedDosage *string    `json:"recommendedDosage,omitempty"`
	Frequency         *string    `json:"frequency,omitempty"`
	ExpiryDate        *time.Time `json:"expiryDate,omitempty"`
}

// ToEntity converts request to domain entity. A malformed id is a validation
// error, never a silent fallback to another resolution path.
func (r *CreateMovementRequest) ToEntity() (*ledger.Movement, error) {
	patientID, err := parseOptionalID(r.PatientID, "patientId")
	if err != nil {
		return nil, err
	}

	m := ledger.NewMovement(ledger.Kind(r.Kind), patientID)
	m.DueDate = r.DueDate
	m.Comment = r.Comment
	if r.Status != "" {
		m.Status = ledger.Status(r.Status)
	}

	for i := range r.Lines {
		line, err := r.Lines[i].toLine(i + 1)
		if err != nil {
			return nil, err
		}
		m.Lines = append(m.Lines, line)
	}
	return m, nil
}

func (lr *MovementLineRequest) toLine(lineNo int) (ledger.Line, error) {
	line := ledger.Line{
		LineID:            id.New(),
		LineNo:            lineNo,
		Quantity:          lr.Quantity,
		RecommendedDosage: lr.RecommendedDosage,
		Frequency:         lr.Frequency,
		ExpiryDate:        lr.ExpiryDate,
		MedicationName:    lr.MedicationName,
		Unit:              lr.Unit,
	}
	if lr.MedicationID != nil {
		parsed, err := id.Parse(*lr.MedicationID)
		if err != nil {
			return ledger.Line{}, apperror.NewValidation("invalid id").
				WithDetail("field", "medicationId").
				WithDetail("lineNo", lineNo)
		}
		line.MedicationID = parsed
	}
	return line, nil
}

func parseOptionalID(raw *string, field string) (*id.ID, error) {
	if raw == nil {
		return nil, nil
	}
	parsed, err := id.Parse(*raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid id").WithDetail("field", field)
	}
	return &parsed, nil
}

// UpdateMovementRequest updates a movement's mutable header fields and,
// when lines is present, replaces the full line set.
type UpdateMovementRequest struct {
	PatientID *string               `json:"patientId,omitempty"`
	DueDate   *time.Time            `json:"dueDate,omitempty"`
	Status    *string               `json:"status,omitempty"`
	Comment   *string               `json:"comment,omitempty"`
	Lines     []MovementLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies header updates to an existing entity and returns the
// replacement line set, or nil when lines were not supplied.
func (r *UpdateMovementRequest) ApplyTo(m *ledger.Movement) ([]ledger.Line, error) {
	patientID, err := parseOptionalID(r.PatientID, "patientId")
	if err != nil {
		return nil, err
	}
	if patientID != nil {
		m.PatientID = patientID
	}
	if r.DueDate != nil {
		m.DueDate = r.DueDate
	}
	if r.Status != nil {
		m.Status = ledger.Status(*r.Status)
	}
	if r.Comment != nil {
		m.Comment = *r.Comment
	}

	if r.Lines == nil {
		return nil, nil
	}
	newLines := make([]ledger.Line, 0, len(r.Lines))
	for i := range r.Lines {
		line, err := r.Lines[i].toLine(i + 1)
		if err != nil {
			return nil, err
		}
		newLines = append(newLines, line)
	}
	return newLines, nil
}

// ListMovementsRequest filters the movement list.
type ListMovementsRequest struct {
	Kind      string     `form:"kind"`
	PatientID string     `form:"patientId"`
	Status    string     `form:"status"`
	DateFrom  *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo    *time.Time `form:"dateTo" time_format:"2006-01-02"`
	Limit     int        `form:"limit"`
	Offset    int        `form:"offset"`
}

// ToFilter converts the request to a domain filter.
func (r *ListMovementsRequest) ToFilter() (ledger.ListFilter, error) {
	filter := ledger.ListFilter{
		DateFrom: r.DateFrom,
		DateTo:   r.DateTo,
		Limit:    r.Limit,
		Offset:   r.Offset,
	}
	if r.Kind != "" {
		kind := ledger.Kind(r.Kind)
		filter.Kind = &kind
	}
	if r.Status != "" {
		status := ledger.Status(r.Status)
		filter.Status = &status
	}
	if r.PatientID != "" {
		parsed, err := id.Parse(r.PatientID)
		if err != nil {
			return filter, apperror.NewValidation("invalid id").WithDetail("field", "patientId")
		}
		filter.PatientID = &parsed
	}
	return filter, nil
}

// --- Response DTOs ---

// MovementResponse represents a movement in API responses.
type MovementResponse struct {
	ID        string                 `json:"id"`
	Folio     string                 `json:"folio"`
	Kind      string                 `json:"kind"`
	PatientID *string                `json:"patientId,omitempty"`
	DueDate   *time.Time             `json:"dueDate,omitempty"`
	Status    string                 `json:"status"`
	Comment   string                 `json:"comment,omitempty"`
	Lines     []MovementLineResponse `json:"lines"`
	Version   int                    `json:"version"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// MovementLineResponse represents a line in API responses.
type MovementLineResponse struct {
	LineID            string     `json:"lineId"`
	LineNo            int        `json:"lineNo"`
	MedicationID      string     `json:"medicationId"`
	MedicationName    *string    `json:"medicationName,omitempty"`
	Unit              *string    `json:"unit,omitempty"`
	Quantity          int64      `json:"quantity"`
	RecommendedDosage *string    `json:"recommendedDosage,omitempty"`
	Frequency         *string    `json:"frequency,omitempty"`
	ExpiryDate        *time.Time `json:"expiryDate,omitempty"`
}

// FromMovement converts domain entity to response DTO.
func FromMovement(m *ledger.Movement) *MovementResponse {
	resp := &MovementResponse{
		ID:        m.ID.String(),
		Folio:     m.Folio,
		Kind:      string(m.Kind),
		DueDate:   m.DueDate,
		Status:    string(m.Status),
		Comment:   m.Comment,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.PatientID != nil {
		s := m.PatientID.String()
		resp.PatientID = &s
	}

	resp.Lines = make([]MovementLineResponse, len(m.Lines))
	for i, line := range m.Lines {
		resp.Lines[i] = MovementLineResponse{
			LineID:            line.LineID.String(),
			LineNo:            line.LineNo,
			MedicationID:      line.MedicationID.String(),
			MedicationName:    line.MedicationName,
			Unit:              line.Unit,
			Quantity:          line.Quantity,
			RecommendedDosage: line.RecommendedDosage,
			Frequency:         line.Frequency,
			ExpiryDate:        line.ExpiryDate,
		}
	}
	return resp
}

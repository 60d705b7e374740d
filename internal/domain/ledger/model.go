// Package ledger provides the medication movement ledger: stock entering the
// facility ("entrada"), stock dispensed to a patient ("salida"), and stock
// written off as expired ("caducidad"), each receipted with a sequential folio.
package ledger

import (
	"context"
	"strings"
	"time"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/entity"
	"botiquin/internal/core/id"
)

// Kind discriminates the three movement types.
type Kind string

const (
	KindEntry  Kind = "entry"  // entrada
	KindExit   Kind = "exit"   // salida
	KindExpiry Kind = "expiry" // caducidad
)

// Valid reports whether k is a known movement kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEntry, KindExit, KindExpiry:
		return true
	}
	return false
}

// Outbound reports whether the kind decreases stock.
func (k Kind) Outbound() bool {
	return k == KindExit || k == KindExpiry
}

// StockSign is the sign applied to line quantities when mutating stock.
func (k Kind) StockSign() int64 {
	if k.Outbound() {
		return -1
	}
	return 1
}

// FolioPrefix returns the receipt-number prefix for the kind.
func (k Kind) FolioPrefix() string {
	switch k {
	case KindEntry:
		return "E"
	case KindExit:
		return "S"
	case KindExpiry:
		return "C"
	}
	return ""
}

// Status is the two-value completion flag of a movement.
type Status string

const (
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusComplete || s == StatusIncomplete
}

// Movement is a single ledger transaction. Kind and Folio are immutable after
// creation; only Status, DueDate, Comment, PatientID and the line set may change.
type Movement struct {
	entity.BaseDocument

	// Folio is the human-readable receipt number (e.g. S-2024-0007),
	// assigned exactly once at creation
	Folio string `db:"folio" json:"folio"`

	// Kind is the movement type; fixed at creation
	Kind Kind `db:"kind" json:"kind"`

	// PatientID is required for Exit and absent otherwise
	PatientID *id.ID `db:"patient_id" json:"patientId,omitempty"`

	// DueDate is the next expected refill date; meaningful only for Exit
	DueDate *time.Time `db:"due_date" json:"dueDate,omitempty"`

	Status  Status `db:"status" json:"status"`
	Comment string `db:"comment" json:"comment,omitempty"`

	// Lines is the table part; order is display order only
	Lines []Line `db:"-" json:"lines"`
}

// Line is one medication quantity within a movement.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	// MedicationID references the medication. For Entry it may start nil and be
	// resolved from MedicationName during creation.
	MedicationID id.ID `db:"medication_id" json:"medicationId"`

	// Quantity is always a positive magnitude; sign is implied by the kind
	Quantity int64 `db:"quantity" json:"quantity"`

	// RecommendedDosage and Frequency are meaningful only for Exit.
	// When both are present the line produces a prescription record.
	RecommendedDosage *string `db:"recommended_dosage" json:"recommendedDosage,omitempty"`
	Frequency         *string `db:"frequency" json:"frequency,omitempty"`

	// ExpiryDate on Expiry movements is the medication's expiration date at
	// write time, never the caller-supplied value
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	// MedicationName and Unit are denormalized snapshots taken at write time so
	// history stays readable after a rename or delete. On input, MedicationName
	// doubles as the entry-by-name resolution key when MedicationID is nil.
	MedicationName *string `db:"medication_name" json:"medicationName,omitempty"`
	Unit           *string `db:"unit" json:"unit,omitempty"`
}

// HasPrescription reports whether the line carries both dosage and frequency.
func (l *Line) HasPrescription() bool {
	return l.RecommendedDosage != nil && strings.TrimSpace(*l.RecommendedDosage) != "" &&
		l.Frequency != nil && strings.TrimSpace(*l.Frequency) != ""
}

// NewMovement creates a movement of the given kind.
func NewMovement(kind Kind, patientID *id.ID) *Movement {
	return &Movement{
		BaseDocument: entity.NewBaseDocument(),
		Kind:         kind,
		PatientID:    patientID,
		Status:       StatusComplete,
		Lines:        make([]Line, 0),
	}
}

// AddLine appends a line referencing a medication by id.
func (m *Movement) AddLine(medicationID id.ID, quantity int64) *Line {
	m.Lines = append(m.Lines, Line{
		LineID:       id.New(),
		LineNo:       len(m.Lines) + 1,
		MedicationID: medicationID,
		Quantity:     quantity,
	})
	return &m.Lines[len(m.Lines)-1]
}

// AddLineByName appends an entry line that introduces a medication by name.
func (m *Movement) AddLineByName(name, unit string, quantity int64) *Line {
	line := m.AddLine(id.Nil(), quantity)
	line.MedicationName = &name
	if unit != "" {
		line.Unit = &unit
	}
	return line
}

// Validate implements entity.Validatable.
func (m *Movement) Validate(ctx context.Context) error {
	if !m.Kind.Valid() {
		return apperror.NewValidation("unknown movement kind").
			WithDetail("field", "kind").
			WithDetail("value", string(m.Kind))
	}

	if !m.Status.Valid() {
		return apperror.NewValidation("unknown movement status").
			WithDetail("field", "status").
			WithDetail("value", string(m.Status))
	}

	if m.Kind == KindExit && (m.PatientID == nil || id.IsNil(*m.PatientID)) {
		return apperror.NewValidation("patient is required for exit movements").
			WithDetail("field", "patientId")
	}

	if m.Kind != KindExit && m.PatientID != nil {
		return apperror.NewValidation("patient is only allowed on exit movements").
			WithDetail("field", "patientId")
	}

	if len(m.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	return validateLines(m.Kind, m.Lines)
}

// validateLines checks line invariants for the given kind.
// Shared between Create and Update (full line replacement).
func validateLines(kind Kind, lines []Line) error {
	for i, line := range lines {
		if line.Quantity <= 0 {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}

		if id.IsNil(line.MedicationID) {
			name := ""
			if line.MedicationName != nil {
				name = strings.TrimSpace(*line.MedicationName)
			}
			if name == "" {
				return apperror.NewValidation("medication is required").
					WithDetail("field", "lines").
					WithDetail("lineNo", i+1)
			}
			// Resolution by name introduces new stock; only entries may do that.
			if kind != KindEntry {
				return apperror.NewValidation("medication name resolution is only allowed on entry movements").
					WithDetail("field", "lines").
					WithDetail("lineNo", i+1)
			}
		}
	}
	return nil
}

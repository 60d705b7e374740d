// Package medication provides the medication directory (catálogo de medicamentos)
// and the stock mutation path used by the movement ledger.
package medication

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/entity"
)

// Medication represents one item in the facility's medicine cabinet.
// Quantity is the on-hand count in Unit units; the ledger is the only
// subsystem that changes it outside direct administrative edits.
type Medication struct {
	entity.BaseCatalog

	// Name is the commercial or generic name ("Paracetamol")
	Name string `db:"name" json:"name"`

	// Unit is the dispensing unit ("tabletas", "ml", "ampolletas")
	Unit string `db:"unit" json:"unit,omitempty"`

	// Quantity is the current on-hand count
	Quantity int64 `db:"quantity" json:"quantity"`

	// Strength is the dose strength in milligrams, when known
	Strength decimal.Decimal `db:"strength" json:"strength"`

	// ExpiresAt is the expiration date of the current batch.
	// Expiry movements record this value on their lines.
	ExpiresAt *time.Time `db:"expires_at" json:"expiresAt,omitempty"`

	// Notes is optional free text (storage location, supplier, etc.)
	Notes *string `db:"notes" json:"notes,omitempty"`
}

// New creates a medication with zero stock.
func New(name, unit string) *Medication {
	return &Medication{
		BaseCatalog: entity.NewBaseCatalog(),
		Name:        strings.TrimSpace(name),
		Unit:        strings.TrimSpace(unit),
		Strength:    decimal.Zero,
	}
}

// Validate implements entity.Validatable.
func (m *Medication) Validate(ctx context.Context) error {
	if strings.TrimSpace(m.Name) == "" {
		return apperror.NewValidation("medication name is required").
			WithDetail("field", "name")
	}

	if m.Quantity < 0 {
		return apperror.NewValidation("quantity cannot be negative").
			WithDetail("field", "quantity")
	}

	if m.Strength.IsNegative() {
		return apperror.NewValidation("strength cannot be negative").
			WithDetail("field", "strength")
	}

	return nil
}

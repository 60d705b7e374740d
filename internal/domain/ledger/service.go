package ledger

import (
	"context"
	"fmt"
	"time"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/core/tx"
	"botiquin/internal/domain"
	"botiquin/internal/domain/medication"
	"botiquin/pkg/logger"
)

// Directory is the medication directory surface the engine mutates stock through.
// Implementations must be transaction-aware: calls happen inside the engine's
// transaction and row locks must hold until it commits.
type Directory interface {
	GetForUpdate(ctx context.Context, medID id.ID) (*medication.Medication, error)
	ResolveOrCreate(ctx context.Context, name, unit string) (*medication.Medication, error)
	AdjustQuantity(ctx context.Context, medID id.ID, delta int64) error
}

// PrescriptionRecorder logs that a patient is now on a medication.
// Best-effort: the engine never fails a movement on recorder errors.
type PrescriptionRecorder interface {
	Record(ctx context.Context, patientID, medicationID id.ID, dosage, frequency string, quantity int64) error
}

// FolioAllocator allocates the next receipt number for a prefix and period.
type FolioAllocator interface {
	Next(ctx context.Context, prefix string, period time.Time) (string, error)
}

// Auditor records movement mutations for the audit trail. Best-effort.
type Auditor interface {
	Log(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// Service is the movement ledger engine. It owns the cross-cutting invariants:
// folio assignment, stock validation+mutation atomicity, and the post-commit
// prescription side effect.
type Service struct {
	repo          Repository
	meds          Directory
	prescriptions PrescriptionRecorder
	folios        FolioAllocator
	txManager     tx.Manager
	auditor       Auditor // optional
}

// NewService creates the ledger engine.
func NewService(
	repo Repository,
	meds Directory,
	prescriptions PrescriptionRecorder,
	folios FolioAllocator,
	txManager tx.Manager,
	auditor Auditor,
) *Service {
	return &Service{
		repo:          repo,
		meds:          meds,
		prescriptions: prescriptions,
		folios:        folios,
		txManager:     txManager,
		auditor:       auditor,
	}
}

// Create records a new movement: validates, allocates a folio, persists header
// and lines, and applies the stock deltas — all in one transaction. Either every
// line and every delta is visible, or none are.
func (s *Service) Create(ctx context.Context, m *Movement) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// Resolve medications, lock their rows, check stock, take snapshots.
		if err := s.stageLines(ctx, m.Kind, m.Lines); err != nil {
			return err
		}

		// Folio allocation joins this transaction: the counter row stays locked
		// until commit, so same-kind/year creations serialize and an aborted
		// create leaves no gap.
		if m.Folio == "" {
			f, err := s.folios.Next(ctx, m.Kind.FolioPrefix(), m.CreatedAt)
			if err != nil {
				return fmt.Errorf("allocate folio: %w", err)
			}
			m.Folio = f
		}

		if err := s.repo.Create(ctx, m); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}
		if err := s.repo.SaveLines(ctx, m.ID, m.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		return s.applyStockDeltas(ctx, m.Kind, m.Lines)
	})
	if err != nil {
		return err
	}

	// Hand back the stored representation rather than the staged one.
	stored, err := s.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	*m = *stored

	s.recordPrescriptions(ctx, m)
	s.audit(ctx, m.ID, "create", map[string]any{"folio": m.Folio, "kind": m.Kind, "lines": len(m.Lines)})

	logger.Info(ctx, "movement created",
		"id", m.ID,
		"folio", m.Folio,
		"kind", m.Kind,
		"lines", len(m.Lines),
	)
	return nil
}

// GetByID retrieves a movement with its lines.
func (s *Service) GetByID(ctx context.Context, movementID id.ID) (*Movement, error) {
	m, err := s.repo.GetByID(ctx, movementID)
	if err != nil {
		return nil, err
	}
	return s.attachLines(ctx, m)
}

// GetByFolio retrieves a movement with its lines by receipt number.
func (s *Service) GetByFolio(ctx context.Context, folio string) (*Movement, error) {
	m, err := s.repo.GetByFolio(ctx, folio)
	if err != nil {
		return nil, err
	}
	return s.attachLines(ctx, m)
}

func (s *Service) attachLines(ctx context.Context, m *Movement) (*Movement, error) {
	lines, err := s.repo.GetLines(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	m.Lines = lines
	return m, nil
}

// List retrieves movements matching the filter, newest first. Headers are
// fetched first, then lines for the whole page in batched queries.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Movement], error) {
	result, err := s.repo.List(ctx, filter)
	if err != nil {
		return result, err
	}
	if len(result.Items) == 0 {
		return result, nil
	}

	ids := make([]id.ID, len(result.Items))
	for i, m := range result.Items {
		ids[i] = m.ID
	}

	linesByMovement, err := s.repo.GetLinesByMovementIDs(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("get lines: %w", err)
	}
	for _, m := range result.Items {
		m.Lines = linesByMovement[m.ID]
	}

	return result, nil
}

// Update mutates the supplied header fields and, when newLines is non-nil,
// replaces the full line set. Line replacement is symmetric with Create: the
// old lines' stock deltas are reversed and the new lines' deltas validated and
// applied, all in the same transaction. Kind and Folio never change.
func (s *Service) Update(ctx context.Context, m *Movement, newLines []Line) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}
	if newLines != nil {
		if len(newLines) == 0 {
			return apperror.NewValidation("at least one line is required").
				WithDetail("field", "lines")
		}
		if err := validateLines(m.Kind, newLines); err != nil {
			return err
		}
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if newLines != nil {
			if err := s.reverseStockDeltas(ctx, m.Kind, m.Lines); err != nil {
				return err
			}
			if err := s.stageLines(ctx, m.Kind, newLines); err != nil {
				return err
			}
			m.Lines = newLines
		}

		m.Touch()
		if err := s.repo.Update(ctx, m); err != nil {
			return fmt.Errorf("update movement: %w", err)
		}

		if newLines != nil {
			if err := s.repo.SaveLines(ctx, m.ID, m.Lines); err != nil {
				return fmt.Errorf("save lines: %w", err)
			}
			if err := s.applyStockDeltas(ctx, m.Kind, m.Lines); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, m.ID, "update", map[string]any{"folio": m.Folio, "linesReplaced": newLines != nil})
	logger.Info(ctx, "movement updated", "id", m.ID, "folio", m.Folio)
	return nil
}

// Delete removes the movement and its lines, reversing the stock deltas that
// were applied at creation. The header is locked and the lines re-read inside
// the transaction, so a line replacement committing concurrently cannot make
// the reversal operate on a stale line set.
func (s *Service) Delete(ctx context.Context, movementID id.ID) error {
	var m *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.repo.GetByIDForUpdate(ctx, movementID)
		if err != nil {
			return err
		}
		m.Lines, err = s.repo.GetLines(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("get lines: %w", err)
		}

		if err := s.reverseStockDeltas(ctx, m.Kind, m.Lines); err != nil {
			return err
		}
		if err := s.repo.DeleteLines(ctx, m.ID); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}
		if err := s.repo.Delete(ctx, m.ID); err != nil {
			return fmt.Errorf("delete movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, m.ID, "delete", map[string]any{"folio": m.Folio, "kind": m.Kind})
	logger.Info(ctx, "movement deleted", "id", m.ID, "folio", m.Folio)
	return nil
}

// stageLines resolves each line's medication under a row lock, verifies
// outbound availability against the locked state, and fills the write-time
// snapshots. Must run inside the engine's transaction.
//
// A movement may spread one medication over several lines, so availability is
// checked against the running per-medication total, not each line in isolation.
func (s *Service) stageLines(ctx context.Context, kind Kind, lines []Line) error {
	requested := make(map[id.ID]int64)

	for i := range lines {
		line := &lines[i]

		var med *medication.Medication
		var err error
		if id.IsNil(line.MedicationID) {
			// Entry-by-name path; validateLines already rejected it for other kinds.
			unit := ""
			if line.Unit != nil {
				unit = *line.Unit
			}
			med, err = s.meds.ResolveOrCreate(ctx, *line.MedicationName, unit)
		} else {
			med, err = s.meds.GetForUpdate(ctx, line.MedicationID)
		}
		if err != nil {
			return err
		}
		line.MedicationID = med.ID

		if kind.Outbound() {
			requested[med.ID] += line.Quantity
			if med.Quantity < requested[med.ID] {
				return apperror.NewInsufficientStock(med.Name, requested[med.ID], med.Quantity)
			}
		}

		// Snapshots: prefer the caller-supplied name/unit, fall back to the
		// medication's current values.
		if line.MedicationName == nil || *line.MedicationName == "" {
			name := med.Name
			line.MedicationName = &name
		}
		if line.Unit == nil || *line.Unit == "" {
			if med.Unit != "" {
				unit := med.Unit
				line.Unit = &unit
			}
		}

		// The recorded expiry date is always the medication's current one.
		if kind == KindExpiry {
			line.ExpiryDate = med.ExpiresAt
		}
	}
	return nil
}

// applyStockDeltas applies each line's signed delta for the kind.
func (s *Service) applyStockDeltas(ctx context.Context, kind Kind, lines []Line) error {
	for i := range lines {
		line := &lines[i]
		if err := s.meds.AdjustQuantity(ctx, line.MedicationID, kind.StockSign()*line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// reverseStockDeltas undoes the deltas a line set applied at creation.
// Reversing an entry removes stock, so availability is validated first like
// stageLines does for outbound lines: per-medication totals, rows locked.
func (s *Service) reverseStockDeltas(ctx context.Context, kind Kind, lines []Line) error {
	if !kind.Outbound() {
		removed := make(map[id.ID]int64)
		for i := range lines {
			line := &lines[i]
			med, err := s.meds.GetForUpdate(ctx, line.MedicationID)
			if err != nil {
				return err
			}
			removed[med.ID] += line.Quantity
			if med.Quantity < removed[med.ID] {
				return apperror.NewInsufficientStock(med.Name, removed[med.ID], med.Quantity)
			}
		}
	}

	for i := range lines {
		line := &lines[i]
		if err := s.meds.AdjustQuantity(ctx, line.MedicationID, -kind.StockSign()*line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// recordPrescriptions emits prescription records for exit lines carrying both
// dosage and frequency. Runs after the movement transaction committed; failures
// are logged and never propagated.
func (s *Service) recordPrescriptions(ctx context.Context, m *Movement) {
	if m.Kind != KindExit || m.PatientID == nil || s.prescriptions == nil {
		return
	}

	for i := range m.Lines {
		line := &m.Lines[i]
		if !line.HasPrescription() {
			continue
		}

		err := s.prescriptions.Record(ctx, *m.PatientID, line.MedicationID,
			*line.RecommendedDosage, *line.Frequency, line.Quantity)
		if err != nil {
			logger.Error(ctx, "prescription recording failed",
				"movement_id", m.ID,
				"patient_id", *m.PatientID,
				"medication_id", line.MedicationID,
				"error", err,
			)
		}
	}
}

func (s *Service) audit(ctx context.Context, movementID id.ID, action string, changes map[string]any) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(ctx, "movement", movementID, action, changes); err != nil {
		logger.Warn(ctx, "audit logging failed", "movement_id", movementID, "action", action, "error", err)
	}
}

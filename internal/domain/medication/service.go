package medication

import (
	"context"
	"fmt"
	"strings"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/core/tx"
	"botiquin/internal/domain"
	"botiquin/pkg/logger"
)

// Service provides directory operations and the stock mutation path.
//
// Directory CRUD runs in its own transactions. The mutation methods
// (GetForUpdate, ResolveOrCreate, AdjustQuantity) are meant to be called by the
// ledger engine inside the engine's transaction: they do not open one themselves.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new medication service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// --- Directory CRUD ---

// Create registers a new medication.
func (s *Service) Create(ctx context.Context, med *Medication) error {
	if err := med.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, med); err != nil {
			return fmt.Errorf("create medication: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a medication.
func (s *Service) GetByID(ctx context.Context, medID id.ID) (*Medication, error) {
	return s.repo.GetByID(ctx, medID)
}

// Update modifies a medication, including direct administrative quantity edits.
func (s *Service) Update(ctx context.Context, med *Medication) error {
	if err := med.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, med); err != nil {
			return fmt.Errorf("update medication: %w", err)
		}
		return nil
	})
}

// Delete soft-deletes a medication. Ledger lines keep their name/unit snapshots,
// so history stays readable.
func (s *Service) Delete(ctx context.Context, medID id.ID) error {
	if _, err := s.repo.GetByID(ctx, medID); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetDeletionMark(ctx, medID, true)
	})
}

// List retrieves medications with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Medication], error) {
	return s.repo.List(ctx, filter)
}

// --- Stock mutation path (called within the ledger's transaction) ---

// GetForUpdate returns the medication with its row locked until the surrounding
// transaction commits.
func (s *Service) GetForUpdate(ctx context.Context, medID id.ID) (*Medication, error) {
	med, err := s.repo.GetByIDForUpdate(ctx, medID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("medication", medID.String())
		}
		return nil, err
	}
	return med, nil
}

// ResolveOrCreate finds a medication by case-insensitive exact name match,
// locking the row; if none exists it creates one with quantity 0.
// This is the entry-only path for movements that introduce a medication by name.
func (s *Service) ResolveOrCreate(ctx context.Context, name, unit string) (*Medication, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidation("medication name is required")
	}

	med, err := s.repo.GetByNameForUpdate(ctx, name)
	if err == nil {
		return med, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	med = New(name, unit)
	if err := med.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, med); err != nil {
		return nil, fmt.Errorf("create medication %q: %w", name, err)
	}

	logger.Info(ctx, "medication created from movement entry", "id", med.ID, "name", med.Name)
	return med, nil
}

// AdjustQuantity applies a signed delta to the on-hand quantity.
// Callers must have validated outbound deltas against a locked row first.
func (s *Service) AdjustQuantity(ctx context.Context, medID id.ID, delta int64) error {
	if delta == 0 {
		return nil
	}
	if err := s.repo.AdjustQuantity(ctx, medID, delta); err != nil {
		return fmt.Errorf("adjust quantity of %s by %d: %w", medID, delta, err)
	}
	return nil
}

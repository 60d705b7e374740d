package patient

import (
	"context"
	"fmt"

	"botiquin/internal/core/id"
	"botiquin/internal/core/tx"
	"botiquin/internal/domain"
	"botiquin/pkg/logger"
)

// Service provides patient directory operations.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new patient service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// Create admits a new patient.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "patient admitted", "id", p.ID, "name", p.FullName)
	return nil
}

// GetByID retrieves a patient.
func (s *Service) GetByID(ctx context.Context, patientID id.ID) (*Patient, error) {
	return s.repo.GetByID(ctx, patientID)
}

// Update modifies a patient record.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update patient: %w", err)
		}
		return nil
	})
}

// Delete soft-deletes a patient (discharge). Movement history keeps the reference.
func (s *Service) Delete(ctx context.Context, patientID id.ID) error {
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetDeletionMark(ctx, patientID, true)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "patient discharged", "id", patientID)
	return nil
}

// List retrieves patients with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Patient], error) {
	return s.repo.List(ctx, filter)
}

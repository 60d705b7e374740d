package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/domain"
	"botiquin/internal/domain/patient"
)

// PatientRepo is the PostgreSQL patient repository.
type PatientRepo struct {
	txManager  *TxManager
	selectCols []string
}

var _ patient.Repository = (*PatientRepo)(nil)

// NewPatientRepo creates a new patient repository.
func NewPatientRepo(txManager *TxManager) *PatientRepo {
	return &PatientRepo{
		txManager:  txManager,
		selectCols: ExtractDBColumns[patient.Patient](),
	}
}

func (r *PatientRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a patient.
func (r *PatientRepo) Create(ctx context.Context, p *patient.Patient) error {
	sql, args, err := r.builder().Insert("patients").SetMap(StructToMap(p)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// GetByID retrieves a patient by id, including soft-deleted records.
func (r *PatientRepo) GetByID(ctx context.Context, patientID id.ID) (*patient.Patient, error) {
	sql, args, err := r.builder().
		Select(r.selectCols...).
		From("patients").
		Where(squirrel.Eq{"id": patientID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	p := &patient.Patient{}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("patient", patientID.String())
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

// Update modifies a patient with optimistic locking.
func (r *PatientRepo) Update(ctx context.Context, p *patient.Patient) error {
	data := StructToMap(p)
	delete(data, "id")
	delete(data, "version")

	sql, args, err := r.builder().
		Update("patients").
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID}).
		Where(squirrel.Eq{"version": p.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("patient", p.ID)
	}

	p.SetVersion(p.Version + 1)
	return nil
}

// SetDeletionMark toggles the soft-delete mark.
func (r *PatientRepo) SetDeletionMark(ctx context.Context, patientID id.ID, deleted bool) error {
	sql, args, err := r.builder().
		Update("patients").
		Set("deletion_mark", deleted).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": patientID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark patient: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("patient", patientID.String())
	}
	return nil
}

// List retrieves patients matching the filter, ordered by name.
func (r *PatientRepo) List(ctx context.Context, filter patient.ListFilter) (domain.ListResult[*patient.Patient], error) {
	result := domain.ListResult[*patient.Patient]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if result.Limit <= 0 {
		result.Limit = domain.DefaultLimit
	}

	q := r.builder().Select(r.selectCols...).From("patients")

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"full_name": pattern},
			squirrel.ILike{"room": pattern},
		})
	}

	countSQL, countArgs, err := r.builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count patients: %w", err)
	}

	sql, args, err := q.OrderBy("full_name ASC").
		Limit(uint64(result.Limit)).
		Offset(uint64(result.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list patients: %w", err)
	}
	return result, nil
}

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/domain"
	"botiquin/internal/domain/medication"
)

// MedicationRepo is the PostgreSQL medication repository.
type MedicationRepo struct {
	txManager  *TxManager
	selectCols []string
}

var _ medication.Repository = (*MedicationRepo)(nil)

// NewMedicationRepo creates a new medication repository.
func NewMedicationRepo(txManager *TxManager) *MedicationRepo {
	return &MedicationRepo{
		txManager:  txManager,
		selectCols: ExtractDBColumns[medication.Medication](),
	}
}

func (r *MedicationRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *MedicationRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.selectCols...).From("medications")
}

// Create inserts a new medication.
func (r *MedicationRepo) Create(ctx context.Context, med *medication.Medication) error {
	data := StructToMap(med)

	sql, args, err := r.builder().Insert("medications").SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("medication", "name", med.Name)
		}
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

// GetByID retrieves a medication by id.
func (r *MedicationRepo) GetByID(ctx context.Context, medID id.ID) (*medication.Medication, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": medID}), medID.String())
}

// GetByIDForUpdate retrieves a medication with a row lock.
func (r *MedicationRepo) GetByIDForUpdate(ctx context.Context, medID id.ID) (*medication.Medication, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": medID}).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, q, medID.String())
}

// GetByNameForUpdate retrieves a non-deleted medication by case-insensitive
// exact name match, with a row lock.
func (r *MedicationRepo) GetByNameForUpdate(ctx context.Context, name string) (*medication.Medication, error) {
	q := r.baseSelect().
		Where(squirrel.Expr("LOWER(name) = LOWER(?)", strings.TrimSpace(name))).
		Where(squirrel.Eq{"deletion_mark": false}).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, q, name)
}

func (r *MedicationRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*medication.Medication, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	med := &medication.Medication{}
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, med, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("medication", key)
		}
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return med, nil
}

// Update modifies a medication with optimistic locking.
func (r *MedicationRepo) Update(ctx context.Context, med *medication.Medication) error {
	data := StructToMap(med)
	delete(data, "id")
	delete(data, "version")

	sql, args, err := r.builder().
		Update("medications").
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": med.ID}).
		Where(squirrel.Eq{"version": med.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("medication", "name", med.Name)
		}
		return fmt.Errorf("update medication: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("medication", med.ID)
	}

	med.SetVersion(med.Version + 1)
	return nil
}

// SetDeletionMark toggles the soft-delete mark.
func (r *MedicationRepo) SetDeletionMark(ctx context.Context, medID id.ID, marked bool) error {
	sql, args, err := r.builder().
		Update("medications").
		Set("deletion_mark", marked).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": medID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark medication: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("medication", medID.String())
	}
	return nil
}

// AdjustQuantity applies a signed delta to the on-hand quantity. The CHECK
// constraint on quantity backstops validation the ledger did under its lock.
func (r *MedicationRepo) AdjustQuantity(ctx context.Context, medID id.ID, delta int64) error {
	sql, args, err := r.builder().
		Update("medications").
		Set("quantity", squirrel.Expr("quantity + ?", delta)).
		Where(squirrel.Eq{"id": medID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("adjust quantity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("medication", medID.String())
	}
	return nil
}

// List retrieves medications with filtering and pagination.
func (r *MedicationRepo) List(ctx context.Context, filter medication.ListFilter) (domain.ListResult[*medication.Medication], error) {
	result := domain.ListResult[*medication.Medication]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if result.Limit <= 0 {
		result.Limit = domain.DefaultLimit
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}
	if filter.ExpiringBefore != nil {
		q = q.Where(squirrel.Lt{"expires_at": *filter.ExpiringBefore})
	}

	countSQL, countArgs, err := r.builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count medications: %w", err)
	}

	orderBy, err := parseOrderBy(filter.OrderBy, r.selectCols, "name ASC")
	if err != nil {
		return result, err
	}

	sql, args, err := q.OrderBy(orderBy).
		Limit(uint64(result.Limit)).
		Offset(uint64(result.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list medications: %w", err)
	}
	return result, nil
}

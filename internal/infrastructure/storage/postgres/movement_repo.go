package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/domain"
	"botiquin/internal/domain/ledger"
)

// lineBatchSize bounds the id list per lines query when loading a page of
// movements.
const lineBatchSize = 100

// lineSelectCols reads the snapshot name/unit with a live-join fallback:
// old rows written before snapshots existed still render, and a renamed
// medication does not rewrite history.
const lineSelectCols = `
	l.line_id, l.movement_id, l.line_no, l.medication_id, l.quantity,
	l.recommended_dosage, l.frequency, l.expiry_date,
	COALESCE(l.medication_name, m.name) AS medication_name,
	COALESCE(l.unit, NULLIF(m.unit, '')) AS unit`

// MovementRepo is the PostgreSQL movement repository.
type MovementRepo struct {
	txManager  *TxManager
	selectCols []string
}

var _ ledger.Repository = (*MovementRepo)(nil)

// NewMovementRepo creates a new movement repository.
func NewMovementRepo(txManager *TxManager) *MovementRepo {
	return &MovementRepo{
		txManager:  txManager,
		selectCols: ExtractDBColumns[ledger.Movement](),
	}
}

func (r *MovementRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *MovementRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.selectCols...).From("movements")
}

// Create inserts a movement header.
func (r *MovementRepo) Create(ctx context.Context, m *ledger.Movement) error {
	data := StructToMap(m)

	sql, args, err := r.builder().Insert("movements").SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("movement", "folio", m.Folio)
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// Update modifies a movement header with optimistic locking. Folio and kind
// are immutable and excluded from the update.
func (r *MovementRepo) Update(ctx context.Context, m *ledger.Movement) error {
	data := StructToMap(m)
	delete(data, "id")
	delete(data, "version")
	delete(data, "folio")
	delete(data, "kind")
	delete(data, "created_at")

	sql, args, err := r.builder().
		Update("movements").
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": m.ID}).
		Where(squirrel.Eq{"version": m.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("movement", m.ID)
	}

	m.SetVersion(m.Version + 1)
	return nil
}

// Delete hard-deletes a movement header. Lines go with it via ON DELETE CASCADE,
// but the engine deletes them explicitly first so the intent is visible.
func (r *MovementRepo) Delete(ctx context.Context, movementID id.ID) error {
	sql, args, err := r.builder().
		Delete("movements").
		Where(squirrel.Eq{"id": movementID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("movement", movementID.String())
	}
	return nil
}

// GetByID retrieves a movement header by id.
func (r *MovementRepo) GetByID(ctx context.Context, movementID id.ID) (*ledger.Movement, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": movementID}), movementID.String())
}

// GetByIDForUpdate retrieves a movement header by id with a row lock.
func (r *MovementRepo) GetByIDForUpdate(ctx context.Context, movementID id.ID) (*ledger.Movement, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": movementID}).Suffix("FOR UPDATE"), movementID.String())
}

// GetByFolio retrieves a movement header by receipt number.
func (r *MovementRepo) GetByFolio(ctx context.Context, folio string) (*ledger.Movement, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"folio": folio}), folio)
}

func (r *MovementRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*ledger.Movement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	m := &ledger.Movement{}
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("movement", key)
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return m, nil
}

// lineRow is the scan target for line queries; movement_id is needed for
// grouping but is not part of the domain Line.
type lineRow struct {
	ledger.Line
	MovementID id.ID `db:"movement_id"`
}

// GetLines retrieves a movement's lines in display order.
func (r *MovementRepo) GetLines(ctx context.Context, movementID id.ID) ([]ledger.Line, error) {
	sql := `
		SELECT` + lineSelectCols + `
		FROM movement_lines l
		LEFT JOIN medications m ON m.id = l.medication_id
		WHERE l.movement_id = $1
		ORDER BY l.line_no
	`

	var rows []lineRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, movementID); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}

	lines := make([]ledger.Line, len(rows))
	for i, row := range rows {
		lines[i] = row.Line
	}
	return lines, nil
}

// GetLinesByMovementIDs retrieves lines for many movements at once, chunking
// the id list so a large page never produces an unbounded IN clause.
func (r *MovementRepo) GetLinesByMovementIDs(ctx context.Context, movementIDs []id.ID) (map[id.ID][]ledger.Line, error) {
	out := make(map[id.ID][]ledger.Line, len(movementIDs))

	sql := `
		SELECT` + lineSelectCols + `
		FROM movement_lines l
		LEFT JOIN medications m ON m.id = l.medication_id
		WHERE l.movement_id = ANY($1)
		ORDER BY l.movement_id, l.line_no
	`

	querier := r.txManager.GetQuerier(ctx)
	for _, batch := range chunkIDs(movementIDs, lineBatchSize) {
		var rows []lineRow
		if err := pgxscan.Select(ctx, querier, &rows, sql, batch); err != nil {
			return nil, fmt.Errorf("select lines: %w", err)
		}
		for _, row := range rows {
			out[row.MovementID] = append(out[row.MovementID], row.Line)
		}
	}
	return out, nil
}

// SaveLines replaces a movement's line set.
func (r *MovementRepo) SaveLines(ctx context.Context, movementID id.ID, lines []ledger.Line) error {
	if err := r.DeleteLines(ctx, movementID); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	q := r.builder().Insert("movement_lines").Columns(
		"line_id", "movement_id", "line_no", "medication_id", "quantity",
		"recommended_dosage", "frequency", "expiry_date", "medication_name", "unit",
	)
	for _, l := range lines {
		q = q.Values(
			l.LineID, movementID, l.LineNo, l.MedicationID, l.Quantity,
			l.RecommendedDosage, l.Frequency, l.ExpiryDate, l.MedicationName, l.Unit,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// DeleteLines removes a movement's lines.
func (r *MovementRepo) DeleteLines(ctx context.Context, movementID id.ID) error {
	sql, args, err := r.builder().
		Delete("movement_lines").
		Where(squirrel.Eq{"movement_id": movementID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}
	return nil
}

// List retrieves movement headers matching the filter, newest first.
func (r *MovementRepo) List(ctx context.Context, filter ledger.ListFilter) (domain.ListResult[*ledger.Movement], error) {
	result := domain.ListResult[*ledger.Movement]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if result.Limit <= 0 {
		result.Limit = domain.DefaultLimit
	}

	q := r.baseSelect()

	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.PatientID != nil {
		q = q.Where(squirrel.Eq{"patient_id": *filter.PatientID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.DateTo})
	}

	countSQL, countArgs, err := r.builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count movements: %w", err)
	}

	sql, args, err := q.OrderBy("created_at DESC").
		Limit(uint64(result.Limit)).
		Offset(uint64(result.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}
	return result, nil
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []id.ID, size int) [][]id.ID {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	chunks := make([][]id.ID, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

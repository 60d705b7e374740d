package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/domain"
	"botiquin/internal/domain/medication"
)

// fakeTxManager runs the function directly. A failed function marks the
// "transaction" rolled back so tests can assert nothing leaked.
type fakeTxManager struct {
	rollbacks int
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		m.rollbacks++
		return err
	}
	return nil
}

// fakeDirectory is an in-memory medication directory. It journals quantity
// adjustments so a test can undo them when the transaction "rolls back".
type fakeDirectory struct {
	meds    map[id.ID]*medication.Medication
	journal []func()
	created []string
}

func newFakeDirectory(meds ...*medication.Medication) *fakeDirectory {
	d := &fakeDirectory{meds: make(map[id.ID]*medication.Medication)}
	for _, m := range meds {
		d.meds[m.ID] = m
	}
	return d
}

func (d *fakeDirectory) GetForUpdate(_ context.Context, medID id.ID) (*medication.Medication, error) {
	med, ok := d.meds[medID]
	if !ok {
		return nil, apperror.NewNotFound("medication", medID.String())
	}
	return med, nil
}

func (d *fakeDirectory) ResolveOrCreate(_ context.Context, name, unit string) (*medication.Medication, error) {
	for _, med := range d.meds {
		if strings.EqualFold(med.Name, name) {
			return med, nil
		}
	}
	med := medication.New(name, unit)
	d.meds[med.ID] = med
	d.created = append(d.created, med.Name)
	return med, nil
}

func (d *fakeDirectory) AdjustQuantity(_ context.Context, medID id.ID, delta int64) error {
	med, ok := d.meds[medID]
	if !ok {
		return apperror.NewNotFound("medication", medID.String())
	}
	med.Quantity += delta
	d.journal = append(d.journal, func() { med.Quantity -= delta })
	return nil
}

func (d *fakeDirectory) undo() {
	for i := len(d.journal) - 1; i >= 0; i-- {
		d.journal[i]()
	}
	d.journal = nil
}

// fakeRepo stores movements and lines in memory.
type fakeRepo struct {
	movements map[id.ID]*Movement
	lines     map[id.ID][]Line

	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		movements: make(map[id.ID]*Movement),
		lines:     make(map[id.ID][]Line),
	}
}

func (r *fakeRepo) Create(_ context.Context, m *Movement) error {
	if r.createErr != nil {
		return r.createErr
	}
	clone := *m
	r.movements[m.ID] = &clone
	return nil
}

func (r *fakeRepo) Update(_ context.Context, m *Movement) error {
	if _, ok := r.movements[m.ID]; !ok {
		return apperror.NewNotFound("movement", m.ID.String())
	}
	clone := *m
	r.movements[m.ID] = &clone
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, movementID id.ID) error {
	delete(r.movements, movementID)
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, movementID id.ID) (*Movement, error) {
	m, ok := r.movements[movementID]
	if !ok {
		return nil, apperror.NewNotFound("movement", movementID.String())
	}
	clone := *m
	clone.Lines = nil
	return &clone, nil
}

func (r *fakeRepo) GetByIDForUpdate(ctx context.Context, movementID id.ID) (*Movement, error) {
	return r.GetByID(ctx, movementID)
}

func (r *fakeRepo) GetByFolio(_ context.Context, folio string) (*Movement, error) {
	for _, m := range r.movements {
		if m.Folio == folio {
			clone := *m
			clone.Lines = nil
			return &clone, nil
		}
	}
	return nil, apperror.NewNotFound("movement", folio)
}

func (r *fakeRepo) GetLines(_ context.Context, movementID id.ID) ([]Line, error) {
	return r.lines[movementID], nil
}

func (r *fakeRepo) GetLinesByMovementIDs(_ context.Context, movementIDs []id.ID) (map[id.ID][]Line, error) {
	out := make(map[id.ID][]Line)
	for _, mid := range movementIDs {
		if lines, ok := r.lines[mid]; ok {
			out[mid] = lines
		}
	}
	return out, nil
}

func (r *fakeRepo) SaveLines(_ context.Context, movementID id.ID, lines []Line) error {
	r.lines[movementID] = append([]Line(nil), lines...)
	return nil
}

func (r *fakeRepo) DeleteLines(_ context.Context, movementID id.ID) error {
	delete(r.lines, movementID)
	return nil
}

func (r *fakeRepo) List(_ context.Context, filter ListFilter) (domain.ListResult[*Movement], error) {
	var items []*Movement
	for _, m := range r.movements {
		if filter.Kind != nil && m.Kind != *filter.Kind {
			continue
		}
		clone := *m
		clone.Lines = nil
		items = append(items, &clone)
	}
	return domain.ListResult[*Movement]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// fakeFolios hands out sequential folios per prefix.
type fakeFolios struct {
	seq map[string]int64
}

func (f *fakeFolios) Next(_ context.Context, prefix string, period time.Time) (string, error) {
	if f.seq == nil {
		f.seq = make(map[string]int64)
	}
	f.seq[prefix]++
	return fmt.Sprintf("%s-%d-%04d", prefix, period.Year(), f.seq[prefix]), nil
}

type recordedPrescription struct {
	patientID    id.ID
	medicationID id.ID
	dosage       string
	frequency    string
	quantity     int64
}

type fakeRecorder struct {
	records []recordedPrescription
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, patientID, medicationID id.ID, dosage, frequency string, quantity int64) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, recordedPrescription{patientID, medicationID, dosage, frequency, quantity})
	return nil
}

type testEnv struct {
	svc      *Service
	repo     *fakeRepo
	dir      *fakeDirectory
	recorder *fakeRecorder
	txm      *fakeTxManager
}

func newTestEnv(meds ...*medication.Medication) *testEnv {
	env := &testEnv{
		repo:     newFakeRepo(),
		dir:      newFakeDirectory(meds...),
		recorder: &fakeRecorder{},
		txm:      &fakeTxManager{},
	}
	env.svc = NewService(env.repo, env.dir, env.recorder, &fakeFolios{}, env.txm, nil)
	return env
}

func stockedMedication(name string, quantity int64) *medication.Medication {
	med := medication.New(name, "tabletas")
	med.Quantity = quantity
	return med
}

func TestCreateEntry(t *testing.T) {
	ctx := context.Background()
	paracetamol := stockedMedication("Paracetamol", 10)
	env := newTestEnv(paracetamol)

	m := NewMovement(KindEntry, nil)
	m.AddLine(paracetamol.ID, 5)

	require.NoError(t, env.svc.Create(ctx, m))

	assert.Equal(t, int64(15), paracetamol.Quantity)
	assert.Equal(t, fmt.Sprintf("E-%d-0001", m.CreatedAt.Year()), m.Folio)

	stored, err := env.svc.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	require.NotNil(t, stored.Lines[0].MedicationName)
	assert.Equal(t, "Paracetamol", *stored.Lines[0].MedicationName)
}

func TestCreateEntryByNameCreatesMedication(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	m := NewMovement(KindEntry, nil)
	m.AddLineByName("Ibuprofeno", "tabletas", 20)

	require.NoError(t, env.svc.Create(ctx, m))

	require.Equal(t, []string{"Ibuprofeno"}, env.dir.created)
	med, err := env.dir.GetForUpdate(ctx, m.Lines[0].MedicationID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), med.Quantity)
}

func TestCreateEntryByNameReusesExisting(t *testing.T) {
	ctx := context.Background()
	existing := stockedMedication("Paracetamol", 3)
	env := newTestEnv(existing)

	m := NewMovement(KindEntry, nil)
	m.AddLineByName("paracetamol", "", 7)

	require.NoError(t, env.svc.Create(ctx, m))

	assert.Empty(t, env.dir.created)
	assert.Equal(t, existing.ID, m.Lines[0].MedicationID)
	assert.Equal(t, int64(10), existing.Quantity)
}

func TestCreateExitDecrementsStock(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Omeprazol", 8)
	env := newTestEnv(med)
	patientID := id.New()

	m := NewMovement(KindExit, &patientID)
	m.AddLine(med.ID, 3)

	require.NoError(t, env.svc.Create(ctx, m))

	assert.Equal(t, int64(5), med.Quantity)
	assert.True(t, strings.HasPrefix(m.Folio, "S-"))
}

func TestCreateExitInsufficientStock(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Omeprazol", 2)
	env := newTestEnv(med)
	patientID := id.New()

	m := NewMovement(KindExit, &patientID)
	m.AddLine(med.ID, 5)

	err := env.svc.Create(ctx, m)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Omeprazol", appErr.Details["medication"])
	assert.Equal(t, int64(5), appErr.Details["requested"])
	assert.Equal(t, int64(2), appErr.Details["available"])

	// Nothing persisted, transaction rolled back.
	assert.Equal(t, 1, env.txm.rollbacks)
	assert.Empty(t, env.repo.movements)
	assert.Empty(t, m.Folio)
}

func TestCreateExitSumsLinesPerMedication(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Omeprazol", 10)
	env := newTestEnv(med)
	patientID := id.New()

	// Each line fits on its own; together they exceed the on-hand quantity.
	m := NewMovement(KindExit, &patientID)
	m.AddLine(med.ID, 8)
	m.AddLine(med.ID, 8)

	err := env.svc.Create(ctx, m)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(16), appErr.Details["requested"])
	assert.Equal(t, int64(10), appErr.Details["available"])

	assert.Equal(t, 1, env.txm.rollbacks)
	env.dir.undo()
	assert.Equal(t, int64(10), med.Quantity)
	assert.Empty(t, m.Folio)
}

func TestCreateExitSplitAcrossLinesWithinStock(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Omeprazol", 10)
	env := newTestEnv(med)
	patientID := id.New()

	m := NewMovement(KindExit, &patientID)
	m.AddLine(med.ID, 6)
	m.AddLine(med.ID, 4)

	require.NoError(t, env.svc.Create(ctx, m))
	assert.Equal(t, int64(0), med.Quantity)
}

func TestCreateMultiLineFailsAtomically(t *testing.T) {
	ctx := context.Background()
	plenty := stockedMedication("Paracetamol", 100)
	scarce := stockedMedication("Insulina", 1)
	env := newTestEnv(plenty, scarce)
	patientID := id.New()

	m := NewMovement(KindExit, &patientID)
	m.AddLine(plenty.ID, 10)
	m.AddLine(scarce.ID, 5)

	err := env.svc.Create(ctx, m)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	env.dir.undo()
	assert.Equal(t, int64(100), plenty.Quantity)
	assert.Equal(t, int64(1), scarce.Quantity)
}

func TestCreateExitRequiresPatient(t *testing.T) {
	env := newTestEnv()

	m := NewMovement(KindExit, nil)
	m.AddLine(id.New(), 1)

	err := env.svc.Create(context.Background(), m)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestCreateRejectsEmptyLines(t *testing.T) {
	env := newTestEnv()

	m := NewMovement(KindEntry, nil)

	err := env.svc.Create(context.Background(), m)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestCreateExpirySnapshotsExpiryDate(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC)
	med := stockedMedication("Amoxicilina", 12)
	med.ExpiresAt = &expires
	env := newTestEnv(med)

	m := NewMovement(KindExpiry, nil)
	line := m.AddLine(med.ID, 12)
	callerSupplied := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	line.ExpiryDate = &callerSupplied

	require.NoError(t, env.svc.Create(ctx, m))

	require.NotNil(t, m.Lines[0].ExpiryDate)
	assert.Equal(t, expires, *m.Lines[0].ExpiryDate)
	assert.Equal(t, int64(0), med.Quantity)
	assert.True(t, strings.HasPrefix(m.Folio, "C-"))
}

func TestCreateRecordsPrescriptions(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Losartán", 30)
	env := newTestEnv(med)
	patientID := id.New()

	m := NewMovement(KindExit, &patientID)
	withPrescription := m.AddLine(med.ID, 14)
	dosage, freq := "50mg", "cada 12 horas"
	withPrescription.RecommendedDosage = &dosage
	withPrescription.Frequency = &freq
	m.AddLine(med.ID, 2) // no dosage/frequency, no prescription

	require.NoError(t, env.svc.Create(ctx, m))

	require.Len(t, env.recorder.records, 1)
	rec := env.recorder.records[0]
	assert.Equal(t, patientID, rec.patientID)
	assert.Equal(t, med.ID, rec.medicationID)
	assert.Equal(t, "50mg", rec.dosage)
	assert.Equal(t, "cada 12 horas", rec.frequency)
	assert.Equal(t, int64(14), rec.quantity)
}

func TestCreateSucceedsWhenRecorderFails(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Losartán", 30)
	env := newTestEnv(med)
	env.recorder.err = errors.New("recorder down")
	patientID := id.New()

	m := NewMovement(KindExit, &patientID)
	line := m.AddLine(med.ID, 1)
	dosage, freq := "50mg", "diario"
	line.RecommendedDosage = &dosage
	line.Frequency = &freq

	require.NoError(t, env.svc.Create(ctx, m))
	assert.Equal(t, int64(29), med.Quantity)
	assert.NotEmpty(t, env.repo.movements)
}

func TestCreateRollsBackFolioOnRepoError(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Paracetamol", 10)
	env := newTestEnv(med)
	env.repo.createErr = errors.New("db down")

	m := NewMovement(KindEntry, nil)
	m.AddLine(med.ID, 5)

	err := env.svc.Create(ctx, m)
	require.Error(t, err)
	assert.Equal(t, 1, env.txm.rollbacks)

	env.dir.undo()
	assert.Equal(t, int64(10), med.Quantity)
}

func TestUpdateReplacesLinesSymmetrically(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Metformina", 50)
	env := newTestEnv(med)
	patientID := id.New()

	m := NewMovement(KindExit, &patientID)
	m.AddLine(med.ID, 10)
	require.NoError(t, env.svc.Create(ctx, m))
	require.Equal(t, int64(40), med.Quantity)

	stored, err := env.svc.GetByID(ctx, m.ID)
	require.NoError(t, err)

	newLines := []Line{{
		LineID:       id.New(),
		LineNo:       1,
		MedicationID: med.ID,
		Quantity:     25,
	}}
	require.NoError(t, env.svc.Update(ctx, stored, newLines))

	// Old delta (-10) reversed, new delta (-25) applied.
	assert.Equal(t, int64(25), med.Quantity)

	reloaded, err := env.svc.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Lines, 1)
	assert.Equal(t, int64(25), reloaded.Lines[0].Quantity)
	assert.Equal(t, m.Folio, reloaded.Folio)
}

func TestUpdateHeaderOnlyLeavesStockAlone(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Metformina", 50)
	env := newTestEnv(med)

	m := NewMovement(KindEntry, nil)
	m.AddLine(med.ID, 10)
	require.NoError(t, env.svc.Create(ctx, m))

	stored, err := env.svc.GetByID(ctx, m.ID)
	require.NoError(t, err)
	stored.Comment = "donación"
	stored.Status = StatusIncomplete
	require.NoError(t, env.svc.Update(ctx, stored, nil))

	assert.Equal(t, int64(60), med.Quantity)
	reloaded, err := env.svc.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "donación", reloaded.Comment)
	assert.Equal(t, StatusIncomplete, reloaded.Status)
	require.Len(t, reloaded.Lines, 1)
}

func TestUpdateRejectsEmptyReplacementLines(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Metformina", 50)
	env := newTestEnv(med)

	m := NewMovement(KindEntry, nil)
	m.AddLine(med.ID, 10)
	require.NoError(t, env.svc.Create(ctx, m))

	stored, err := env.svc.GetByID(ctx, m.ID)
	require.NoError(t, err)
	stored.Lines, err = env.repo.GetLines(ctx, m.ID)
	require.NoError(t, err)

	err = env.svc.Update(ctx, stored, []Line{})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, int64(60), med.Quantity)
}

func TestDeleteReversesStock(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Paracetamol", 10)
	env := newTestEnv(med)
	patientID := id.New()

	m := NewMovement(KindExit, &patientID)
	m.AddLine(med.ID, 4)
	require.NoError(t, env.svc.Create(ctx, m))
	require.Equal(t, int64(6), med.Quantity)

	require.NoError(t, env.svc.Delete(ctx, m.ID))

	assert.Equal(t, int64(10), med.Quantity)
	_, err := env.svc.GetByID(ctx, m.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteEntryRequiresRemainingStock(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Paracetamol", 0)
	env := newTestEnv(med)

	entry := NewMovement(KindEntry, nil)
	entry.AddLine(med.ID, 10)
	require.NoError(t, env.svc.Create(ctx, entry))
	require.Equal(t, int64(10), med.Quantity)

	// Dispense most of the entered stock.
	patientID := id.New()
	exit := NewMovement(KindExit, &patientID)
	exit.AddLine(med.ID, 8)
	require.NoError(t, env.svc.Create(ctx, exit))
	require.Equal(t, int64(2), med.Quantity)

	// Removing the entry would drive stock negative.
	err := env.svc.Delete(ctx, entry.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestDeleteEntrySumsLinesPerMedication(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Paracetamol", 0)
	env := newTestEnv(med)

	entry := NewMovement(KindEntry, nil)
	entry.AddLine(med.ID, 8)
	entry.AddLine(med.ID, 8)
	require.NoError(t, env.svc.Create(ctx, entry))
	require.Equal(t, int64(16), med.Quantity)

	patientID := id.New()
	exit := NewMovement(KindExit, &patientID)
	exit.AddLine(med.ID, 6)
	require.NoError(t, env.svc.Create(ctx, exit))
	require.Equal(t, int64(10), med.Quantity)

	// Reversing the entry needs 16 back out; only 10 remain.
	err := env.svc.Delete(ctx, entry.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(16), appErr.Details["requested"])
	assert.Equal(t, int64(10), appErr.Details["available"])
}

func TestDeleteReversesCurrentLines(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Paracetamol", 10)
	env := newTestEnv(med)
	patientID := id.New()

	m := NewMovement(KindExit, &patientID)
	m.AddLine(med.ID, 4)
	require.NoError(t, env.svc.Create(ctx, m))
	require.Equal(t, int64(6), med.Quantity)

	// A line replacement commits before the delete runs: the stored line set
	// is now 2 units and stock reflects that.
	env.repo.lines[m.ID] = []Line{{
		LineID:       id.New(),
		LineNo:       1,
		MedicationID: med.ID,
		Quantity:     2,
	}}
	med.Quantity = 8

	require.NoError(t, env.svc.Delete(ctx, m.ID))

	// The reversal used the stored lines, not the ones read before the
	// transaction began.
	assert.Equal(t, int64(10), med.Quantity)
}

func TestCreateReturnsStoredRepresentation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	m := NewMovement(KindEntry, nil)
	m.AddLineByName("Ibuprofeno", "tabletas", 20)

	require.NoError(t, env.svc.Create(ctx, m))

	stored, err := env.svc.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, m)
	require.Len(t, m.Lines, 1)
	assert.False(t, id.IsNil(m.Lines[0].MedicationID))
	assert.NotEmpty(t, m.Folio)
}

func TestGetByFolio(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Paracetamol", 10)
	env := newTestEnv(med)

	m := NewMovement(KindEntry, nil)
	m.AddLine(med.ID, 5)
	require.NoError(t, env.svc.Create(ctx, m))

	found, err := env.svc.GetByFolio(ctx, m.Folio)
	require.NoError(t, err)
	assert.Equal(t, m.ID, found.ID)
	require.Len(t, found.Lines, 1)

	_, err = env.svc.GetByFolio(ctx, "E-1999-9999")
	assert.True(t, apperror.IsNotFound(err))
}

func TestListAttachesLines(t *testing.T) {
	ctx := context.Background()
	med := stockedMedication("Paracetamol", 100)
	env := newTestEnv(med)

	for i := 0; i < 3; i++ {
		m := NewMovement(KindEntry, nil)
		m.AddLine(med.ID, 1)
		require.NoError(t, env.svc.Create(ctx, m))
	}

	kind := KindEntry
	result, err := env.svc.List(ctx, ListFilter{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.Equal(t, int64(3), result.TotalCount)
	for _, m := range result.Items {
		require.Len(t, m.Lines, 1)
	}
}

package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/domain/ledger"
)

func strPtr(s string) *string { return &s }

func requireValidationError(t *testing.T, err error) *apperror.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, apperror.CodeValidation, appErr.Code)
	return appErr
}

func TestCreateMovementRequestToEntity(t *testing.T) {
	medID := id.New()
	patientID := id.New()

	req := CreateMovementRequest{
		Kind:      string(ledger.KindExit),
		PatientID: strPtr(patientID.String()),
		Lines: []MovementLineRequest{
			{MedicationID: strPtr(medID.String()), Quantity: 3},
		},
	}

	m, err := req.ToEntity()
	require.NoError(t, err)
	require.NotNil(t, m.PatientID)
	assert.Equal(t, patientID, *m.PatientID)
	require.Len(t, m.Lines, 1)
	assert.Equal(t, medID, m.Lines[0].MedicationID)
	assert.Equal(t, 1, m.Lines[0].LineNo)
}

func TestCreateMovementRequestRejectsMalformedPatientID(t *testing.T) {
	req := CreateMovementRequest{
		Kind:      string(ledger.KindExit),
		PatientID: strPtr("not-a-uuid"),
		Lines: []MovementLineRequest{
			{MedicationID: strPtr(id.New().String()), Quantity: 1},
		},
	}

	_, err := req.ToEntity()
	appErr := requireValidationError(t, err)
	assert.Equal(t, "patientId", appErr.Details["field"])
}

func TestCreateMovementRequestRejectsMalformedLineMedicationID(t *testing.T) {
	// The line also carries a name: a bad id must not slip into the
	// by-name resolution path.
	req := CreateMovementRequest{
		Kind: string(ledger.KindEntry),
		Lines: []MovementLineRequest{
			{MedicationID: strPtr("xxxx"), MedicationName: strPtr("Paracetamol"), Quantity: 2},
		},
	}

	_, err := req.ToEntity()
	appErr := requireValidationError(t, err)
	assert.Equal(t, "medicationId", appErr.Details["field"])
	assert.Equal(t, 1, appErr.Details["lineNo"])
}

func TestUpdateMovementRequestRejectsMalformedIDs(t *testing.T) {
	m := ledger.NewMovement(ledger.KindExit, nil)

	req := UpdateMovementRequest{PatientID: strPtr("broken")}
	_, err := req.ApplyTo(m)
	requireValidationError(t, err)
	assert.Nil(t, m.PatientID)

	req = UpdateMovementRequest{
		Lines: []MovementLineRequest{{MedicationID: strPtr("broken"), Quantity: 1}},
	}
	_, err = req.ApplyTo(m)
	requireValidationError(t, err)
}

func TestListMovementsRequestRejectsMalformedPatientID(t *testing.T) {
	req := ListMovementsRequest{PatientID: "broken"}
	_, err := req.ToFilter()
	requireValidationError(t, err)

	req = ListMovementsRequest{PatientID: id.New().String(), Kind: string(ledger.KindExit)}
	filter, err := req.ToFilter()
	require.NoError(t, err)
	require.NotNil(t, filter.PatientID)
	require.NotNil(t, filter.Kind)
}

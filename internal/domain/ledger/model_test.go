package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
)

func TestKindFolioPrefix(t *testing.T) {
	assert.Equal(t, "E", KindEntry.FolioPrefix())
	assert.Equal(t, "S", KindExit.FolioPrefix())
	assert.Equal(t, "C", KindExpiry.FolioPrefix())
	assert.Equal(t, "", Kind("bogus").FolioPrefix())
}

func TestKindStockSign(t *testing.T) {
	assert.Equal(t, int64(1), KindEntry.StockSign())
	assert.Equal(t, int64(-1), KindExit.StockSign())
	assert.Equal(t, int64(-1), KindExpiry.StockSign())
	assert.False(t, KindEntry.Outbound())
	assert.True(t, KindExit.Outbound())
	assert.True(t, KindExpiry.Outbound())
}

func TestMovementValidate(t *testing.T) {
	ctx := context.Background()
	patientID := id.New()

	t.Run("valid entry", func(t *testing.T) {
		m := NewMovement(KindEntry, nil)
		m.AddLine(id.New(), 5)
		assert.NoError(t, m.Validate(ctx))
	})

	t.Run("unknown kind", func(t *testing.T) {
		m := NewMovement(Kind("transfer"), nil)
		m.AddLine(id.New(), 1)
		requireValidation(t, m.Validate(ctx))
	})

	t.Run("unknown status", func(t *testing.T) {
		m := NewMovement(KindEntry, nil)
		m.AddLine(id.New(), 1)
		m.Status = Status("pending")
		requireValidation(t, m.Validate(ctx))
	})

	t.Run("exit without patient", func(t *testing.T) {
		m := NewMovement(KindExit, nil)
		m.AddLine(id.New(), 1)
		requireValidation(t, m.Validate(ctx))
	})

	t.Run("entry with patient", func(t *testing.T) {
		m := NewMovement(KindEntry, &patientID)
		m.AddLine(id.New(), 1)
		requireValidation(t, m.Validate(ctx))
	})

	t.Run("no lines", func(t *testing.T) {
		m := NewMovement(KindEntry, nil)
		requireValidation(t, m.Validate(ctx))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		m := NewMovement(KindEntry, nil)
		m.AddLine(id.New(), 0)
		requireValidation(t, m.Validate(ctx))
	})

	t.Run("line without medication", func(t *testing.T) {
		m := NewMovement(KindEntry, nil)
		m.AddLine(id.Nil(), 1)
		requireValidation(t, m.Validate(ctx))
	})

	t.Run("name resolution allowed on entry", func(t *testing.T) {
		m := NewMovement(KindEntry, nil)
		m.AddLineByName("Paracetamol", "tabletas", 10)
		assert.NoError(t, m.Validate(ctx))
	})

	t.Run("name resolution rejected on exit", func(t *testing.T) {
		m := NewMovement(KindExit, &patientID)
		m.AddLineByName("Paracetamol", "tabletas", 10)
		requireValidation(t, m.Validate(ctx))
	})
}

func TestLineHasPrescription(t *testing.T) {
	dosage, freq, blank := "50mg", "cada 8 horas", "  "

	line := Line{}
	assert.False(t, line.HasPrescription())

	line.RecommendedDosage = &dosage
	assert.False(t, line.HasPrescription())

	line.Frequency = &freq
	assert.True(t, line.HasPrescription())

	line.Frequency = &blank
	assert.False(t, line.HasPrescription())
}

func TestAddLineNumbering(t *testing.T) {
	m := NewMovement(KindEntry, nil)
	m.AddLine(id.New(), 1)
	m.AddLine(id.New(), 2)
	m.AddLineByName("Paracetamol", "", 3)

	require.Len(t, m.Lines, 3)
	for i, line := range m.Lines {
		assert.Equal(t, i+1, line.LineNo)
		assert.False(t, id.IsNil(line.LineID))
	}
	assert.Nil(t, m.Lines[2].Unit)
}

func requireValidation(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botiquin/internal/domain/ledger"
	"botiquin/internal/domain/medication"
)

func TestExtractDBColumnsFlattensEmbedded(t *testing.T) {
	cols := ExtractDBColumns[medication.Medication]()

	// Embedded BaseCatalog columns come first.
	assert.Contains(t, cols, "id")
	assert.Contains(t, cols, "version")
	assert.Contains(t, cols, "deletion_mark")

	assert.Contains(t, cols, "name")
	assert.Contains(t, cols, "unit")
	assert.Contains(t, cols, "quantity")
	assert.Contains(t, cols, "strength")
	assert.Contains(t, cols, "expires_at")
}

func TestExtractDBColumnsSkipsUntagged(t *testing.T) {
	cols := ExtractDBColumns[ledger.Movement]()

	assert.Contains(t, cols, "folio")
	assert.Contains(t, cols, "kind")
	assert.Contains(t, cols, "patient_id")
	// Lines is tagged "-": the table part lives in its own table.
	assert.NotContains(t, cols, "lines")
	assert.NotContains(t, cols, "-")
}

func TestStructToMap(t *testing.T) {
	med := medication.New("Paracetamol", "tabletas")
	med.Quantity = 42

	m := StructToMap(med)
	require.NotNil(t, m)

	assert.Equal(t, med.ID, m["id"])
	assert.Equal(t, "Paracetamol", m["name"])
	assert.Equal(t, int64(42), m["quantity"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, false, m["deletion_mark"])
}

func TestStructToMapNonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap("x"))
}

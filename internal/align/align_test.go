package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apksift/apksift/internal/flatten"
	"github.com/apksift/apksift/pkg/models"
)

func sampleReport() *models.AnalysisReport {
	return &models.AnalysisReport{
		Identity: models.Identity{
			SHA256:      "a3f5",
			PackageName: "com.example.app",
			EntryPoint:  "com.example.app.MainActivity",
		},
		Permissions: []string{
			"android.permission.CAMERA",
			"android.permission.SEND_SMS",
		},
		Opcodes: map[string]int{"invoke-virtual": 120},
	}
}

func TestAlignEndToEndExample(t *testing.T) {
	record := flatten.Flatten(sampleReport())
	schema := []string{"android.permission.CAMERA", "invoke-virtual", "unknown_col"}

	row, err := Single(record, nil, schema)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 120, 0}, row)
}

func TestAlignRowMatchesSchemaShape(t *testing.T) {
	record := flatten.Flatten(sampleReport())

	tests := []struct {
		name   string
		schema []string
	}{
		{"single column", []string{"invoke-virtual"}},
		{"all unknown", []string{"x", "y", "z"}},
		{"mixed", []string{"android.permission.SEND_SMS", "nope", "invoke-virtual"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := Single(record, nil, tt.schema)
			require.NoError(t, err)
			assert.Len(t, row, len(tt.schema))
		})
	}
}

func TestAlignIsIdempotentAndPure(t *testing.T) {
	record := flatten.Flatten(sampleReport())
	keysBefore := record.Keys()

	schema := []string{"android.permission.CAMERA", "invoke-virtual", "unknown_col"}
	excluded := map[string]struct{}{"android.permission.SEND_SMS": {}}

	first, err := Single(record, excluded, schema)
	require.NoError(t, err)
	second, err := Single(record, excluded, schema)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// The input record must not be mutated
	assert.Equal(t, keysBefore, record.Keys())
	v, ok := record.Get("android.permission.SEND_SMS")
	require.True(t, ok, "excluded field should survive in the input record")
	assert.Equal(t, models.KindNumber, v.Kind)
}

func TestAlignExclusionPrecedence(t *testing.T) {
	record := flatten.Flatten(sampleReport())
	excluded := map[string]struct{}{"invoke-virtual": {}}
	schema := []string{"android.permission.CAMERA", "invoke-virtual"}

	row, err := Single(record, excluded, schema)
	require.NoError(t, err)

	// The excluded column's record value (120) never reaches the row; the
	// schema still names the column, so reindexing re-adds it as 0.
	assert.Equal(t, []float64{1, 0}, row)
}

func TestAlignMissingPermissionResolvesToZero(t *testing.T) {
	report := sampleReport()
	report.Permissions = []string{"android.permission.CAMERA"}
	record := flatten.Flatten(report)

	// Absent permission is an absent key, not an explicit zero
	_, ok := record.Get("android.permission.SEND_SMS")
	require.False(t, ok)

	schema := []string{"android.permission.SEND_SMS", "android.permission.CAMERA"}
	row, err := Single(record, nil, schema)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 1}, row)
}

func TestAlignNonNumericBecomesMissingThenImputed(t *testing.T) {
	record := models.NewFlatRecord()
	record.Set("sha256", models.Text("deadbeef"))
	record.Set("count", models.Text("not a number"))
	record.Set("other", models.Number(7))

	schema := []string{"sha256", "count", "other"}
	row, err := Single(record, nil, schema)
	require.NoError(t, err)

	// Both unparseable fields are single-record all-missing columns, so the
	// documented fallback of 0 applies.
	assert.Equal(t, []float64{0, 0, 7}, row)
}

func TestAlignStrictNumericParse(t *testing.T) {
	record := models.NewFlatRecord()
	record.Set("a", models.Text("42"))
	record.Set("b", models.Text("  3.5 "))
	record.Set("c", models.Text("12abc"))

	schema := []string{"a", "b", "c"}
	row, err := Single(record, nil, schema)
	require.NoError(t, err)

	assert.Equal(t, []float64{42, 3.5, 0}, row)
}

func TestBatchImputationUsesColumnMean(t *testing.T) {
	mk := func(withCount bool) *models.FlatRecord {
		r := models.NewFlatRecord()
		r.Set("android.permission.CAMERA", models.Number(1))
		if withCount {
			r.Set("invoke-virtual", models.Number(100))
		}
		return r
	}

	// invoke-virtual is absent from the third record entirely; the batch
	// union makes it a missing entry there.
	records := []*models.FlatRecord{mk(true), mk(true), mk(false)}
	schema := []string{"android.permission.CAMERA", "invoke-virtual"}

	rows, err := Batch(records, nil, schema)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Missing entry imputed to the batch mean of present values
	assert.Equal(t, []float64{1, 100}, rows[0])
	assert.Equal(t, []float64{1, 100}, rows[1])
	assert.Equal(t, []float64{1, 100}, rows[2])
}

func TestBatchEntirelyMissingColumnFallsBackToZero(t *testing.T) {
	mk := func() *models.FlatRecord {
		r := models.NewFlatRecord()
		r.Set("flag", models.Number(1))
		r.Set("ghost", models.Missing)
		return r
	}

	rows, err := Batch([]*models.FlatRecord{mk(), mk()}, nil, []string{"flag", "ghost"})
	require.NoError(t, err)

	for _, row := range rows {
		assert.Equal(t, []float64{1, 0}, row)
	}
}

func TestBatchRejectsEmptyInput(t *testing.T) {
	var missingInput *models.MissingInputError

	_, err := Batch(nil, nil, []string{"a"})
	require.ErrorAs(t, err, &missingInput)

	_, err = Batch([]*models.FlatRecord{models.NewFlatRecord()}, nil, []string{"a"})
	require.ErrorAs(t, err, &missingInput)
}

func TestAlignExcludedColumnDoesNotSkewImputation(t *testing.T) {
	// Record A has "noise"=1000 and "signal" missing; record B has
	// "signal"=10. If exclusion ran after imputation, "noise" would still
	// be gone from the row, but the order matters for columns that share a
	// name with an excluded one.
	a := models.NewFlatRecord()
	a.Set("signal", models.Missing)
	a.Set("noise", models.Number(1000))

	b := models.NewFlatRecord()
	b.Set("signal", models.Number(10))
	b.Set("noise", models.Number(1000))

	excluded := map[string]struct{}{"noise": {}}
	rows, err := Batch([]*models.FlatRecord{a, b}, excluded, []string{"signal", "noise"})
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 0}, rows[0])
	assert.Equal(t, []float64{10, 0}, rows[1])
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apksift/apksift/pkg/models"
)

// stubModel flags artifacts whose invoke-virtual count exceeds a threshold
type stubModel struct {
	features []string
}

func (m *stubModel) ExpectedFeatures() []string {
	return m.features
}

func (m *stubModel) Predict(batch [][]float64) ([]int, error) {
	labels := make([]int, len(batch))
	for i, row := range batch {
		if row[len(row)-1] > 100 {
			labels[i] = models.LabelMalware
		}
	}
	return labels, nil
}

func testReport() *models.AnalysisReport {
	return &models.AnalysisReport{
		Identity: models.Identity{
			SHA256:      "ABC123",
			PackageName: "com.example.app",
		},
		Permissions: []string{
			"android.permission.CAMERA",
			"android.permission.SEND_SMS",
		},
		Opcodes: map[string]int{"invoke-virtual": 120},
	}
}

func newTestPipeline(knownHashes map[string]struct{}) *Pipeline {
	model := &stubModel{features: []string{"android.permission.CAMERA", "invoke-virtual"}}
	return New(model, nil, knownHashes)
}

func TestRunProducesSummaryAndRow(t *testing.T) {
	p := newTestPipeline(nil)

	result, err := p.Run(testReport())
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 120}, result.Row)

	summary := result.Summary
	assert.Equal(t, "ABC123", summary.Hash)
	assert.Equal(t, "com.example.app", summary.PackageName)
	assert.Equal(t, models.LabelMalware, summary.Prediction)
	assert.Equal(t, "malware", summary.Verdict)
	assert.Equal(t, []string{
		"android.permission.CAMERA",
		"android.permission.SEND_SMS",
	}, summary.DangerousPermissions)
	assert.False(t, summary.KnownMalware)
}

func TestRunIsDeterministic(t *testing.T) {
	p := newTestPipeline(nil)

	first, err := p.Run(testReport())
	require.NoError(t, err)
	second, err := p.Run(testReport())
	require.NoError(t, err)

	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Row, second.Row)
}

func TestRunKnownMalwareAnnotation(t *testing.T) {
	known := map[string]struct{}{"abc123": {}} // stored lowercased
	p := newTestPipeline(known)

	report := testReport()
	report.Opcodes["invoke-virtual"] = 5 // model says benign

	result, err := p.Run(report)
	require.NoError(t, err)

	// Annotation only: the model's prediction stands
	assert.True(t, result.Summary.KnownMalware)
	assert.Equal(t, models.LabelBenign, result.Summary.Prediction)
}

func TestRunEmptyReport(t *testing.T) {
	p := newTestPipeline(nil)

	var missingInput *models.MissingInputError

	_, err := p.Run(&models.AnalysisReport{Identity: models.Identity{SHA256: "x"}})
	require.ErrorAs(t, err, &missingInput)

	_, err = p.Run(nil)
	require.ErrorAs(t, err, &missingInput)

	_, err = p.RunBatch(nil)
	require.ErrorAs(t, err, &missingInput)
}

func TestRunBatchSharesImputationStatistics(t *testing.T) {
	p := newTestPipeline(nil)

	full := testReport()
	sparse := testReport()
	sparse.Identity.SHA256 = "DEF456"
	delete(sparse.Opcodes, "invoke-virtual")
	sparse.APICalls = map[string]int{"Ljava/lang/Runtime;->exec": 1}

	results, err := p.RunBatch([]*models.AnalysisReport{full, full, sparse})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// invoke-virtual is absent from the sparse record, so its entry is
	// imputed from the other records' batch mean of 120.
	assert.Equal(t, []float64{1, 120}, results[0].Row)
	assert.Equal(t, []float64{1, 120}, results[2].Row)
	assert.Equal(t, models.LabelMalware, results[2].Summary.Prediction)
}

func TestDangerousPermissionCap(t *testing.T) {
	p := newTestPipeline(nil)

	report := testReport()
	report.Permissions = nil
	for i := 0; i < 15; i++ {
		report.Permissions = append(report.Permissions,
			"android.permission.P"+string(rune('A'+i)))
	}

	result, err := p.Run(report)
	require.NoError(t, err)

	assert.Len(t, result.Summary.DangerousPermissions, MaxDangerousPermissions)
}

func TestSentinelHashNeverMatchesKnownList(t *testing.T) {
	known := map[string]struct{}{models.SentinelUnavailable: {}}
	p := newTestPipeline(known)

	report := testReport()
	report.Identity.SHA256 = ""

	result, err := p.Run(report)
	require.NoError(t, err)

	assert.Equal(t, models.SentinelUnavailable, result.Summary.Hash)
	assert.False(t, result.Summary.KnownMalware)
}

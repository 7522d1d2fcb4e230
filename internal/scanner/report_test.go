package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apksift/apksift/pkg/models"
)

const sampleReportJSON = `{
  "identity": {
    "sha256": "a3f5c2",
    "package_name": "com.example.app",
    "entry_point": "com.example.app.MainActivity"
  },
  "permissions": ["android.permission.CAMERA", "android.permission.SEND_SMS"],
  "opcodes": {"invoke-virtual": 120},
  "api_calls": {"Landroid/telephony/SmsManager;->sendTextMessage": 2}
}`

func TestLoadReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), ReportFileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleReportJSON), 0o644))

	report, err := LoadReport(path)
	require.NoError(t, err)

	assert.Equal(t, "a3f5c2", report.Identity.SHA256)
	assert.Equal(t, "com.example.app", report.Identity.PackageName)
	assert.Len(t, report.Permissions, 2)
	assert.Equal(t, 120, report.Opcodes["invoke-virtual"])
	assert.Equal(t, 2, report.APICalls["Landroid/telephony/SmsManager;->sendTextMessage"])
}

func TestLoadReportInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ReportFileName)
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	_, err := LoadReport(path)
	assert.Error(t, err)
}

func TestValidateReport(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, ReportFileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleReportJSON), 0o644))
	assert.NoError(t, ValidateReport(path))

	// Identity alone is not analyzable content
	emptyPath := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(emptyPath, []byte(`{"identity": {"sha256": "x"}}`), 0o644))
	var missingInput *models.MissingInputError
	require.ErrorAs(t, ValidateReport(emptyPath), &missingInput)

	assert.Error(t, ValidateReport(filepath.Join(dir, "absent.json")))
}

func TestFindReport(t *testing.T) {
	dir := t.TempDir()

	_, err := FindReport(dir)
	assert.Error(t, err)

	path := filepath.Join(dir, ReportFileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleReportJSON), 0o644))

	found, err := FindReport(dir)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

// Package flatten collapses a nested analysis report into a single-level
// field mapping suitable for schema alignment.
package flatten

import (
	"strings"

	"github.com/apksift/apksift/pkg/models"
)

// Field names for the identity section. The hash field is the only identity
// field consumed downstream; the others ride along for presentation.
const (
	FieldSHA256      = "sha256"
	FieldPackageName = "package_name"
	FieldEntryPoint  = "entry_point"
)

// PermissionPrefix is the namespace shared by Android permission fields
const PermissionPrefix = "android.permission."

// Flatten converts an analysis report into a flat record. It never fails:
// absent identity fields are substituted with a sentinel, and everything
// else is carried over verbatim.
//
// Each permission present in the report becomes a field set to 1. Absent
// permissions are simply absent keys, never explicit zeros; alignment
// decides later what absence means. Histogram entries become fields holding
// their counts. Histograms are applied after permissions, so if a histogram
// key collides with a permission name the histogram's count wins.
func Flatten(report *models.AnalysisReport) *models.FlatRecord {
	record := models.NewFlatRecord()
	if report == nil {
		record.Set(FieldSHA256, models.Text(models.SentinelUnavailable))
		record.Set(FieldPackageName, models.Text(models.SentinelUnavailable))
		record.Set(FieldEntryPoint, models.Text(models.SentinelUnavailable))
		return record
	}

	record.Set(FieldSHA256, identityValue(report.Identity.SHA256))
	record.Set(FieldPackageName, identityValue(report.Identity.PackageName))
	record.Set(FieldEntryPoint, identityValue(report.Identity.EntryPoint))

	for _, perm := range report.Permissions {
		record.Set(perm, models.Number(1))
	}

	for opcode, count := range report.Opcodes {
		record.Set(opcode, models.Number(float64(count)))
	}

	for call, count := range report.APICalls {
		record.Set(call, models.Number(float64(count)))
	}

	return record
}

func identityValue(s string) models.Value {
	if s == "" {
		return models.Text(models.SentinelUnavailable)
	}
	return models.Text(s)
}

// Hash extracts the identity hash from a flat record, falling back to the
// sentinel when the field is somehow absent.
func Hash(record *models.FlatRecord) string {
	v, ok := record.Get(FieldSHA256)
	if !ok || v.Kind != models.KindString {
		return models.SentinelUnavailable
	}
	return v.Str
}

// DangerousPermissions returns the permission-namespace fields whose
// flattened value equals 1, in first-seen order, capped at max entries.
// The exclusion list is deliberately not consulted here.
func DangerousPermissions(record *models.FlatRecord, max int) []string {
	var found []string
	for _, key := range record.Keys() {
		if len(found) >= max {
			break
		}
		if !strings.HasPrefix(key, PermissionPrefix) {
			continue
		}
		if v, ok := record.Get(key); ok && v.Kind == models.KindNumber && v.Num == 1 {
			found = append(found, key)
		}
	}
	return found
}

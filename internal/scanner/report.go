package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apksift/apksift/pkg/models"
)

// ReportFileName is the file the containerized scanner drops in its output
// directory. Part of the contract with the scanner image.
const ReportFileName = "report.json"

// LoadReport reads and parses a scanner report file
func LoadReport(path string) (*models.AnalysisReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var report models.AnalysisReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ValidateReport checks that a report file exists and carries analyzable
// content
func ValidateReport(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("report not found at %s", path)
	}

	report, err := LoadReport(path)
	if err != nil {
		return err
	}

	if report.Empty() {
		return &models.MissingInputError{Reason: fmt.Sprintf("report %s has no analyzable content", path)}
	}

	return nil
}

// FindReport locates the scanner's report file in an output directory
func FindReport(dir string) (string, error) {
	path := filepath.Join(dir, ReportFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("%s not found in %s", ReportFileName, dir)
	}
	return path, nil
}

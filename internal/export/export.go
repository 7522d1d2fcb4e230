// Package export renders pipeline output for downstream consumption: the
// aligned feature batch as CSV and the summary batch as JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/apksift/apksift/pkg/models"
)

// WriteFeaturesCSV writes the aligned feature matrix: header row is the
// schema, then one row per artifact in schema order.
func WriteFeaturesCSV(w io.Writer, schema []string, rows [][]float64) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(schema); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(schema))
	for i, row := range rows {
		if len(row) != len(schema) {
			return fmt.Errorf("row %d has %d values, schema has %d columns", i, len(row), len(schema))
		}
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFeaturesFile writes the feature matrix CSV to a file
func WriteFeaturesFile(path string, schema []string, rows [][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	return WriteFeaturesCSV(file, schema, rows)
}

// WriteSummaries writes the summary batch as indented JSON
func WriteSummaries(path string, summaries []*models.Summary) error {
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summaries: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

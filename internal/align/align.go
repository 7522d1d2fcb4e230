// Package align reconciles flat records against the feature schema a
// trained model was fit on: it drops excluded fields, coerces types,
// imputes missing values, and reindexes to the schema's exact column set.
package align

import (
	"strconv"
	"strings"

	"github.com/apksift/apksift/pkg/models"
)

// Batch aligns a batch of flat records to the given feature schema.
//
// The steps run in a fixed order; reversing them would corrupt the
// imputation statistics:
//
//  1. Excluded fields are removed from every record so they never
//     influence the per-column means.
//  2. String values get a strict numeric parse; failures become missing.
//  3. The column universe is the union of field names across the batch.
//     A record's missing or absent entry for a column is filled with that
//     column's mean over the records that do carry a numeric value. A
//     column with no numeric value anywhere in the batch falls back to 0.
//  4. Each record is reindexed to the schema: columns the schema names but
//     the record lacks become 0, columns the schema does not name are
//     dropped.
//
// The result has one row per record, each of length len(schema), fully
// numeric, in schema order. Inputs are never mutated.
func Batch(records []*models.FlatRecord, excluded map[string]struct{}, schema []string) ([][]float64, error) {
	if len(records) == 0 {
		return nil, &models.MissingInputError{Reason: "empty record batch"}
	}
	for i, r := range records {
		if r == nil || r.Len() == 0 {
			return nil, &models.MissingInputError{Reason: "empty record in batch at index " + strconv.Itoa(i)}
		}
	}

	// Steps 1 and 2 on private copies
	work := make([]*models.FlatRecord, len(records))
	for i, r := range records {
		c := r.Clone()
		for name := range excluded {
			c.Delete(name)
		}
		coerceNumeric(c)
		work[i] = c
	}

	// Step 3: per-column mean over the batch, columns being the union of
	// field names. A record that never saw a column is as missing as one
	// that saw it unparseable.
	columns := unionColumns(work)
	fill := columnFill(work, columns)
	for _, r := range work {
		for _, key := range columns {
			if v, ok := r.Get(key); !ok || v.Kind == models.KindMissing {
				r.Set(key, models.Number(fill[key]))
			}
		}
	}

	// Step 4: reindex to schema
	rows := make([][]float64, len(work))
	for i, r := range work {
		row := make([]float64, len(schema))
		for j, col := range schema {
			if v, ok := r.Get(col); ok {
				row[j] = v.Num
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// Single aligns one record; the batch mean degenerates to each field's own
// value, so imputation only matters for fields that are missing outright.
func Single(record *models.FlatRecord, excluded map[string]struct{}, schema []string) ([]float64, error) {
	rows, err := Batch([]*models.FlatRecord{record}, excluded, schema)
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// coerceNumeric rewrites string fields in place: a strict parse succeeds or
// the field becomes missing. The record is never rejected wholesale.
func coerceNumeric(r *models.FlatRecord) {
	for _, key := range r.Keys() {
		v, _ := r.Get(key)
		if v.Kind != models.KindString {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			r.Set(key, models.Missing)
		} else {
			r.Set(key, models.Number(f))
		}
	}
}

// unionColumns collects the distinct field names across the batch in
// first-seen order
func unionColumns(records []*models.FlatRecord) []string {
	seen := make(map[string]struct{})
	var columns []string
	for _, r := range records {
		for _, key := range r.Keys() {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				columns = append(columns, key)
			}
		}
	}
	return columns
}

// columnFill computes the mean of each column's numeric values across the
// batch. Columns with no numeric observations fall back to 0.
func columnFill(records []*models.FlatRecord, columns []string) map[string]float64 {
	fill := make(map[string]float64, len(columns))
	for _, key := range columns {
		var sum float64
		n := 0
		for _, r := range records {
			if v, ok := r.Get(key); ok && v.Kind == models.KindNumber {
				sum += v.Num
				n++
			}
		}
		if n > 0 {
			fill[key] = sum / float64(n)
		} else {
			fill[key] = 0
		}
	}
	return fill
}

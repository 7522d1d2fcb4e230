// Package pipeline sequences Flatten -> Align -> Predict for one or more
// analysis reports and derives the presentation summary.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/apksift/apksift/internal/align"
	"github.com/apksift/apksift/internal/classifier"
	"github.com/apksift/apksift/internal/flatten"
	"github.com/apksift/apksift/pkg/models"
)

// MaxDangerousPermissions caps the permission list surfaced per artifact
const MaxDangerousPermissions = 10

// Pipeline holds the read-only state shared across runs: the loaded model,
// the exclusion set, and the known-malware hash set. None of it is mutated
// after construction, so a single Pipeline is safe to share.
type Pipeline struct {
	model       classifier.Model
	excluded    map[string]struct{}
	knownHashes map[string]struct{}
}

// New creates a pipeline around an already-loaded model
func New(model classifier.Model, excluded map[string]struct{}, knownHashes map[string]struct{}) *Pipeline {
	if excluded == nil {
		excluded = map[string]struct{}{}
	}
	if knownHashes == nil {
		knownHashes = map[string]struct{}{}
	}
	return &Pipeline{
		model:       model,
		excluded:    excluded,
		knownHashes: knownHashes,
	}
}

// Result pairs a summary with the aligned feature row it was predicted from
type Result struct {
	Summary *models.Summary
	Row     []float64
}

// Run classifies a single report. Stateless per artifact: flatten the
// report, align against the model's fitted schema, predict, and annotate.
func (p *Pipeline) Run(report *models.AnalysisReport) (*Result, error) {
	results, err := p.RunBatch([]*models.AnalysisReport{report})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// RunBatch classifies several reports in one alignment pass, so missing
// numeric fields are imputed from the batch's column means.
func (p *Pipeline) RunBatch(reports []*models.AnalysisReport) ([]*Result, error) {
	if len(reports) == 0 {
		return nil, &models.MissingInputError{Reason: "no reports to classify"}
	}

	records := make([]*models.FlatRecord, len(reports))
	for i, report := range reports {
		if report.Empty() {
			return nil, &models.MissingInputError{Reason: fmt.Sprintf("report %d has no analyzable content", i)}
		}
		records[i] = flatten.Flatten(report)
	}

	schema := p.model.ExpectedFeatures()
	rows, err := align.Batch(records, p.excluded, schema)
	if err != nil {
		return nil, err
	}

	labels, err := p.model.Predict(rows)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	results := make([]*Result, len(reports))
	for i, record := range records {
		hash := flatten.Hash(record)
		summary := &models.Summary{
			Hash:                 hash,
			PackageName:          fieldString(record, flatten.FieldPackageName),
			DangerousPermissions: flatten.DangerousPermissions(record, MaxDangerousPermissions),
			Prediction:           labels[i],
			Verdict:              models.VerdictString(labels[i]),
			KnownMalware:         p.isKnownMalware(hash),
		}
		results[i] = &Result{Summary: summary, Row: rows[i]}
	}
	return results, nil
}

// Schema exposes the model's fitted feature schema, e.g. for CSV headers
func (p *Pipeline) Schema() []string {
	return p.model.ExpectedFeatures()
}

// isKnownMalware checks the hash against the known-malware set. Purely an
// informational annotation; it never overrides the model's prediction.
func (p *Pipeline) isKnownMalware(hash string) bool {
	if hash == models.SentinelUnavailable {
		return false
	}
	_, ok := p.knownHashes[strings.ToLower(hash)]
	return ok
}

func fieldString(record *models.FlatRecord, name string) string {
	v, ok := record.Get(name)
	if !ok || v.Kind != models.KindString {
		return models.SentinelUnavailable
	}
	return v.Str
}

// Package classifier loads the trained model artifact and wraps its
// predict contract behind a minimal capability interface, isolating the
// pipeline from the artifact's internal representation.
package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/apksift/apksift/pkg/models"
)

// Model is the capability interface the pipeline depends on. The feature
// list exposed by the loaded model is the authoritative schema the aligner
// targets, which is why the model is consulted before alignment.
type Model interface {
	// ExpectedFeatures returns the ordered column names the model was fit on
	ExpectedFeatures() []string
	// Predict maps an aligned batch to a label batch (0 = benign, 1 = malware)
	Predict(batch [][]float64) ([]int, error)
}

// artifact is the serialized form of the trained model: the fitted feature
// schema plus logistic-regression weights.
type artifact struct {
	Format       string    `json:"format"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold,omitempty"` // decision threshold, defaults to 0.5
}

const artifactFormat = "logreg-v1"

type linearModel struct {
	features     []string
	coefficients []float64
	intercept    float64
	threshold    float64
}

// Load reads and deserializes a trained model artifact. Any failure to
// read, parse, or validate the artifact is a ModelLoadError: fatal for the
// run, no partial prediction.
func Load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ModelLoadError{Path: path, Err: err}
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, &models.ModelLoadError{Path: path, Err: err}
	}

	if art.Format != artifactFormat {
		return nil, &models.ModelLoadError{Path: path, Err: fmt.Errorf("unsupported artifact format %q", art.Format)}
	}
	if len(art.Features) == 0 {
		return nil, &models.ModelLoadError{Path: path, Err: fmt.Errorf("artifact declares no features")}
	}
	if len(art.Coefficients) != len(art.Features) {
		return nil, &models.ModelLoadError{Path: path, Err: fmt.Errorf(
			"artifact has %d coefficients for %d features", len(art.Coefficients), len(art.Features))}
	}

	threshold := art.Threshold
	if threshold == 0 {
		threshold = 0.5
	}

	return &linearModel{
		features:     art.Features,
		coefficients: art.Coefficients,
		intercept:    art.Intercept,
		threshold:    threshold,
	}, nil
}

func (m *linearModel) ExpectedFeatures() []string {
	out := make([]string, len(m.features))
	copy(out, m.features)
	return out
}

func (m *linearModel) Predict(batch [][]float64) ([]int, error) {
	if len(batch) == 0 {
		return nil, &models.MissingInputError{Reason: "empty feature batch"}
	}

	labels := make([]int, len(batch))
	for i, row := range batch {
		if len(row) != len(m.coefficients) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), len(m.coefficients))
		}

		score := m.intercept
		for j, x := range row {
			score += m.coefficients[j] * x
		}

		if sigmoid(score) >= m.threshold {
			labels[i] = models.LabelMalware
		} else {
			labels[i] = models.LabelBenign
		}
	}
	return labels, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// logisticArtifact is the on-disk JSON layout produced by cmd/genmodel and
// by offline training runs.
type logisticArtifact struct {
	FeatureCount int       `json:"feature_count"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Threshold    float64   `json:"threshold"`
}

// Logistic scores feature vectors with a trained logistic regression.
// Rows at or above the decision threshold are labelled 1.
type Logistic struct {
	weights   []float64
	bias      float64
	threshold float64
}

// LoadLogistic reads and validates a JSON logistic-regression artifact.
func LoadLogistic(path string) (*Logistic, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ModelLoadError{Path: path, Err: err}
	}

	var art logisticArtifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, &domain.ModelLoadError{Path: path, Err: err}
	}
	if art.FeatureCount <= 0 {
		return nil, &domain.ModelLoadError{Path: path, Err: fmt.Errorf("feature_count must be positive, got %d", art.FeatureCount)}
	}
	if len(art.Weights) != art.FeatureCount {
		return nil, &domain.ModelLoadError{
			Path: path,
			Err:  fmt.Errorf("artifact has %d weights for feature_count %d", len(art.Weights), art.FeatureCount),
		}
	}
	for i, w := range art.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &domain.ModelLoadError{Path: path, Err: fmt.Errorf("weight %d is not finite", i)}
		}
	}
	if art.Threshold == 0 {
		art.Threshold = 0.5
	}
	if art.Threshold < 0 || art.Threshold > 1 {
		return nil, &domain.ModelLoadError{Path: path, Err: fmt.Errorf("threshold %v outside [0, 1]", art.Threshold)}
	}

	return &Logistic{weights: art.Weights, bias: art.Bias, threshold: art.Threshold}, nil
}

func (l *Logistic) FeatureCount() int { return len(l.weights) }

// PredictBatch computes sigmoid(w·x + b) per row. The context is checked
// between rows so a cancelled run does not finish scoring a large tile.
func (l *Logistic) PredictBatch(ctx context.Context, matrix [][]float64) ([]int, []float64, error) {
	if err := validateMatrix(matrix, len(l.weights)); err != nil {
		return nil, nil, err
	}

	labels := make([]int, len(matrix))
	confidences := make([]float64, len(matrix))
	for i, row := range matrix {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		z := l.bias
		for j, v := range row {
			z += l.weights[j] * v
		}
		p := sigmoid(z)
		confidences[i] = p
		if p >= l.threshold {
			labels[i] = 1
		}
	}
	return labels, confidences, nil
}

func sigmoid(z float64) float64 {
	// Split on sign to avoid overflow in exp for large |z|.
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Package classifier wraps pluggable binary classifiers behind a batch
// prediction capability. Artifacts are loaded once at startup and read-only
// afterwards; there is no online training.
package classifier

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// Classifier labels feature vectors. PredictBatch scores the whole matrix
// in one call; per-row calls are too slow for tile-sized batches. Returned
// confidences are calibrated probabilities of the positive class in [0, 1]
// — backends without probability output do not satisfy this contract.
type Classifier interface {
	// PredictBatch returns a binary label (0 or 1) and a positive-class
	// probability per input row.
	PredictBatch(ctx context.Context, matrix [][]float64) (labels []int, confidences []float64, err error)

	// FeatureCount reports the column count the artifact was trained on.
	FeatureCount() int
}

// Load resolves a classifier backend by artifact extension: .json is the
// logistic-regression artifact, .onnx the neural backend (requires the gocv
// build tag). Any failure here is a ModelLoadError and fatal to startup.
func Load(path string) (Classifier, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadLogistic(path)
	case ".onnx":
		return LoadONNX(path)
	default:
		return nil, &domain.ModelLoadError{
			Path: path,
			Err:  fmt.Errorf("unsupported artifact extension, want .json or .onnx"),
		}
	}
}

// validateMatrix checks the batch shape against the model contract.
func validateMatrix(matrix [][]float64, want int) error {
	for _, row := range matrix {
		if len(row) != want {
			return &domain.InferenceError{Want: want, Got: len(row)}
		}
	}
	return nil
}

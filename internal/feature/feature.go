// Package feature computes fixed-length numeric descriptors for raster
// patches. The feature order is a versioned contract shared with the
// classifier artifact: reordering or resizing it breaks every trained model,
// so additions only ever append.
package feature

import (
	"fmt"
	"math"
)

// Level selects how many descriptors are computed per patch.
type Level string

const (
	// LevelMinimal is the 10 statistical moments.
	LevelMinimal Level = "minimal"
	// LevelStandard adds histogram entropy/energy and six co-occurrence
	// texture statistics (18 total).
	LevelStandard Level = "standard"
	// LevelComprehensive adds local-binary-pattern entropy (19 total).
	LevelComprehensive Level = "comprehensive"
)

// ParseLevel validates a configured level string.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelMinimal, LevelStandard, LevelComprehensive:
		return Level(s), nil
	default:
		return "", fmt.Errorf("unknown feature level %q", s)
	}
}

var statNames = []string{
	"mean", "std", "min", "max", "median",
	"skewness", "kurtosis", "range", "iqr", "cv",
}

var histogramNames = []string{"entropy", "energy"}

var glcmNames = []string{
	"glcm_contrast", "glcm_dissimilarity", "glcm_homogeneity",
	"glcm_energy", "glcm_correlation", "glcm_asm",
}

// Names returns the ordered feature names for a level.
func Names(level Level) []string {
	names := append([]string{}, statNames...)
	if level == LevelMinimal {
		return names
	}
	names = append(names, histogramNames...)
	names = append(names, glcmNames...)
	if level == LevelComprehensive {
		names = append(names, "lbp_entropy")
	}
	return names
}

// Count returns the vector length for a level: 10, 18, or 19.
func Count(level Level) int { return len(Names(level)) }

// Extractor computes feature vectors at a fixed level.
type Extractor struct {
	Level Level
}

// Vector computes the ordered descriptor for one patch. Degenerate patches
// (constant value, zero variance) produce defined values, never NaN or Inf.
func (e Extractor) Vector(patch [][]float64) ([]float64, error) {
	if len(patch) == 0 || len(patch[0]) == 0 {
		return nil, fmt.Errorf("empty patch")
	}

	flat := flatten(patch)
	out := make([]float64, 0, Count(e.Level))
	out = append(out, basicStats(flat)...)

	if e.Level != LevelMinimal {
		entropy, energy := histogramFeatures(flat)
		out = append(out, entropy, energy)
		out = append(out, glcmFeatures(patch)...)
	}
	if e.Level == LevelComprehensive {
		out = append(out, lbpEntropy(patch))
	}

	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %q is not finite", Names(e.Level)[i])
		}
	}
	return out, nil
}

// Matrix computes the feature matrix for a batch of patches, one row per
// patch in input order.
func (e Extractor) Matrix(patches [][][]float64) ([][]float64, error) {
	matrix := make([][]float64, len(patches))
	for i, p := range patches {
		vec, err := e.Vector(p)
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		matrix[i] = vec
	}
	return matrix, nil
}

func flatten(patch [][]float64) []float64 {
	flat := make([]float64, 0, len(patch)*len(patch[0]))
	for _, row := range patch {
		flat = append(flat, row...)
	}
	return flat
}

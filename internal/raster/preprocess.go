package raster

import (
	"fmt"
	"math"

	"github.com/oceansentry/slick-detect/internal/domain"
	"github.com/oceansentry/slick-detect/internal/geo"
)

// SpeckleFilter selects the despeckling algorithm.
type SpeckleFilter string

const (
	SpeckleNone          SpeckleFilter = "none"
	SpeckleMedian        SpeckleFilter = "median"
	SpeckleBilateral     SpeckleFilter = "bilateral"
	SpeckleMorphological SpeckleFilter = "morphological"
)

// Normalization selects how pixel values are rescaled.
type Normalization string

const (
	NormalizeMinMax Normalization = "minmax"
	NormalizeZScore Normalization = "zscore"
)

// dbFloor clamps the log conversion so zero or negative backscatter maps to
// a finite floor instead of -Inf.
const dbFloor = -50.0

// Preprocessor normalizes a raw acquisition into an analysis-ready Grid.
// Each step can be toggled independently.
type Preprocessor struct {
	ConvertToDB   bool
	Filter        SpeckleFilter
	KernelRadius  int
	Normalization Normalization
}

// DefaultPreprocessor mirrors the standard GRD processing chain: dB
// conversion, median despeckle with a 2-pixel radius, min-max scaling.
func DefaultPreprocessor() Preprocessor {
	return Preprocessor{
		ConvertToDB:   true,
		Filter:        SpeckleMedian,
		KernelRadius:  2,
		Normalization: NormalizeMinMax,
	}
}

// Run executes the preprocessing chain. A malformed raster yields a
// PreprocessingError; the caller skips the tile without retrying, since bad
// data stays bad.
func (p Preprocessor) Run(tileID string, raw *domain.RawRaster) (*Grid, error) {
	height, width, err := validateRaw(raw)
	if err != nil {
		return nil, &domain.PreprocessingError{TileID: tileID, Err: err}
	}

	// The mask is built before any arithmetic so nodata and NaN pixels are
	// excluded from normalization statistics.
	mask := make([][]bool, height)
	for r := range raw.Pixels {
		mask[r] = make([]bool, width)
		for c, v := range raw.Pixels[r] {
			mask[r][c] = !isInvalid(v, raw.Nodata)
		}
	}

	px := clonePixels(raw.Pixels)

	// Dual-pol acquisitions carry a cross-pol grid; the VH/VV ratio replaces
	// VV as the working band. Pixels where either band is invalid, or VV is
	// non-positive, are masked.
	if raw.VH != nil {
		ratio, err := VHVVRatio(raw.Pixels, raw.VH)
		if err != nil {
			return nil, &domain.PreprocessingError{TileID: tileID, Err: err}
		}
		for r := range mask {
			for c := range mask[r] {
				if mask[r][c] && (isInvalid(raw.VH[r][c], raw.Nodata) || raw.Pixels[r][c] <= 0) {
					mask[r][c] = false
				}
			}
		}
		px = ratio
	}

	valid := 0
	for r := range mask {
		for c := range mask[r] {
			if mask[r][c] {
				valid++
			}
		}
	}
	if valid == 0 {
		return nil, &domain.PreprocessingError{TileID: tileID, Err: fmt.Errorf("no valid pixels")}
	}

	if p.ConvertToDB {
		linearToDB(px, mask)
	}

	if p.Filter != "" && p.Filter != SpeckleNone {
		radius := p.KernelRadius
		if radius < 1 {
			radius = 1
		}
		// Window filters must never see NaN or nodata sentinels: a single NaN
		// poisons every neighbor it touches, and sentinel magnitudes dominate
		// medians and morphology near swath edges. Invalid pixels are
		// overwritten with neighborhood means first; the fills are
		// placeholders, since masked positions are zeroed after normalization.
		fillMasked(px, mask, radius)
		px, err = despeckle(px, p.Filter, radius)
		if err != nil {
			return nil, &domain.PreprocessingError{TileID: tileID, Err: err}
		}
	}

	switch p.Normalization {
	case NormalizeMinMax, "":
		normalizeMinMax(px, mask)
	case NormalizeZScore:
		normalizeZScore(px, mask)
	default:
		return nil, &domain.PreprocessingError{TileID: tileID, Err: fmt.Errorf("unknown normalization %q", p.Normalization)}
	}

	// Invalid pixels are zeroed after normalization so feature extraction
	// never sees NaN, and flagged in the mask for anyone who cares.
	for r := range px {
		for c := range px[r] {
			if !mask[r][c] {
				px[r][c] = 0
			}
		}
	}

	return &Grid{
		Pixels:    px,
		Mask:      mask,
		Transform: geo.GeotransformFromArray(raw.Transform),
		CRS:       raw.CRS,
	}, nil
}

// fillMasked overwrites invalid pixels with the mean of the valid pixels in
// their filter window, falling back to the global valid mean when a window
// has none. Callers guarantee at least one valid pixel in the grid.
func fillMasked(px [][]float64, mask [][]bool, radius int) {
	var sum float64
	var n int
	for r := range px {
		for c := range px[r] {
			if mask[r][c] {
				sum += px[r][c]
				n++
			}
		}
	}
	global := sum / float64(n)

	h, w := len(px), len(px[0])
	for r := range px {
		for c := range px[r] {
			if mask[r][c] {
				continue
			}
			var winSum float64
			var winN int
			for dr := -radius; dr <= radius; dr++ {
				for dc := -radius; dc <= radius; dc++ {
					rr, cc := clampIdx(r+dr, h), clampIdx(c+dc, w)
					if mask[rr][cc] {
						winSum += px[rr][cc]
						winN++
					}
				}
			}
			if winN > 0 {
				px[r][c] = winSum / float64(winN)
			} else {
				px[r][c] = global
			}
		}
	}
}

// linearToDB converts linear backscatter to decibels, 20*log10(x), clamping
// non-positive input to the floor.
func linearToDB(px [][]float64, mask [][]bool) {
	for r := range px {
		for c := range px[r] {
			if !mask[r][c] {
				continue
			}
			if px[r][c] <= 0 {
				px[r][c] = dbFloor
				continue
			}
			db := 20 * math.Log10(px[r][c])
			if db < dbFloor {
				db = dbFloor
			}
			px[r][c] = db
		}
	}
}

func normalizeMinMax(px [][]float64, mask [][]bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for r := range px {
		for c := range px[r] {
			if !mask[r][c] {
				continue
			}
			lo = math.Min(lo, px[r][c])
			hi = math.Max(hi, px[r][c])
		}
	}
	span := hi - lo
	for r := range px {
		for c := range px[r] {
			if !mask[r][c] {
				continue
			}
			if span == 0 {
				px[r][c] = 0
				continue
			}
			px[r][c] = (px[r][c] - lo) / span
		}
	}
}

func normalizeZScore(px [][]float64, mask [][]bool) {
	var sum float64
	var n int
	for r := range px {
		for c := range px[r] {
			if mask[r][c] {
				sum += px[r][c]
				n++
			}
		}
	}
	mean := sum / float64(n)

	var ss float64
	for r := range px {
		for c := range px[r] {
			if mask[r][c] {
				d := px[r][c] - mean
				ss += d * d
			}
		}
	}
	std := math.Sqrt(ss / float64(n))

	for r := range px {
		for c := range px[r] {
			if !mask[r][c] {
				continue
			}
			px[r][c] = (px[r][c] - mean) / (std + 1e-8)
		}
	}
}

//go:build !gocv

package raster

import (
	"fmt"
	"math"
	"sort"
)

// despeckle reduces the multiplicative noise characteristic of radar
// imagery. This is the pure-Go implementation used when the gocv build tag
// is off; build with -tags gocv to run the OpenCV-backed filters instead.
func despeckle(px [][]float64, filter SpeckleFilter, radius int) ([][]float64, error) {
	switch filter {
	case SpeckleMedian:
		return medianFilter(px, radius), nil
	case SpeckleBilateral:
		return bilateralFilter(px, radius), nil
	case SpeckleMorphological:
		return morphologicalOpen(px, radius), nil
	default:
		return nil, fmt.Errorf("unknown speckle filter %q", filter)
	}
}

func medianFilter(px [][]float64, radius int) [][]float64 {
	h, w := len(px), len(px[0])
	out := make([][]float64, h)
	window := make([]float64, 0, (2*radius+1)*(2*radius+1))
	for r := 0; r < h; r++ {
		out[r] = make([]float64, w)
		for c := 0; c < w; c++ {
			window = window[:0]
			for dr := -radius; dr <= radius; dr++ {
				for dc := -radius; dc <= radius; dc++ {
					window = append(window, px[clampIdx(r+dr, h)][clampIdx(c+dc, w)])
				}
			}
			sort.Float64s(window)
			out[r][c] = window[len(window)/2]
		}
	}
	return out
}

// bilateralFilter smooths while preserving edges: each neighbor is weighted
// by both spatial distance and intensity difference, so slick boundaries
// survive the smoothing.
func bilateralFilter(px [][]float64, radius int) [][]float64 {
	const sigmaColor = 5.0
	sigmaSpace := float64(radius)

	h, w := len(px), len(px[0])
	out := make([][]float64, h)
	for r := 0; r < h; r++ {
		out[r] = make([]float64, w)
		for c := 0; c < w; c++ {
			center := px[r][c]
			var sum, weight float64
			for dr := -radius; dr <= radius; dr++ {
				for dc := -radius; dc <= radius; dc++ {
					v := px[clampIdx(r+dr, h)][clampIdx(c+dc, w)]
					spatial := float64(dr*dr+dc*dc) / (2 * sigmaSpace * sigmaSpace)
					rangeDiff := (v - center) * (v - center) / (2 * sigmaColor * sigmaColor)
					wgt := math.Exp(-spatial - rangeDiff)
					sum += wgt * v
					weight += wgt
				}
			}
			out[r][c] = sum / weight
		}
	}
	return out
}

// morphologicalOpen erodes then dilates with a square structuring element,
// removing bright speckle smaller than the kernel.
func morphologicalOpen(px [][]float64, radius int) [][]float64 {
	return dilate(erode(px, radius), radius)
}

func erode(px [][]float64, radius int) [][]float64 {
	return morph(px, radius, func(a, b float64) float64 { return math.Min(a, b) })
}

func dilate(px [][]float64, radius int) [][]float64 {
	return morph(px, radius, func(a, b float64) float64 { return math.Max(a, b) })
}

func morph(px [][]float64, radius int, pick func(a, b float64) float64) [][]float64 {
	h, w := len(px), len(px[0])
	out := make([][]float64, h)
	for r := 0; r < h; r++ {
		out[r] = make([]float64, w)
		for c := 0; c < w; c++ {
			acc := px[r][c]
			for dr := -radius; dr <= radius; dr++ {
				for dc := -radius; dc <= radius; dc++ {
					acc = pick(acc, px[clampIdx(r+dr, h)][clampIdx(c+dc, w)])
				}
			}
			out[r][c] = acc
		}
	}
	return out
}

//go:build gocv

package raster

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// despeckle reduces radar speckle using OpenCV. Enabled with -tags gocv;
// the default build uses the pure-Go filters in despeckle.go.
func despeckle(px [][]float64, filter SpeckleFilter, radius int) ([][]float64, error) {
	kernel := 2*radius + 1

	src, err := toMat(px)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	switch filter {
	case SpeckleMedian:
		gocv.MedianBlur(src, &dst, kernel)
	case SpeckleBilateral:
		gocv.BilateralFilter(src, &dst, kernel, 75, 75)
	case SpeckleMorphological:
		elem := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernel, kernel))
		defer elem.Close()
		gocv.MorphologyEx(src, &dst, gocv.MorphOpen, elem)
	default:
		return nil, fmt.Errorf("unknown speckle filter %q", filter)
	}

	return fromMat(dst)
}

func toMat(px [][]float64) (gocv.Mat, error) {
	h, w := len(px), len(px[0])
	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			mat.SetFloatAt(r, c, float32(px[r][c]))
		}
	}
	return mat, nil
}

func fromMat(mat gocv.Mat) ([][]float64, error) {
	h, w := mat.Rows(), mat.Cols()
	out := make([][]float64, h)
	for r := 0; r < h; r++ {
		out[r] = make([]float64, w)
		for c := 0; c < w; c++ {
			out[r][c] = float64(mat.GetFloatAt(r, c))
		}
	}
	return out, nil
}

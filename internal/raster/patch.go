package raster

import "fmt"

// Patch is a fixed-size square window of a tile's raster. Index is a
// deterministic function of the window's grid position, so identical inputs
// always produce identical patch numbering.
type Patch struct {
	Index  int
	Row    int // pixel origin, row
	Col    int // pixel origin, col
	Size   int
	Pixels [][]float64
}

// Extractor windows a grid into P×P patches at a fixed stride.
type Extractor struct {
	Size   int // patch edge length P in pixels
	Stride int // grid step S, 0 < S <= P
}

// GridDims returns the patch grid dimensions for a raster of the given size:
// one origin per stride multiple inside the array.
func (e Extractor) GridDims(height, width int) (rows, cols int) {
	rows = (height + e.Stride - 1) / e.Stride
	cols = (width + e.Stride - 1) / e.Stride
	return rows, cols
}

// Extract emits every patch of the grid in row-major order. Windows that
// overrun the array are padded by reflection across the boundary, so every
// patch is exactly Size×Size and, for Stride <= Size, every source pixel is
// covered by at least one patch.
func (e Extractor) Extract(g *Grid) ([]Patch, error) {
	if e.Size <= 0 {
		return nil, fmt.Errorf("patch size must be positive, got %d", e.Size)
	}
	if e.Stride <= 0 || e.Stride > e.Size {
		return nil, fmt.Errorf("stride must satisfy 0 < stride <= patch size, got stride=%d size=%d", e.Stride, e.Size)
	}

	height, width := g.Height(), g.Width()
	if height == 0 || width == 0 {
		return nil, fmt.Errorf("empty grid")
	}

	gridRows, gridCols := e.GridDims(height, width)
	patches := make([]Patch, 0, gridRows*gridCols)

	for ri := 0; ri < gridRows; ri++ {
		for ci := 0; ci < gridCols; ci++ {
			row := ri * e.Stride
			col := ci * e.Stride
			patches = append(patches, Patch{
				Index:  ri*gridCols + ci,
				Row:    row,
				Col:    col,
				Size:   e.Size,
				Pixels: e.window(g.Pixels, row, col),
			})
		}
	}
	return patches, nil
}

// window copies a Size×Size block starting at (row, col), reflecting
// out-of-bounds indices back into the array.
func (e Extractor) window(px [][]float64, row, col int) [][]float64 {
	height, width := len(px), len(px[0])
	out := make([][]float64, e.Size)
	for r := 0; r < e.Size; r++ {
		out[r] = make([]float64, e.Size)
		src := px[reflectIdx(row+r, height)]
		for c := 0; c < e.Size; c++ {
			out[r][c] = src[reflectIdx(col+c, width)]
		}
	}
	return out
}

// reflectIdx mirrors an index across the array boundary without repeating
// the edge sample (the numpy "reflect" convention). It folds repeatedly so
// windows larger than the array still resolve.
func reflectIdx(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

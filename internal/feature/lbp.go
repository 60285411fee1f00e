package feature

import "math"

// lbpNeighbors is the fixed 8-neighborhood at radius 1, clockwise from the
// top-left. Radius and neighborhood are part of the model contract.
var lbpNeighbors = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, 1},
	{1, 1}, {1, 0}, {1, -1},
	{0, -1},
}

// lbpEntropy computes the entropy of the rotation-invariant uniform
// local-binary-pattern histogram (radius 1, 8 neighbors, 10 bins). Uniform
// patterns (at most two 0/1 transitions around the circle) map to their
// popcount 0..8; everything else shares bin 9.
func lbpEntropy(patch [][]float64) float64 {
	h, w := len(patch), len(patch[0])
	if h < 3 || w < 3 {
		return 0
	}

	counts := make([]float64, 10)
	var total float64
	for r := 1; r < h-1; r++ {
		for c := 1; c < w-1; c++ {
			counts[lbpLabel(patch, r, c)]++
			total++
		}
	}

	var entropy float64
	for _, cnt := range counts {
		if cnt == 0 {
			continue
		}
		p := cnt / total
		entropy -= p * math.Log(p)
	}
	return entropy
}

func lbpLabel(patch [][]float64, r, c int) int {
	center := patch[r][c]

	var bits [8]bool
	ones := 0
	for i, off := range lbpNeighbors {
		if patch[r+off[0]][c+off[1]] >= center {
			bits[i] = true
			ones++
		}
	}

	transitions := 0
	for i := range bits {
		if bits[i] != bits[(i+1)%8] {
			transitions++
		}
	}
	if transitions <= 2 {
		return ones // uniform pattern: label by popcount
	}
	return 9 // non-uniform bucket
}

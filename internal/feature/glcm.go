package feature

import "math"

// glcmFeatures computes six gray-level co-occurrence statistics at the
// canonical configuration: distance 1, angle 0° (east neighbor), 8
// quantization levels over [0, 1], symmetric and normalized. The offset and
// quantization are part of the model contract; changing them requires a
// contract version bump, not a config knob.
//
// Order: contrast, dissimilarity, homogeneity, energy, correlation, ASM.
func glcmFeatures(patch [][]float64) []float64 {
	var glcm [histogramBins][histogramBins]float64
	var total float64

	for r := range patch {
		for c := 0; c+1 < len(patch[r]); c++ {
			i := quantize(patch[r][c])
			j := quantize(patch[r][c+1])
			// Symmetric: count each pair in both directions.
			glcm[i][j]++
			glcm[j][i]++
			total += 2
		}
	}
	if total == 0 {
		// Single-column patch has no horizontal pairs.
		return []float64{0, 0, 0, 0, 0, 0}
	}

	var contrast, dissimilarity, homogeneity, asm float64
	var muI, muJ float64
	for i := 0; i < histogramBins; i++ {
		for j := 0; j < histogramBins; j++ {
			p := glcm[i][j] / total
			if p == 0 {
				continue
			}
			d := float64(i - j)
			contrast += p * d * d
			dissimilarity += p * math.Abs(d)
			homogeneity += p / (1 + d*d)
			asm += p * p
			muI += p * float64(i)
			muJ += p * float64(j)
		}
	}

	var sigmaI, sigmaJ, cov float64
	for i := 0; i < histogramBins; i++ {
		for j := 0; j < histogramBins; j++ {
			p := glcm[i][j] / total
			if p == 0 {
				continue
			}
			di := float64(i) - muI
			dj := float64(j) - muJ
			sigmaI += p * di * di
			sigmaJ += p * dj * dj
			cov += p * di * dj
		}
	}

	// Constant patches have zero marginal variance; correlation is defined
	// as 0 there rather than NaN.
	var correlation float64
	if sigmaI > 0 && sigmaJ > 0 {
		correlation = cov / math.Sqrt(sigmaI*sigmaJ)
	}

	energy := math.Sqrt(asm)
	return []float64{contrast, dissimilarity, homogeneity, energy, correlation, asm}
}

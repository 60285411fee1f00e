package feature

import (
	"math"
	"sort"
)

// histogramBins is the fixed quantization for the entropy/energy features
// and the co-occurrence matrix. Part of the model contract.
const histogramBins = 8

// basicStats returns the 10 statistical moments in contract order: mean,
// std, min, max, median, skewness, kurtosis, range, iqr, cv.
func basicStats(flat []float64) []float64 {
	n := float64(len(flat))

	var sum float64
	lo, hi := flat[0], flat[0]
	for _, v := range flat {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / n

	var m2, m3, m4 float64
	for _, v := range flat {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	m2 /= n
	m3 /= n
	m4 /= n
	std := math.Sqrt(m2)

	// Zero-variance patches get zero skewness and kurtosis by definition.
	var skew, kurt float64
	if std > 0 {
		skew = m3 / (std * std * std)
		kurt = m4/(m2*m2) - 3 // excess kurtosis
	}

	sorted := append([]float64(nil), flat...)
	sort.Float64s(sorted)
	median := percentile(sorted, 50)
	iqr := percentile(sorted, 75) - percentile(sorted, 25)
	cv := std / (mean + 1e-8)

	return []float64{mean, std, lo, hi, median, skew, kurt, hi - lo, iqr, cv}
}

// percentile computes the p-th percentile of sorted data with linear
// interpolation between adjacent ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// histogramFeatures computes entropy and energy of an 8-bin histogram over
// [0, 1]. Values outside the range clamp into the edge bins so z-scored
// input still produces finite features.
func histogramFeatures(flat []float64) (entropy, energy float64) {
	counts := make([]float64, histogramBins)
	for _, v := range flat {
		counts[quantize(v)]++
	}

	n := float64(len(flat))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := c / n
		entropy -= p * math.Log(p)
		energy += p * p
	}
	return entropy, energy
}

// quantize maps a pixel value to one of histogramBins levels over [0, 1],
// clamping out-of-range values.
func quantize(v float64) int {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return histogramBins - 1
	}
	return int(v * histogramBins)
}

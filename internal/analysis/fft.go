// Package analysis offers frequency-domain inspection of recorded
// trajectories.
package analysis

import (
	"math"
	"math/cmplx"
)

// fft is the radix-2 Cooley-Tukey transform; len(data) must be a power of
// two, which PowerSpectrum guarantees by padding.
func fft(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		result := make([]complex128, n)
		for i := range data {
			result[i] = complex(data[i], 0)
		}
		return result
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := fft(even)
	fodd := fft(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}
	return result
}

// PowerSpectrum returns the magnitude of the lower half of the transform,
// zero-padding the input to the next power of two.
func PowerSpectrum(data []float64) []float64 {
	n := 1
	for n < len(data) {
		n *= 2
	}
	padded := make([]float64, n)
	copy(padded, data)

	transformed := fft(padded)
	ps := make([]float64, len(transformed)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(transformed[i])
	}
	return ps
}

// DominantFrequency locates the strongest non-DC component of a uniformly
// sampled series, in hertz. Returns 0 for series too short to analyze.
func DominantFrequency(series []float64, dt float64) float64 {
	if len(series) < 4 || dt <= 0 {
		return 0
	}

	// Remove the mean so a constant offset does not leak into low bins.
	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))
	centered := make([]float64, len(series))
	for i, v := range series {
		centered[i] = v - mean
	}

	ps := PowerSpectrum(centered)
	maxIdx := 0
	maxPower := 0.0
	for i := 1; i < len(ps); i++ {
		if ps[i] > maxPower {
			maxPower = ps[i]
			maxIdx = i
		}
	}
	if maxIdx == 0 {
		return 0
	}

	// Bin width is fs / n over the padded length.
	n := 2 * len(ps)
	return float64(maxIdx) / (float64(n) * dt)
}

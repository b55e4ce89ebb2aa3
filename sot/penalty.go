package sot

import (
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// hanning returns raised-cosine window of length n
func hanning(n int) []float64 {
	ones := make([]float64, n)
	floats.AddConst(1.0, ones)
	if n == 1 {
		return ones
	}
	return window.Hann(ones)
}

// NewPenaltyWindow builds size x size displacement penalty: outer product of Hann window with itself, normalized to sum 1.
// Size must be positive.
func NewPenaltyWindow(size int) *mat.Dense {
	hann := mat.NewVecDense(size, hanning(size))
	penalty := mat.NewDense(size, size, nil)
	penalty.Outer(1.0, hann, hann)
	sum := mat.Sum(penalty)
	if sum == 0 {
		// Two-element Hann window is all zeros
		uniform := 1.0 / float64(size*size)
		penalty.Apply(func(_, _ int, _ float64) float64 { return uniform }, penalty)
		return penalty
	}
	penalty.Scale(1.0/sum, penalty)
	return penalty
}

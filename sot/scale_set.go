package sot

import (
	"math"

	"github.com/pkg/errors"
)

// NewScaleFactors returns scaleNum multipliers step^k where k runs evenly over [-ceil(n/2), ceil(n/2)].
// The middle factor is exactly 1.
func NewScaleFactors(step float64, scaleNum int) ([]float64, error) {
	if scaleNum <= 0 || scaleNum%2 == 0 {
		return nil, errors.Wrapf(ErrConfiguration, "scale number should be positive and odd, got %d", scaleNum)
	}
	if !(step > 1) || math.IsInf(step, 0) {
		return nil, errors.Wrapf(ErrConfiguration, "scale step should be finite and greater than 1, got %f", step)
	}
	factors := make([]float64, scaleNum)
	if scaleNum == 1 {
		factors[0] = 1.0
		return factors, nil
	}
	bound := math.Ceil(float64(scaleNum) / 2.0)
	last := float64(scaleNum - 1)
	for i := range factors {
		// Integer numerator keeps the middle exponent at exactly zero
		exponent := float64(2*i-(scaleNum-1)) * bound / last
		factors[i] = math.Pow(step, exponent)
	}
	return factors, nil
}

package sot

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPenaltyWindowSum(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 16, 17, 33, 136, 264, 272} {
		penalty := NewPenaltyWindow(size)
		rows, cols := penalty.Dims()
		if rows != size || cols != size {
			t.Errorf("Expected %dx%d, got %dx%d", size, size, rows, cols)
		}
		if sum := mat.Sum(penalty); math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("Penalty of size %d should sum to 1, got %v", size, sum)
		}
	}
}

func TestPenaltyWindowShape(t *testing.T) {
	size := 17
	penalty := NewPenaltyWindow(size)
	// Hann window vanishes on the border and peaks in the middle
	if v := penalty.At(0, 0); v != 0 {
		t.Errorf("Corner value should be 0, got %v", v)
	}
	center := penalty.At(size/2, size/2)
	if mat.Max(penalty) != center {
		t.Errorf("Maximum should be in the center, got %v vs %v", mat.Max(penalty), center)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if math.Abs(penalty.At(i, j)-penalty.At(j, i)) > 1e-15 {
				t.Fatalf("Penalty should be symmetric at (%d, %d)", i, j)
			}
			if math.Abs(penalty.At(i, j)-penalty.At(size-1-i, j)) > 1e-15 {
				t.Fatalf("Penalty should be mirrored at (%d, %d)", i, j)
			}
		}
	}
}

func TestHanning(t *testing.T) {
	// numpy.hanning(5)
	expected := []float64{0, 0.5, 1, 0.5, 0}
	window := hanning(5)
	for i := range expected {
		if math.Abs(window[i]-expected[i]) > eps {
			t.Errorf("Element %d: expected %v, got %v", i, expected[i], window[i])
		}
	}
}

func TestPenaltyWindowValues(t *testing.T) {
	// Hann window of length 5 is [0, 0.5, 1, 0.5, 0] with sum 2
	penalty := NewPenaltyWindow(5)
	hann := []float64{0, 0.5, 1, 0.5, 0}
	for i := range hann {
		for j := range hann {
			expected := hann[i] * hann[j] / 4.0
			if math.Abs(penalty.At(i, j)-expected) > eps {
				t.Errorf("At (%d, %d): expected %v, got %v", i, j, expected, penalty.At(i, j))
			}
		}
	}
	if single := NewPenaltyWindow(1); single.At(0, 0) != 1 {
		t.Errorf("Single cell penalty should be 1, got %v", single.At(0, 0))
	}
}

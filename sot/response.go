package sot

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Displacement is a shift of the object center. Y (row) goes first, the same way as in score maps.
type Displacement struct {
	Y float64
	X float64
}

// Peak is a location in upsampled score map
type Peak struct {
	Row int
	Col int
}

// ResponseMapProcessor converts selected score map into displacement in frame coordinates
type ResponseMapProcessor struct {
	penalty             *mat.Dense
	windowInfluence     float64
	totalStride         float64
	responseUp          float64
	searchSizeReference float64
	finalScoreSize      int
}

// NewResponseMapProcessor creates new instance of ResponseMapProcessor
func NewResponseMapProcessor(penalty *mat.Dense, windowInfluence float64, design Design, responseUp float64) *ResponseMapProcessor {
	size, _ := penalty.Dims()
	return &ResponseMapProcessor{
		penalty:             penalty,
		windowInfluence:     windowInfluence,
		totalStride:         design.TotalStride,
		responseUp:          responseUp,
		searchSizeReference: design.SearchSize,
		finalScoreSize:      size,
	}
}

// Locate returns peak of the score map after min-shift and blending with the penalty window.
// Ties are resolved by the first occurrence in row-major order.
func (proc *ResponseMapProcessor) Locate(scoreMap *mat.Dense) (Peak, error) {
	rows, cols := scoreMap.Dims()
	if rows != proc.finalScoreSize || cols != proc.finalScoreSize {
		return Peak{}, errors.Wrapf(ErrConfiguration, "score map is %dx%d, penalty window is %dx%d", rows, cols, proc.finalScoreSize, proc.finalScoreSize)
	}
	shift := mat.Min(scoreMap)
	blended := mat.NewDense(rows, cols, nil)
	blended.Apply(func(i, j int, v float64) float64 {
		return (1-proc.windowInfluence)*(v-shift) + proc.windowInfluence*proc.penalty.At(i, j)
	}, scoreMap)
	idx := floats.MaxIdx(blended.RawMatrix().Data)
	return Peak{Row: idx / cols, Col: idx % cols}, nil
}

// Displacement converts peak location into displacement of the object center in frame pixels.
// searchSize is the side of the search region in frame pixels for the selected scale.
func (proc *ResponseMapProcessor) Displacement(peak Peak, searchSize float64) Displacement {
	half := float64(proc.finalScoreSize) / 2.0
	// Displacement from the center in response map cells
	dispAreaY := float64(peak.Row) - half
	dispAreaX := float64(peak.Col) - half
	// ... in search crop pixels
	dispCropY := dispAreaY * proc.totalStride / proc.responseUp
	dispCropX := dispAreaX * proc.totalStride / proc.responseUp
	// ... in frame pixels
	return Displacement{
		Y: dispCropY * searchSize / proc.searchSizeReference,
		X: dispCropX * searchSize / proc.searchSizeReference,
	}
}

// Process locates peak of the score map and converts it into frame displacement
func (proc *ResponseMapProcessor) Process(scoreMap *mat.Dense, searchSize float64) (Displacement, Peak, error) {
	peak, err := proc.Locate(scoreMap)
	if err != nil {
		return Displacement{}, Peak{}, err
	}
	return proc.Displacement(peak, searchSize), peak, nil
}

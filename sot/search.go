package sot

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Candidates are per-scale sizes evaluated in one frame
type Candidates struct {
	Exemplar []float64
	Search   []float64
	Width    []float64
	Height   []float64
}

// SearchResult is the outcome of scale-space search for one frame
type SearchResult struct {
	// Index of the winning scale
	BestIndex int
	// Penalized score map of the winning scale
	ScoreMap *mat.Dense
	// Per-scale candidate sizes
	Candidates Candidates
	// Per-scale maximum of penalized score maps
	PeakScores []float64
}

// ScaleSpaceSearch evaluates every scale of the scale set and selects the best one
type ScaleSpaceSearch struct {
	scorer         Scorer
	scaleFactors   []float64
	scalePenalty   float64
	finalScoreSize int
}

// NewScaleSpaceSearch creates new instance of ScaleSpaceSearch
func NewScaleSpaceSearch(scorer Scorer, scaleFactors []float64, scalePenalty float64, finalScoreSize int) *ScaleSpaceSearch {
	return &ScaleSpaceSearch{
		scorer:         scorer,
		scaleFactors:   scaleFactors,
		scalePenalty:   scalePenalty,
		finalScoreSize: finalScoreSize,
	}
}

// Candidates returns candidate sizes for current state
func (search *ScaleSpaceSearch) Candidates(state TrackerState) (Candidates, error) {
	n := len(search.scaleFactors)
	candidates := Candidates{
		Exemplar: make([]float64, n),
		Search:   make([]float64, n),
		Width:    make([]float64, n),
		Height:   make([]float64, n),
	}
	for i, factor := range search.scaleFactors {
		candidates.Exemplar[i] = state.ExemplarSize * factor
		candidates.Search[i] = state.SearchSize * factor
		candidates.Width[i] = state.TargetW * factor
		candidates.Height[i] = state.TargetH * factor
		for _, v := range []float64{candidates.Exemplar[i], candidates.Search[i], candidates.Width[i], candidates.Height[i]} {
			if !isFinite(v) || v <= 0 {
				return Candidates{}, errors.Wrapf(ErrConfiguration, "scale %d produced unrepresentable size %f", i, v)
			}
		}
	}
	return candidates, nil
}

// Search scores all scales around current center and picks the scale with the highest peak.
// Ties go to the lowest scale index.
func (search *ScaleSpaceSearch) Search(ctx context.Context, frame image.Image, state TrackerState) (SearchResult, error) {
	candidates, err := search.Candidates(state)
	if err != nil {
		return SearchResult{}, err
	}
	response, err := search.scorer.Score(ctx, ScoreRequest{
		Frame:       frame,
		Template:    state.Template,
		Center:      state.Center(),
		SearchSizes: candidates.Search,
	})
	if err != nil {
		return SearchResult{}, errors.Wrap(err, "Can't score search regions")
	}
	if err = search.validate(response); err != nil {
		return SearchResult{}, err
	}

	n := len(search.scaleFactors)
	maps := make([]*mat.Dense, n)
	peaks := make([]float64, n)
	for i, scoreMap := range response.Maps {
		// Scorer owns its maps, work on a copy
		maps[i] = mat.DenseCopyOf(scoreMap)
		if n > 1 && (i == 0 || i == n-1) {
			maps[i].Scale(search.scalePenalty, maps[i])
		}
		peaks[i] = mat.Max(maps[i])
	}
	best := floats.MaxIdx(peaks)
	return SearchResult{
		BestIndex:  best,
		ScoreMap:   maps[best],
		Candidates: candidates,
		PeakScores: peaks,
	}, nil
}

func (search *ScaleSpaceSearch) validate(response ScoreResponse) error {
	if len(response.Maps) != len(search.scaleFactors) {
		return errors.Wrapf(ErrConfiguration, "scorer returned %d score maps, expected %d", len(response.Maps), len(search.scaleFactors))
	}
	for i, scoreMap := range response.Maps {
		if scoreMap == nil {
			return errors.Wrapf(ErrConfiguration, "scorer returned nil score map for scale %d", i)
		}
		rows, cols := scoreMap.Dims()
		if rows != search.finalScoreSize || cols != search.finalScoreSize {
			return errors.Wrapf(ErrConfiguration, "score map for scale %d is %dx%d, expected %dx%d", i, rows, cols, search.finalScoreSize, search.finalScoreSize)
		}
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if !isFinite(scoreMap.At(r, c)) {
					return errors.Wrapf(ErrConfiguration, "score map for scale %d has non-finite value at (%d, %d)", i, r, c)
				}
			}
		}
	}
	return nil
}

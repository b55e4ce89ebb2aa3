package sot

import (
	"context"
	"image"
	"math"

	"github.com/pkg/errors"
)

// TrackerState is the mutable state of a single tracked object
type TrackerState struct {
	CenterX float64
	CenterY float64
	// Current object size. Always > 0
	TargetW float64
	TargetH float64
	// Side of the square region used to build the template
	ExemplarSize float64
	// Side of the square region scanned for the object
	SearchSize float64
	// Appearance template. Replaced on blend, never edited in place
	Template Template
}

// NewTrackerState creates initial state from target region: exemplar region is the target plus context margin,
// search region is proportional to it.
func NewTrackerState(region TargetRegion, design Design) (TrackerState, error) {
	w, h := region.Width, region.Height
	if !isFinite(w) || !isFinite(h) || w <= 0 || h <= 0 {
		return TrackerState{}, errors.Wrapf(ErrDegenerateBox, "width %f, height %f", w, h)
	}
	if !isFinite(region.Center.X) || !isFinite(region.Center.Y) {
		return TrackerState{}, errors.Wrapf(ErrDegenerateBox, "center (%f, %f)", region.Center.X, region.Center.Y)
	}
	margin := design.Context * (w + h)
	exemplarSize := math.Sqrt((w + margin) * (h + margin))
	searchSize := design.SearchSize / design.ExemplarSize * exemplarSize
	if !isFinite(exemplarSize) || !isFinite(searchSize) || exemplarSize <= 0 || searchSize <= 0 {
		return TrackerState{}, errors.Wrapf(ErrDegenerateBox, "exemplar size %f, search size %f", exemplarSize, searchSize)
	}
	return TrackerState{
		CenterX:      region.Center.X,
		CenterY:      region.Center.Y,
		TargetW:      w,
		TargetH:      h,
		ExemplarSize: exemplarSize,
		SearchSize:   searchSize,
	}, nil
}

// Center returns object center
func (state TrackerState) Center() Point {
	return Point{X: state.CenterX, Y: state.CenterY}
}

// BBox returns object box in top-left format
func (state TrackerState) BBox() Rectangle {
	return NewRectFromCenter(state.CenterX, state.CenterY, state.TargetW, state.TargetH)
}

// SizeBounds are clamp limits for exemplar and search sizes
type SizeBounds struct {
	MinExemplar float64
	MaxExemplar float64
	MinSearch   float64
	MaxSearch   float64
}

// NewSizeBounds computes clamp limits relative to initial sizes
func NewSizeBounds(initial TrackerState, scaleMin, scaleMax float64) SizeBounds {
	return SizeBounds{
		MinExemplar: scaleMin * initial.ExemplarSize,
		MaxExemplar: scaleMax * initial.ExemplarSize,
		MinSearch:   scaleMin * initial.SearchSize,
		MaxSearch:   scaleMax * initial.SearchSize,
	}
}

// StateUpdater applies displacement and EMA updates to tracker state.
// Every method takes state by value and returns updated copy.
type StateUpdater struct {
	scaleLR float64
	zLR     float64
	bounds  SizeBounds
}

// NewStateUpdater creates new instance of StateUpdater
func NewStateUpdater(scaleLR, zLR float64, bounds SizeBounds) *StateUpdater {
	return &StateUpdater{
		scaleLR: scaleLR,
		zLR:     zLR,
		bounds:  bounds,
	}
}

// BlendScale moves search size and target size toward the candidates of the winning scale.
// Search size is clamped right after blending.
func (updater *StateUpdater) BlendScale(state TrackerState, candidates Candidates, best int) TrackerState {
	state.SearchSize = clampFloat64(ema(state.SearchSize, candidates.Search[best], updater.scaleLR), updater.bounds.MinSearch, updater.bounds.MaxSearch)
	state.TargetW = ema(state.TargetW, candidates.Width[best], updater.scaleLR)
	state.TargetH = ema(state.TargetH, candidates.Height[best], updater.scaleLR)
	return state
}

// Move shifts object center
func (updater *StateUpdater) Move(state TrackerState, disp Displacement) TrackerState {
	state.CenterX += disp.X
	state.CenterY += disp.Y
	return state
}

// RefreshTemplate embeds region at current center with current exemplar size and blends it into template.
// Must be called after Move and before BlendExemplar. Does nothing when template rate is zero.
func (updater *StateUpdater) RefreshTemplate(ctx context.Context, scorer Scorer, frame image.Image, state TrackerState) (TrackerState, error) {
	if updater.zLR <= 0 {
		return state, nil
	}
	fresh, err := scorer.Embed(ctx, EmbedRequest{
		Frame:        frame,
		Center:       state.Center(),
		ExemplarSize: state.ExemplarSize,
	})
	if err != nil {
		return state, errors.Wrap(err, "Can't embed exemplar region")
	}
	if err = validateTemplate(fresh); err != nil {
		return state, err
	}
	blended, err := state.Template.Blend(fresh, updater.zLR)
	if err != nil {
		return state, err
	}
	state.Template = blended
	return state, nil
}

// BlendExemplar moves exemplar size toward the candidate of the winning scale and clamps it
func (updater *StateUpdater) BlendExemplar(state TrackerState, candidates Candidates, best int) TrackerState {
	state.ExemplarSize = clampFloat64(ema(state.ExemplarSize, candidates.Exemplar[best], updater.scaleLR), updater.bounds.MinExemplar, updater.bounds.MaxExemplar)
	return state
}

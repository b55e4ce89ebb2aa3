package sot

import (
	"context"
	"image"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Status is the lifecycle state of Tracker
type Status uint16

const (
	// StatusNew means Init has not been called yet
	StatusNew Status = iota
	// StatusInitialized means first frame is seeded and template is computed
	StatusInitialized
	// StatusTracking means at least one frame has been tracked
	StatusTracking
	// StatusFailed is terminal: some frame could not be processed
	StatusFailed
)

func (status Status) String() string {
	switch status {
	case StatusNew:
		return "new"
	case StatusInitialized:
		return "initialized"
	case StatusTracking:
		return "tracking"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Tracker is single-object tracker over a video sequence: scale-space search, response peak localization and
// EMA update of position, size and template for every frame.
type Tracker struct {
	id     uuid.UUID
	hp     Hyperparams
	design Design
	scorer Scorer

	// Immutable after construction
	scaleFactors   []float64
	penalty        *mat.Dense
	finalScoreSize int

	search   *ScaleSpaceSearch
	response *ResponseMapProcessor
	updater  *StateUpdater

	state  TrackerState
	status Status
	boxes  []Rectangle

	// Optional motion model over emitted boxes
	motionDt   float64
	trajectory *Trajectory

	logger logrus.FieldLogger
}

// TrackerOption configures Tracker
type TrackerOption func(*Tracker)

// WithLogger sets logger. Default is standard logrus logger
func WithLogger(logger logrus.FieldLogger) TrackerOption {
	return func(tr *Tracker) {
		tr.logger = logger
	}
}

// WithID sets identifier of tracked object. Default is random UUID
func WithID(id uuid.UUID) TrackerOption {
	return func(tr *Tracker) {
		tr.id = id
	}
}

// WithMotionModel enables Kalman trajectory over emitted boxes with given time step
func WithMotionModel(dt float64) TrackerOption {
	return func(tr *Tracker) {
		tr.motionDt = dt
	}
}

// NewTracker creates new instance of Tracker. Scale factors and penalty window are built once here.
func NewTracker(scorer Scorer, hp Hyperparams, design Design, options ...TrackerOption) (*Tracker, error) {
	if scorer == nil {
		return nil, errors.Wrap(ErrConfiguration, "scorer is nil")
	}
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if err := design.Validate(); err != nil {
		return nil, err
	}
	scaleFactors, err := NewScaleFactors(hp.ScaleStep, hp.ScaleNum)
	if err != nil {
		return nil, err
	}
	finalScoreSize := FinalScoreSize(hp, design)
	if finalScoreSize <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "final score size should be positive, got %d", finalScoreSize)
	}
	penalty := NewPenaltyWindow(finalScoreSize)
	tr := &Tracker{
		id:             uuid.New(),
		hp:             hp,
		design:         design,
		scorer:         scorer,
		scaleFactors:   scaleFactors,
		penalty:        penalty,
		finalScoreSize: finalScoreSize,
		search:         NewScaleSpaceSearch(scorer, scaleFactors, hp.ScalePenalty, finalScoreSize),
		response:       NewResponseMapProcessor(penalty, hp.WindowInfluence, design, hp.ResponseUp),
		status:         StatusNew,
	}
	for _, option := range options {
		option(tr)
	}
	if tr.logger == nil {
		tr.logger = logrus.StandardLogger()
	}
	tr.logger = tr.logger.WithField("track_id", tr.id.String())
	return tr, nil
}

// GetID returns tracker's identifier
func (tr *Tracker) GetID() uuid.UUID {
	return tr.id
}

// Status returns lifecycle state
func (tr *Tracker) Status() Status {
	return tr.status
}

// State returns copy of current state
func (tr *Tracker) State() TrackerState {
	state := tr.state
	state.Template = tr.state.Template.Clone()
	return state
}

// ScaleFactors returns copy of scale factors
func (tr *Tracker) ScaleFactors() []float64 {
	factors := make([]float64, len(tr.scaleFactors))
	copy(factors, tr.scaleFactors)
	return factors
}

// PenaltyWindow returns copy of displacement penalty
func (tr *Tracker) PenaltyWindow() *mat.Dense {
	return mat.DenseCopyOf(tr.penalty)
}

// FinalScoreSize returns side of score maps expected from scorer
func (tr *Tracker) FinalScoreSize() int {
	return tr.finalScoreSize
}

// Trajectory returns motion model over emitted boxes. Nil unless WithMotionModel is used
func (tr *Tracker) Trajectory() *Trajectory {
	return tr.trajectory
}

// Boxes returns copy of emitted boxes, one per processed frame
func (tr *Tracker) Boxes() []Rectangle {
	boxes := make([]Rectangle, len(tr.boxes))
	copy(boxes, tr.boxes)
	return boxes
}

// All iterates over emitted boxes with their frame indices
func (tr *Tracker) All() iter.Seq2[int, Rectangle] {
	return boxesSeq(tr.boxes)
}

// Init seeds tracker with the first frame and target region. It may be called again to restart tracking.
func (tr *Tracker) Init(ctx context.Context, frame image.Image, region TargetRegion) (Rectangle, error) {
	// Iterators taken before restart keep the previous run
	tr.boxes = make([]Rectangle, 0, 1)
	tr.trajectory = nil
	state, err := NewTrackerState(region, tr.design)
	if err != nil {
		tr.status = StatusFailed
		return Rectangle{}, err
	}
	template, err := tr.scorer.Embed(ctx, EmbedRequest{
		Frame:        frame,
		Center:       state.Center(),
		ExemplarSize: state.ExemplarSize,
	})
	if err != nil {
		tr.status = StatusFailed
		return Rectangle{}, errors.Wrap(err, "Can't embed initial exemplar")
	}
	if err = validateTemplate(template); err != nil {
		tr.status = StatusFailed
		return Rectangle{}, err
	}
	state.Template = template
	tr.state = state
	tr.updater = NewStateUpdater(tr.hp.ScaleLR, tr.hp.ZLR, NewSizeBounds(state, tr.hp.ScaleMin, tr.hp.ScaleMax))
	bbox := state.BBox()
	tr.boxes = append(tr.boxes, bbox)
	if tr.motionDt > 0 {
		tr.trajectory = NewTrajectoryWithTime(tr.id, bbox, tr.motionDt)
	}
	tr.status = StatusInitialized
	tr.logger.WithFields(logrus.Fields{
		"bbox":          bbox,
		"exemplar_size": state.ExemplarSize,
		"search_size":   state.SearchSize,
	}).Info("Tracker initialized")
	return bbox, nil
}

// Update tracks object into the next frame. Frame is atomic: either the box is emitted and state is committed,
// or tracker fails and keeps no partial update.
func (tr *Tracker) Update(ctx context.Context, frame image.Image) (Rectangle, error) {
	switch tr.status {
	case StatusNew:
		return Rectangle{}, ErrNotInitialized
	case StatusFailed:
		return Rectangle{}, ErrTrackerFailed
	}
	frameIdx := len(tr.boxes)
	bbox, next, result, peak, err := tr.step(ctx, frame)
	if err != nil {
		tr.status = StatusFailed
		return Rectangle{}, errors.Wrapf(err, "Can't track frame %d", frameIdx)
	}
	if tr.trajectory != nil {
		if err = tr.trajectory.Observe(bbox); err != nil {
			tr.status = StatusFailed
			return Rectangle{}, errors.Wrapf(err, "Can't track frame %d", frameIdx)
		}
	}
	tr.state = next
	tr.boxes = append(tr.boxes, bbox)
	tr.status = StatusTracking
	tr.logger.WithFields(logrus.Fields{
		"frame":      frameIdx,
		"scale":      result.BestIndex,
		"peak_row":   peak.Row,
		"peak_col":   peak.Col,
		"peak_score": result.PeakScores[result.BestIndex],
		"bbox":       bbox,
	}).Debug("Frame tracked")
	return bbox, nil
}

func (tr *Tracker) step(ctx context.Context, frame image.Image) (Rectangle, TrackerState, SearchResult, Peak, error) {
	next := tr.state
	result, err := tr.search.Search(ctx, frame, next)
	if err != nil {
		return Rectangle{}, next, result, Peak{}, err
	}
	best := result.BestIndex
	// Sizes first: displacement is measured with the blended search size
	next = tr.updater.BlendScale(next, result.Candidates, best)
	disp, peak, err := tr.response.Process(result.ScoreMap, next.SearchSize)
	if err != nil {
		return Rectangle{}, next, result, peak, err
	}
	next = tr.updater.Move(next, disp)
	// Template is refreshed at the new center with the exemplar size of the previous frame
	next, err = tr.updater.RefreshTemplate(ctx, tr.scorer, frame, next)
	if err != nil {
		return Rectangle{}, next, result, peak, err
	}
	next = tr.updater.BlendExemplar(next, result.Candidates, best)
	return next.BBox(), next, result, peak, nil
}

// Result is the output of a tracking run
type Result struct {
	ID         uuid.UUID
	Boxes      []Rectangle
	Trajectory *Trajectory
	Elapsed    time.Duration
}

// All iterates over boxes with their frame indices. Every call starts from the first frame
func (result *Result) All() iter.Seq2[int, Rectangle] {
	return boxesSeq(result.Boxes)
}

// FramesPerSecond returns tracking speed of the run
func (result *Result) FramesPerSecond() float64 {
	if result.Elapsed <= 0 {
		return 0
	}
	return float64(len(result.Boxes)) / result.Elapsed.Seconds()
}

// Run tracks object over all frames of the source. First frame is seeded with region.
// Any failure aborts the run: no result is returned and Boxes holds only frames committed before the failure.
func (tr *Tracker) Run(ctx context.Context, frames FrameSource, region TargetRegion) (*Result, error) {
	first, err := frames.Next(ctx)
	if err != nil {
		tr.status = StatusFailed
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrap(ErrFrameCount, "no frames to track")
		}
		return nil, errors.Wrap(err, "Can't read first frame")
	}
	if _, err = tr.Init(ctx, first, region); err != nil {
		return nil, err
	}
	start := time.Now()
	for {
		if err = ctx.Err(); err != nil {
			tr.status = StatusFailed
			return nil, errors.Wrapf(err, "Tracking interrupted at frame %d", len(tr.boxes))
		}
		frame, err := frames.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tr.status = StatusFailed
			return nil, errors.Wrapf(err, "Can't read frame %d", len(tr.boxes))
		}
		if _, err = tr.Update(ctx, frame); err != nil {
			return nil, err
		}
	}
	result := &Result{
		ID:         tr.id,
		Boxes:      tr.Boxes(),
		Trajectory: tr.trajectory,
		Elapsed:    time.Since(start),
	}
	tr.logger.WithFields(logrus.Fields{
		"frames": len(result.Boxes),
		"fps":    result.FramesPerSecond(),
	}).Info("Tracking finished")
	return result, nil
}

func boxesSeq(boxes []Rectangle) iter.Seq2[int, Rectangle] {
	return func(yield func(int, Rectangle) bool) {
		for i, bbox := range boxes {
			if !yield(i, bbox) {
				return
			}
		}
	}
}

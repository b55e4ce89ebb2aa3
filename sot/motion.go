package sot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Trajectory accumulates boxes emitted by the tracker and runs 8-D Kalman filter over them.
// State vector: [cx, cy, w, h, vx, vy, vw, vh]. It does not feed back into tracking: consumers use it
// for velocity estimates and for a predicted box of the next frame.
type Trajectory struct {
	id            uuid.UUID
	currentBBox   Rectangle
	predictedBBox Rectangle
	track         []Point
	maxTrackLen   int
	observations  int
	tracker       *kalman_filter.KalmanBBox
}

// NewTrajectoryWithTime creates a new Trajectory with specified time step.
func NewTrajectoryWithTime(id uuid.UUID, initialBBox Rectangle, dt float64) *Trajectory {
	center := initialBBox.Center()

	// Kalman filter props
	uCx := 1.0
	uCy := 1.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, initialBBox.Width, initialBBox.Height),
	)

	trajectory := Trajectory{
		id:            id,
		currentBBox:   initialBBox,
		predictedBBox: initialBBox,
		track:         make([]Point, 0, 150),
		maxTrackLen:   150,
		observations:  1,
		tracker:       kf,
	}
	trajectory.track = append(trajectory.track, center)
	return &trajectory
}

// NewTrajectory creates a new Trajectory with default time step of 1.0.
func NewTrajectory(id uuid.UUID, initialBBox Rectangle) *Trajectory {
	return NewTrajectoryWithTime(id, initialBBox, 1.0)
}

// GetID returns identifier of tracked object
func (trajectory *Trajectory) GetID() uuid.UUID {
	return trajectory.id
}

// GetBBox returns smoothed bounding box
func (trajectory *Trajectory) GetBBox() Rectangle {
	return trajectory.currentBBox
}

// GetPredictedBBox returns predicted bounding box from Kalman filter
func (trajectory *Trajectory) GetPredictedBBox() Rectangle {
	return trajectory.predictedBBox
}

// GetTrack returns smoothed centers. Be careful: this is not copy of track, but reference to it
func (trajectory *Trajectory) GetTrack() []Point {
	return trajectory.track
}

// GetMaxTrackLen returns max track length
func (trajectory *Trajectory) GetMaxTrackLen() int {
	return trajectory.maxTrackLen
}

// SetMaxTrackLen sets max track length
func (trajectory *Trajectory) SetMaxTrackLen(newMaxTrackLen int) {
	trajectory.maxTrackLen = newMaxTrackLen
}

// GetObservations returns number of boxes seen so far, initial one included
func (trajectory *Trajectory) GetObservations() int {
	return trajectory.observations
}

// PredictNextPosition executes Kalman filter prediction step
func (trajectory *Trajectory) PredictNextPosition() {
	trajectory.tracker.Predict()
	cx, cy, w, h := trajectory.tracker.GetState()
	trajectory.predictedBBox = NewRectFromCenter(cx, cy, w, h)
}

// Observe runs prediction step and then corrects filter with emitted box
func (trajectory *Trajectory) Observe(bbox Rectangle) error {
	trajectory.PredictNextPosition()

	center := bbox.Center()
	err := trajectory.tracker.Update(center.X, center.Y, bbox.Width, bbox.Height)
	if err != nil {
		return errors.Wrap(err, "Can't update trajectory filter")
	}

	cx, cy, w, h := trajectory.tracker.GetState()
	trajectory.currentBBox = NewRectFromCenter(cx, cy, w, h)
	trajectory.observations++

	trajectory.track = append(trajectory.track, Point{X: cx, Y: cy})
	if len(trajectory.track) > trajectory.maxTrackLen {
		trajectory.track = trajectory.track[1:]
	}
	return nil
}

// GetVelocity returns current velocity estimates (vx, vy, vw, vh) from Kalman filter
func (trajectory *Trajectory) GetVelocity() (float64, float64, float64, float64) {
	return trajectory.tracker.GetVelocity()
}

// GetMahalanobisDistance returns the Mahalanobis distance between filter state and a box
func (trajectory *Trajectory) GetMahalanobisDistance(bbox Rectangle) (float64, error) {
	center := bbox.Center()
	return trajectory.tracker.MahalanobisDistance(center.X, center.Y, bbox.Width, bbox.Height)
}

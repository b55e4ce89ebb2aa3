package sot

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestNewTrajectory(t *testing.T) {
	id := uuid.New()
	bbox := NewRect(10, 20, 30, 40)
	trajectory := NewTrajectory(id, bbox)

	if trajectory.GetID() != id {
		t.Errorf("Expected ID %v, got %v", id, trajectory.GetID())
	}
	if trajectory.GetBBox() != bbox {
		t.Errorf("Expected bbox %v, got %v", bbox, trajectory.GetBBox())
	}
	if trajectory.GetObservations() != 1 {
		t.Errorf("Expected 1 observation, got %d", trajectory.GetObservations())
	}
	expectedCenter := Point{X: 25, Y: 40}
	if track := trajectory.GetTrack(); len(track) != 1 || track[0] != expectedCenter {
		t.Errorf("Expected track [%v], got %v", expectedCenter, track)
	}
}

func TestTrajectoryPredictNextPosition(t *testing.T) {
	trajectory := NewTrajectory(uuid.New(), NewRect(10, 20, 30, 40))
	trajectory.PredictNextPosition()
	predicted := trajectory.GetPredictedBBox()
	if predicted.Width <= 0 || predicted.Height <= 0 {
		t.Error("Predicted bbox should have positive dimensions")
	}
}

func TestTrajectoryObserve(t *testing.T) {
	trajectory := NewTrajectory(uuid.New(), NewRect(10, 20, 30, 40))
	err := trajectory.Observe(NewRect(15, 25, 32, 42))
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if len(trajectory.GetTrack()) != 2 {
		t.Errorf("Expected track length 2, got %d", len(trajectory.GetTrack()))
	}
	if trajectory.GetObservations() != 2 {
		t.Errorf("Expected 2 observations, got %d", trajectory.GetObservations())
	}
}

func TestTrajectorySizeTracking(t *testing.T) {
	trajectory := NewTrajectory(uuid.New(), NewRect(0, 0, 100, 100))
	// Object growing over several frames
	for _, side := range []float64{102, 104, 106, 108} {
		if err := trajectory.Observe(NewRect(0, 0, side, side)); err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
	}
	_, _, vw, vh := trajectory.GetVelocity()
	if vw <= 0 {
		t.Errorf("Width velocity should be positive for growing object, got %f", vw)
	}
	if vh <= 0 {
		t.Errorf("Height velocity should be positive for growing object, got %f", vh)
	}
}

func TestTrajectoryMahalanobisDistance(t *testing.T) {
	trajectory := NewTrajectory(uuid.New(), NewRect(0, 0, 10, 10))
	near, err := trajectory.GetMahalanobisDistance(NewRect(0, 0, 10, 10))
	if err != nil {
		t.Fatal(err)
	}
	far, err := trajectory.GetMahalanobisDistance(NewRect(100, 100, 10, 10))
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(near) || math.IsNaN(far) || !(near < far) {
		t.Errorf("Distance to the same box should be lower than to a far one: %f vs %f", near, far)
	}
}

func TestTrajectoryMaxTrackLen(t *testing.T) {
	trajectory := NewTrajectory(uuid.New(), NewRect(0, 0, 10, 10))
	if trajectory.GetMaxTrackLen() != 150 {
		t.Errorf("Default max track len should be 150, got %d", trajectory.GetMaxTrackLen())
	}
	trajectory.SetMaxTrackLen(3)
	for i := 1; i <= 5; i++ {
		if err := trajectory.Observe(NewRect(float64(i), 0, 10, 10)); err != nil {
			t.Fatal(err)
		}
	}
	if len(trajectory.GetTrack()) != 3 {
		t.Errorf("Track should be capped at 3 points, got %d", len(trajectory.GetTrack()))
	}
}

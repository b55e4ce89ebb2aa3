package sot

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestTracker(t *testing.T, stub *stubScorer, hp Hyperparams, options ...TrackerOption) *Tracker {
	t.Helper()
	options = append([]TrackerOption{WithLogger(quietLogger())}, options...)
	tr, err := NewTracker(stub, hp, testDesign(), options...)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestTrackerThreeFrames(t *testing.T) {
	// Peak is 2 rows below and 1 column left of the center for every scale
	stub := &stubScorer{size: 16, peakDRow: 2, peakDCol: -1}
	tr := newTestTracker(t, stub, testHyperparams())
	frames := testFrames(3)
	ctx := context.Background()

	first, err := tr.Init(ctx, frames[0], NewTargetRegion(NewRect(10, 10, 20, 20)))
	if err != nil {
		t.Fatal(err)
	}
	if tr.Status() != StatusInitialized {
		t.Errorf("Expected status %s, got %s", StatusInitialized, tr.Status())
	}
	expected := []Rectangle{
		NewRect(10, 10, 20, 20),
		NewRect(2, 26, 20, 20),
		NewRect(-6, 42, 20, 20),
	}
	if first != expected[0] {
		t.Errorf("Frame 0: expected %+v, got %+v", expected[0], first)
	}
	for i := 1; i < len(frames); i++ {
		bbox, err := tr.Update(ctx, frames[i])
		if err != nil {
			t.Fatalf("Frame %d: %v", i, err)
		}
		if bbox != expected[i] {
			t.Errorf("Frame %d: expected %+v, got %+v", i, expected[i], bbox)
		}
	}
	if tr.Status() != StatusTracking {
		t.Errorf("Expected status %s, got %s", StatusTracking, tr.Status())
	}
	boxes := tr.Boxes()
	if len(boxes) != len(frames) {
		t.Fatalf("Expected %d boxes, got %d", len(frames), len(boxes))
	}
	for idx, bbox := range tr.All() {
		if bbox != expected[idx] {
			t.Errorf("Iterator frame %d: expected %+v, got %+v", idx, expected[idx], bbox)
		}
	}
	// Template is refreshed at the new center with the previous exemplar size
	lastEmbed := stub.lastEmbedReqs[len(stub.lastEmbedReqs)-1]
	if lastEmbed.Center != (Point{X: 4, Y: 52}) {
		t.Errorf("Expected last embedding at (4, 52), got %+v", lastEmbed.Center)
	}
	if lastEmbed.ExemplarSize != 40 {
		t.Errorf("Expected last embedding with exemplar size 40, got %v", lastEmbed.ExemplarSize)
	}
	if stub.embedCalls != 3 {
		t.Errorf("Expected 3 embeddings, got %d", stub.embedCalls)
	}
}

func TestTrackerSearchSizesFollowScaleFactors(t *testing.T) {
	stub := &stubScorer{size: 16}
	tr := newTestTracker(t, stub, testHyperparams())
	frames := testFrames(2)
	ctx := context.Background()
	if _, err := tr.Init(ctx, frames[0], NewTargetRegion(NewRect(10, 10, 20, 20))); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Update(ctx, frames[1]); err != nil {
		t.Fatal(err)
	}
	factors := tr.ScaleFactors()
	sizes := stub.lastScoreReq.SearchSizes
	for i := range factors {
		if sizes[i] != 100*factors[i] {
			t.Errorf("Search size %d: expected %v, got %v", i, 100*factors[i], sizes[i])
		}
	}
}

func TestTrackerFrozenTemplate(t *testing.T) {
	stub := &stubScorer{size: 16, peakDRow: 1, peakDCol: 1}
	hp := testHyperparams()
	hp.ZLR = 0
	tr := newTestTracker(t, stub, hp)
	frames := testFrames(5)
	ctx := context.Background()
	if _, err := tr.Init(ctx, frames[0], NewTargetRegion(NewRect(10, 10, 20, 20))); err != nil {
		t.Fatal(err)
	}
	initial := tr.State().Template
	for i := 1; i < len(frames); i++ {
		if _, err := tr.Update(ctx, frames[i]); err != nil {
			t.Fatal(err)
		}
	}
	current := tr.State().Template
	for i := range initial.Data {
		if current.Data[i] != initial.Data[i] {
			t.Errorf("Template element %d changed: %v != %v", i, current.Data[i], initial.Data[i])
		}
	}
	if stub.embedCalls != 1 {
		t.Errorf("Expected only initial embedding, got %d", stub.embedCalls)
	}
}

func TestTrackerMalformedScorer(t *testing.T) {
	// Two maps for three scales
	stub := &stubScorer{size: 16, mapsCount: 2}
	tr := newTestTracker(t, stub, testHyperparams())
	frames := testFrames(3)
	ctx := context.Background()
	if _, err := tr.Init(ctx, frames[0], NewTargetRegion(NewRect(10, 10, 20, 20))); err != nil {
		t.Fatal(err)
	}
	before := tr.State()
	_, err := tr.Update(ctx, frames[1])
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
	if tr.Status() != StatusFailed {
		t.Errorf("Expected status %s, got %s", StatusFailed, tr.Status())
	}
	if len(tr.Boxes()) != 1 {
		t.Errorf("Expected only initial box, got %d boxes", len(tr.Boxes()))
	}
	after := tr.State()
	if after.CenterX != before.CenterX || after.CenterY != before.CenterY || after.SearchSize != before.SearchSize {
		t.Error("Failed frame should not change state")
	}
	if _, err = tr.Update(ctx, frames[2]); !errors.Is(err, ErrTrackerFailed) {
		t.Errorf("Expected tracker failed error, got %v", err)
	}
}

func TestTrackerUpdateBeforeInit(t *testing.T) {
	tr := newTestTracker(t, &stubScorer{size: 16}, testHyperparams())
	if tr.Status() != StatusNew {
		t.Errorf("Expected status %s, got %s", StatusNew, tr.Status())
	}
	if _, err := tr.Update(context.Background(), testFrames(1)[0]); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected not initialized error, got %v", err)
	}
}

func TestTrackerDegenerateInit(t *testing.T) {
	tr := newTestTracker(t, &stubScorer{size: 16}, testHyperparams())
	_, err := tr.Init(context.Background(), testFrames(1)[0], NewTargetRegion(NewRect(10, 10, 0, 20)))
	if !errors.Is(err, ErrDegenerateBox) {
		t.Errorf("Expected degenerate box error, got %v", err)
	}
	if tr.Status() != StatusFailed {
		t.Errorf("Expected status %s, got %s", StatusFailed, tr.Status())
	}
	if len(tr.Boxes()) != 0 {
		t.Errorf("Expected no boxes, got %d", len(tr.Boxes()))
	}
}

func TestTrackerInvalidConfiguration(t *testing.T) {
	hp := testHyperparams()
	hp.ScaleNum = 4
	if _, err := NewTracker(&stubScorer{size: 16}, hp, testDesign()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected configuration error for even scale number, got %v", err)
	}
	if _, err := NewTracker(nil, testHyperparams(), testDesign()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected configuration error for nil scorer, got %v", err)
	}
}

func TestTrackerPrecomputed(t *testing.T) {
	hp := testHyperparams()
	hp.ResponseUp = 16
	tr := newTestTracker(t, &stubScorer{size: 256}, hp)
	if tr.FinalScoreSize() != 256 {
		t.Errorf("Expected final score size 256, got %d", tr.FinalScoreSize())
	}
	rows, cols := tr.PenaltyWindow().Dims()
	if rows != 256 || cols != 256 {
		t.Errorf("Expected 256x256 penalty, got %dx%d", rows, cols)
	}
	if len(tr.ScaleFactors()) != 3 {
		t.Errorf("Expected 3 scale factors, got %d", len(tr.ScaleFactors()))
	}
}

func TestTrackerRun(t *testing.T) {
	stub := &stubScorer{size: 16, peakDRow: 2, peakDCol: -1}
	id := uuid.New()
	tr := newTestTracker(t, stub, testHyperparams(), WithID(id), WithMotionModel(1.0/25.0))
	result, err := tr.Run(context.Background(), NewSliceFrames(testFrames(3)...), NewTargetRegion(NewRect(10, 10, 20, 20)))
	if err != nil {
		t.Fatal(err)
	}
	if result.ID != id || tr.GetID() != id {
		t.Errorf("Expected result ID %v, got %v", id, result.ID)
	}
	expected := []Rectangle{NewRect(10, 10, 20, 20), NewRect(2, 26, 20, 20), NewRect(-6, 42, 20, 20)}
	if len(result.Boxes) != len(expected) {
		t.Fatalf("Expected %d boxes, got %d", len(expected), len(result.Boxes))
	}
	// Iteration restarts from the first frame on every call
	for pass := 0; pass < 2; pass++ {
		count := 0
		for idx, bbox := range result.All() {
			if idx != count {
				t.Errorf("Expected frame index %d, got %d", count, idx)
			}
			if bbox != expected[idx] {
				t.Errorf("Pass %d, frame %d: expected %+v, got %+v", pass, idx, expected[idx], bbox)
			}
			count++
		}
		if count != len(expected) {
			t.Errorf("Pass %d: expected %d boxes, got %d", pass, len(expected), count)
		}
	}
	if result.Trajectory == nil {
		t.Fatal("Expected trajectory with motion model enabled")
	}
	if result.Trajectory.GetObservations() != 3 {
		t.Errorf("Expected 3 observations, got %d", result.Trajectory.GetObservations())
	}
	if len(result.Trajectory.GetTrack()) != 3 {
		t.Errorf("Expected track of 3 points, got %d", len(result.Trajectory.GetTrack()))
	}
}

func TestTrackerRunFailure(t *testing.T) {
	stub := &stubScorer{size: 16, failAfter: 2}
	tr := newTestTracker(t, stub, testHyperparams())
	result, err := tr.Run(context.Background(), NewSliceFrames(testFrames(5)...), NewTargetRegion(NewRect(10, 10, 20, 20)))
	if err == nil {
		t.Fatal("Expected error from failing scorer")
	}
	if result != nil {
		t.Error("Failed run should return no result")
	}
	if len(tr.Boxes()) != 3 {
		t.Errorf("Expected 3 committed boxes, got %d", len(tr.Boxes()))
	}
	if tr.Status() != StatusFailed {
		t.Errorf("Expected status %s, got %s", StatusFailed, tr.Status())
	}
}

func TestTrackerRunEmpty(t *testing.T) {
	tr := newTestTracker(t, &stubScorer{size: 16}, testHyperparams())
	_, err := tr.Run(context.Background(), NewSliceFrames(), NewTargetRegion(NewRect(10, 10, 20, 20)))
	if !errors.Is(err, ErrFrameCount) {
		t.Errorf("Expected frame count error, got %v", err)
	}
}

func TestTrackerRunCancelled(t *testing.T) {
	tr := newTestTracker(t, &stubScorer{size: 16}, testHyperparams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Run(ctx, NewSliceFrames(testFrames(3)...), NewTargetRegion(NewRect(10, 10, 20, 20)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation error, got %v", err)
	}
}

func TestTrackerReinit(t *testing.T) {
	stub := &stubScorer{size: 16, mapsCount: 2}
	tr := newTestTracker(t, stub, testHyperparams())
	frames := testFrames(2)
	ctx := context.Background()
	if _, err := tr.Init(ctx, frames[0], NewTargetRegion(NewRect(10, 10, 20, 20))); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Update(ctx, frames[1]); err == nil {
		t.Fatal("Expected failure")
	}
	stub.mapsCount = 0
	if _, err := tr.Init(ctx, frames[0], NewTargetRegion(NewRect(0, 0, 10, 10))); err != nil {
		t.Fatal(err)
	}
	if tr.Status() != StatusInitialized {
		t.Errorf("Expected status %s after restart, got %s", StatusInitialized, tr.Status())
	}
	if _, err := tr.Update(ctx, frames[1]); err != nil {
		t.Fatal(err)
	}
	if len(tr.Boxes()) != 2 {
		t.Errorf("Expected 2 boxes after restart, got %d", len(tr.Boxes()))
	}
}

func TestTrackerReinitKeepsEarlierIterator(t *testing.T) {
	stub := &stubScorer{size: 16, peakDRow: 2, peakDCol: -1}
	tr := newTestTracker(t, stub, testHyperparams())
	ctx := context.Background()
	result, err := tr.Run(ctx, NewSliceFrames(testFrames(3)...), NewTargetRegion(NewRect(10, 10, 20, 20)))
	if err != nil {
		t.Fatal(err)
	}
	seq := tr.All()
	if _, err = tr.Init(ctx, testFrames(1)[0], NewTargetRegion(NewRect(100, 100, 4, 4))); err != nil {
		t.Fatal(err)
	}
	count := 0
	for idx, bbox := range seq {
		if bbox != result.Boxes[idx] {
			t.Errorf("Frame %d: expected %+v from the finished run, got %+v", idx, result.Boxes[idx], bbox)
		}
		count++
	}
	if count != 3 {
		t.Errorf("Expected 3 boxes from the finished run, got %d", count)
	}
	if boxes := tr.Boxes(); len(boxes) != 1 || boxes[0] != NewRect(100, 100, 4, 4) {
		t.Errorf("Expected only the restarted box, got %+v", boxes)
	}
}

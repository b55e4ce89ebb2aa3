package sot

import (
	"context"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// stubScorer returns the same score map for every scale: zeros with a single peak shifted from the center.
// Embedding is a fixed vector plus the number of Embed calls, so template refreshes are observable.
type stubScorer struct {
	size     int
	peakDRow int
	peakDCol int
	// Overrides number of returned maps when > 0
	mapsCount int
	// Per-scale peak values. Defaults to 1 for every scale
	peaks []float64
	// Fails every Score call after this many successful ones when > 0
	failAfter int

	embedCalls    int
	scoreCalls    int
	lastEmbedReqs []EmbedRequest
	lastScoreReq  ScoreRequest
}

func (stub *stubScorer) Embed(ctx context.Context, req EmbedRequest) (Template, error) {
	stub.embedCalls++
	stub.lastEmbedReqs = append(stub.lastEmbedReqs, req)
	data := make([]float64, 4)
	for i := range data {
		data[i] = float64(i+1) + float64(stub.embedCalls)
	}
	return Template{Shape: []int{2, 2}, Data: data}, nil
}

func (stub *stubScorer) Score(ctx context.Context, req ScoreRequest) (ScoreResponse, error) {
	if stub.failAfter > 0 && stub.scoreCalls >= stub.failAfter {
		return ScoreResponse{}, errors.New("scorer is gone")
	}
	stub.scoreCalls++
	stub.lastScoreReq = req
	count := len(req.SearchSizes)
	if stub.mapsCount > 0 {
		count = stub.mapsCount
	}
	maps := make([]*mat.Dense, count)
	for i := range maps {
		value := 1.0
		if i < len(stub.peaks) {
			value = stub.peaks[i]
		}
		maps[i] = peakMap(stub.size, stub.size/2+stub.peakDRow, stub.size/2+stub.peakDCol, 0, value)
	}
	return ScoreResponse{Maps: maps}, nil
}

func testHyperparams() Hyperparams {
	return Hyperparams{
		ScaleStep:       1.0375,
		ScaleNum:        3,
		ScaleLR:         0.59,
		ScalePenalty:    0.9745,
		WindowInfluence: 0,
		ResponseUp:      1,
		ZLR:             0.01,
		ScaleMin:        0.2,
		ScaleMax:        5,
	}
}

func testFrames(n int) []image.Image {
	frames := make([]image.Image, n)
	for i := range frames {
		img := image.NewGray(image.Rect(0, 0, 64, 64))
		img.SetGray(i, i, color.Gray{Y: 255})
		frames[i] = img
	}
	return frames
}

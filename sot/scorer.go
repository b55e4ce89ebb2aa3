package sot

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Scorer is the similarity engine. It turns an appearance template and candidate regions of a frame into score maps.
// Calls are blocking; tracker waits for the result before going on.
type Scorer interface {
	// Embed extracts appearance template from the square region of side ExemplarSize centered at Center
	Embed(ctx context.Context, req EmbedRequest) (Template, error)
	// Score returns one score map per search size. Every map must be final_score_sz x final_score_sz
	Score(ctx context.Context, req ScoreRequest) (ScoreResponse, error)
}

// EmbedRequest is input of Scorer.Embed
type EmbedRequest struct {
	Frame        image.Image
	Center       Point
	ExemplarSize float64
}

// ScoreRequest is input of Scorer.Score
type ScoreRequest struct {
	Frame       image.Image
	Template    Template
	Center      Point
	SearchSizes []float64
}

// ScoreResponse is output of Scorer.Score. Maps are ordered the same way as ScoreRequest.SearchSizes
type ScoreResponse struct {
	Maps []*mat.Dense
}

// Template is an appearance embedding owned by the scorer.
// Tracker never changes elements of Data: blending always produces a new Template.
type Template struct {
	Shape []int
	Data  []float64
}

// Len returns number of elements in template
func (t Template) Len() int {
	return len(t.Data)
}

// Clone returns deep copy of template
func (t Template) Clone() Template {
	clone := Template{
		Shape: make([]int, len(t.Shape)),
		Data:  make([]float64, len(t.Data)),
	}
	copy(clone.Shape, t.Shape)
	copy(clone.Data, t.Data)
	return clone
}

// Blend returns (1-rate)*t + rate*fresh as a new template
func (t Template) Blend(fresh Template, rate float64) (Template, error) {
	if len(fresh.Data) != len(t.Data) {
		return Template{}, errors.Wrapf(ErrConfiguration, "template length mismatch: %d != %d", len(fresh.Data), len(t.Data))
	}
	if len(fresh.Shape) != len(t.Shape) {
		return Template{}, errors.Wrapf(ErrConfiguration, "template shape mismatch: %v != %v", fresh.Shape, t.Shape)
	}
	for i := range t.Shape {
		if t.Shape[i] != fresh.Shape[i] {
			return Template{}, errors.Wrapf(ErrConfiguration, "template shape mismatch: %v != %v", fresh.Shape, t.Shape)
		}
	}
	blended := Template{
		Shape: make([]int, len(t.Shape)),
		Data:  make([]float64, len(t.Data)),
	}
	copy(blended.Shape, t.Shape)
	for i, v := range t.Data {
		blended.Data[i] = (1-rate)*v + rate*fresh.Data[i]
	}
	return blended, nil
}

// validateTemplate checks that scorer produced a usable template
func validateTemplate(t Template) error {
	if len(t.Data) == 0 {
		return errors.Wrap(ErrConfiguration, "scorer returned empty template")
	}
	for _, v := range t.Data {
		if !isFinite(v) {
			return errors.Wrap(ErrConfiguration, "scorer returned template with non-finite values")
		}
	}
	return nil
}

// Package xcorr is a pixel-level scorer: normalized cross-correlation of pooled grayscale crops.
// It needs no model weights and serves as reference sot.Scorer.
package xcorr

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/LdDl/sot-go/sot"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Scorer implements sot.Scorer
type Scorer struct {
	exemplarPx     int
	searchPx       int
	stride         int
	exemplarCells  int
	searchCells    int
	scoreSize      int
	finalScoreSize int
	padWithMean    bool
}

// Option configures Scorer
type Option func(*Scorer)

// WithMeanPadding sets whether area outside of the frame is filled with the mean frame color (default) or black
func WithMeanPadding(enabled bool) Option {
	return func(scorer *Scorer) {
		scorer.padWithMean = enabled
	}
}

// New creates scorer for the design. Crop sides divided by stride must produce score_sz x score_sz maps.
func New(design sot.Design, finalScoreSize int, options ...Option) (*Scorer, error) {
	if err := design.Validate(); err != nil {
		return nil, err
	}
	stride := int(math.Round(design.TotalStride))
	if stride < 1 || float64(stride) != design.TotalStride {
		return nil, errors.Wrapf(sot.ErrConfiguration, "stride should be positive integer, got %f", design.TotalStride)
	}
	scorer := &Scorer{
		exemplarPx:     int(math.Round(design.ExemplarSize)),
		searchPx:       int(math.Round(design.SearchSize)),
		stride:         stride,
		scoreSize:      design.ScoreSize,
		finalScoreSize: finalScoreSize,
		padWithMean:    true,
	}
	scorer.exemplarCells = scorer.exemplarPx / stride
	scorer.searchCells = scorer.searchPx / stride
	if scorer.exemplarCells < 1 {
		return nil, errors.Wrapf(sot.ErrConfiguration, "exemplar size %d is smaller than stride %d", scorer.exemplarPx, stride)
	}
	if got := scorer.searchCells - scorer.exemplarCells + 1; got != design.ScoreSize {
		return nil, errors.Wrapf(sot.ErrConfiguration, "design gives %dx%d score maps, score_sz is %d", got, got, design.ScoreSize)
	}
	if finalScoreSize < design.ScoreSize {
		return nil, errors.Wrapf(sot.ErrConfiguration, "final score size %d is smaller than score size %d", finalScoreSize, design.ScoreSize)
	}
	for _, option := range options {
		option(scorer)
	}
	return scorer, nil
}

func (scorer *Scorer) padColor(frame image.Image) color.Color {
	if scorer.padWithMean {
		return meanColor(frame)
	}
	return color.Black
}

// Embed returns zero-mean unit-norm pooled grayscale of the exemplar region
func (scorer *Scorer) Embed(ctx context.Context, req sot.EmbedRequest) (sot.Template, error) {
	if err := ctx.Err(); err != nil {
		return sot.Template{}, err
	}
	if req.Frame == nil {
		return sot.Template{}, errors.New("frame is nil")
	}
	gray := cropGray(req.Frame, req.Center.X, req.Center.Y, req.ExemplarSize, scorer.exemplarPx, scorer.padColor(req.Frame))
	features := pool(gray, scorer.stride)
	data := features.RawMatrix().Data
	floats.AddConst(-floats.Sum(data)/float64(len(data)), data)
	if norm := floats.Norm(data, 2); norm > 1e-12 {
		floats.Scale(1/norm, data)
	}
	return sot.Template{
		Shape: []int{scorer.exemplarCells, scorer.exemplarCells},
		Data:  data,
	}, nil
}

// Score correlates template with search region of every size. Scales run concurrently.
func (scorer *Scorer) Score(ctx context.Context, req sot.ScoreRequest) (sot.ScoreResponse, error) {
	if req.Frame == nil {
		return sot.ScoreResponse{}, errors.New("frame is nil")
	}
	if req.Template.Len() != scorer.exemplarCells*scorer.exemplarCells {
		return sot.ScoreResponse{}, errors.Wrapf(sot.ErrConfiguration, "template has %d elements, expected %d", req.Template.Len(), scorer.exemplarCells*scorer.exemplarCells)
	}
	template := mat.NewDense(scorer.exemplarCells, scorer.exemplarCells, req.Template.Data)
	pad := scorer.padColor(req.Frame)
	maps := make([]*mat.Dense, len(req.SearchSizes))
	g, gctx := errgroup.WithContext(ctx)
	for i, size := range req.SearchSizes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gray := cropGray(req.Frame, req.Center.X, req.Center.Y, size, scorer.searchPx, pad)
			features := pool(gray, scorer.stride)
			maps[i] = upsample(ncc(template, features), scorer.finalScoreSize)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sot.ScoreResponse{}, errors.Wrap(err, "Can't score search regions")
	}
	return sot.ScoreResponse{Maps: maps}, nil
}

// ncc slides zero-mean template over search features. Template must be zero-mean and unit-norm,
// windows are normalized with integral images.
func ncc(template, search *mat.Dense) *mat.Dense {
	th, tw := template.Dims()
	sh, sw := search.Dims()
	outH, outW := sh-th+1, sw-tw+1
	integral, integralSq := integralImages(search)
	n := float64(th * tw)
	scores := mat.NewDense(outH, outW, nil)
	for r := 0; r < outH; r++ {
		for c := 0; c < outW; c++ {
			sum := windowSum(integral, r, c, th, tw)
			sumSq := windowSum(integralSq, r, c, th, tw)
			variance := sumSq - sum*sum/n
			if variance <= 1e-12 {
				continue
			}
			dot := 0.0
			for i := 0; i < th; i++ {
				for j := 0; j < tw; j++ {
					dot += template.At(i, j) * search.At(r+i, c+j)
				}
			}
			scores.Set(r, c, dot/math.Sqrt(variance))
		}
	}
	return scores
}

// integralImages returns summed-area tables of values and squared values with one row and column of zero padding
func integralImages(m *mat.Dense) (*mat.Dense, *mat.Dense) {
	rows, cols := m.Dims()
	integral := mat.NewDense(rows+1, cols+1, nil)
	integralSq := mat.NewDense(rows+1, cols+1, nil)
	for r := 1; r <= rows; r++ {
		rowSum, rowSumSq := 0.0, 0.0
		for c := 1; c <= cols; c++ {
			v := m.At(r-1, c-1)
			rowSum += v
			rowSumSq += v * v
			integral.Set(r, c, integral.At(r-1, c)+rowSum)
			integralSq.Set(r, c, integralSq.At(r-1, c)+rowSumSq)
		}
	}
	return integral, integralSq
}

func windowSum(integral *mat.Dense, r, c, h, w int) float64 {
	return integral.At(r+h, c+w) - integral.At(r, c+w) - integral.At(r+h, c) + integral.At(r, c)
}

// upsample resizes square map to size x size with bilinear interpolation on pixel centers
func upsample(m *mat.Dense, size int) *mat.Dense {
	rows, cols := m.Dims()
	if rows == size && cols == size {
		return m
	}
	out := mat.NewDense(size, size, nil)
	fy := float64(rows) / float64(size)
	fx := float64(cols) / float64(size)
	for y := 0; y < size; y++ {
		y0, y1, dy := sourceIndex(y, fy, rows)
		for x := 0; x < size; x++ {
			x0, x1, dx := sourceIndex(x, fx, cols)
			top := m.At(y0, x0)*(1-dx) + m.At(y0, x1)*dx
			bottom := m.At(y1, x0)*(1-dx) + m.At(y1, x1)*dx
			out.Set(y, x, top*(1-dy)+bottom*dy)
		}
	}
	return out
}

func sourceIndex(i int, factor float64, n int) (int, int, float64) {
	s := (float64(i)+0.5)*factor - 0.5
	if s < 0 {
		s = 0
	} else if s > float64(n-1) {
		s = float64(n - 1)
	}
	i0 := int(math.Floor(s))
	i1 := i0 + 1
	if i1 >= n {
		i1 = n - 1
	}
	return i0, i1, s - float64(i0)
}

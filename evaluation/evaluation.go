package evaluation

import (
	"math"

	"github.com/LdDl/sot-go/sot"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

const (
	// Number of center distance thresholds of the precision curve
	precisionThresholds = 50
	// Largest threshold of the precision curve, pixels
	maxPrecisionThreshold = 25.0
)

// Metrics summarizes tracking quality of a run against ground truth
type Metrics struct {
	Frames int `json:"frames"`
	// Percentage of frames with center distance below threshold
	Precision float64 `json:"precision"`
	// Area under precision curve over thresholds in (0, 25] pixels
	PrecisionAUC float64 `json:"precision_auc"`
	// Mean IoU, percents
	IoU float64 `json:"iou"`
	// Tracking speed. Zero when unknown
	FramesPerSecond float64 `json:"fps"`

	Distances []float64 `json:"-"`
	IoUs      []float64 `json:"-"`
}

// Evaluate compares tracked boxes with ground truth boxes frame by frame
func Evaluate(boxes, groundTruth []sot.Rectangle, distThreshold float64) (Metrics, error) {
	if len(boxes) != len(groundTruth) {
		return Metrics{}, errors.Wrapf(sot.ErrFrameCount, "%d boxes and %d ground truth records", len(boxes), len(groundTruth))
	}
	if len(boxes) == 0 {
		return Metrics{}, errors.Wrap(sot.ErrFrameCount, "nothing to evaluate")
	}
	n := len(boxes)
	distances := make([]float64, n)
	ious := make([]float64, n)
	for i := range boxes {
		distances[i] = sot.CenterDistance(boxes[i], groundTruth[i])
		ious[i] = sot.IoU(boxes[i], groundTruth[i])
	}
	return Metrics{
		Frames:       n,
		Precision:    fractionBelow(distances, distThreshold) * 100,
		PrecisionAUC: precisionAUC(distances),
		IoU:          stat.Mean(ious, nil) * 100,
		Distances:    distances,
		IoUs:         ious,
	}, nil
}

func fractionBelow(values []float64, threshold float64) float64 {
	count := 0
	for _, v := range values {
		if v < threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

// precisionAUC integrates fraction of frames below each threshold with unit spacing.
// Thresholds go from 25 down to 0.5 pixels.
func precisionAUC(distances []float64) float64 {
	xs := make([]float64, precisionThresholds)
	fractions := make([]float64, precisionThresholds)
	step := maxPrecisionThreshold / precisionThresholds
	for i := range fractions {
		threshold := maxPrecisionThreshold - float64(i)*step
		xs[i] = float64(i)
		fractions[i] = fractionBelow(distances, threshold)
	}
	return integrate.Trapezoidal(xs, fractions)
}

// SubsequenceStarts returns first frames of n sub-sequences spread evenly over the video
func SubsequenceStarts(numFrames, n int) []int {
	if n < 1 || numFrames < 1 {
		return []int{}
	}
	span := floats.Span(make([]float64, n+1), 0, float64(numFrames-1))
	starts := make([]int, n)
	for k := range starts {
		starts[k] = int(math.RoundToEven(span[k]))
	}
	return starts
}

// Aggregate averages metrics of several runs with equal weights. Frames are summed
func Aggregate(runs []Metrics) Metrics {
	if len(runs) == 0 {
		return Metrics{}
	}
	precision := make([]float64, len(runs))
	auc := make([]float64, len(runs))
	iou := make([]float64, len(runs))
	fps := make([]float64, len(runs))
	total := Metrics{}
	for i, run := range runs {
		precision[i] = run.Precision
		auc[i] = run.PrecisionAUC
		iou[i] = run.IoU
		fps[i] = run.FramesPerSecond
		total.Frames += run.Frames
	}
	total.Precision = stat.Mean(precision, nil)
	total.PrecisionAUC = stat.Mean(auc, nil)
	total.IoU = stat.Mean(iou, nil)
	total.FramesPerSecond = stat.Mean(fps, nil)
	return total
}

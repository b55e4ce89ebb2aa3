package dataset

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/LdDl/sot-go/sot"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Region is a ground truth record: either 4 values <x, y, w, h> or 8 values of a polygon <x1, y1, ..., x4, y4>
type Region []float64

// ErrRegionFormat is returned for records which are neither rectangles nor polygons
var ErrRegionFormat = errors.New("region should have 4 or 8 values")

// ReadGroundTruth parses one region per line. Values are separated by commas, tabs or spaces.
// Empty lines are skipped.
func ReadGroundTruth(r io.Reader) ([]Region, error) {
	regions := []Region{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.FieldsFunc(text, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t' || c == ';'
		})
		if len(fields) != 4 && len(fields) != 8 {
			return nil, errors.Wrapf(ErrRegionFormat, "line %d has %d values", line, len(fields))
		}
		region := make(Region, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't parse value %d on line %d", i, line)
			}
			region[i] = v
		}
		regions = append(regions, region)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Can't read ground truth")
	}
	return regions, nil
}

// LoadGroundTruth reads ground truth file
func LoadGroundTruth(path string) ([]Region, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open ground truth '%s'", path)
	}
	defer file.Close()
	return ReadGroundTruth(file)
}

// RegionToTarget converts region to target center and size.
// Polygons become axis-aligned box with the same center and the area of the polygon.
func RegionToTarget(region Region) (sot.TargetRegion, error) {
	switch len(region) {
	case 4:
		return sot.NewTargetRegion(sot.NewRect(region[0], region[1], region[2], region[3])), nil
	case 8:
		return polygonToTarget(region), nil
	default:
		return sot.TargetRegion{}, errors.Wrapf(ErrRegionFormat, "got %d values", len(region))
	}
}

// RegionToRect converts region to box in top-left format
func RegionToRect(region Region) (sot.Rectangle, error) {
	target, err := RegionToTarget(region)
	if err != nil {
		return sot.Rectangle{}, err
	}
	return target.Rect(), nil
}

func polygonToTarget(region Region) sot.TargetRegion {
	xs := []float64{region[0], region[2], region[4], region[6]}
	ys := []float64{region[1], region[3], region[5], region[7]}
	cx := floats.Sum(xs) / 4
	cy := floats.Sum(ys) / 4
	x1, x2 := floats.Min(xs), floats.Max(xs)
	y1, y2 := floats.Min(ys), floats.Max(ys)
	// Area of the rotated rectangle given by its first two sides
	side1 := math.Hypot(region[0]-region[2], region[1]-region[3])
	side2 := math.Hypot(region[2]-region[4], region[3]-region[5])
	polygonArea := side1 * side2
	boxArea := (x2 - x1) * (y2 - y1)
	s := 1.0
	if boxArea > 0 {
		s = math.Sqrt(polygonArea / boxArea)
	}
	return sot.TargetRegion{
		Center: sot.Point{X: cx, Y: cy},
		Width:  s*(x2-x1) + 1,
		Height: s*(y2-y1) + 1,
	}
}

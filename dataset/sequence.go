package dataset

import (
	"image"
	// Decoders for frames
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/LdDl/sot-go/sot"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// GroundTruthFile is the name of ground truth file inside video directory
const GroundTruthFile = "groundtruth.txt"

var frameExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// Sequence is a video with one ground truth region per frame
type Sequence struct {
	Name        string
	Dir         string
	Frames      []string
	GroundTruth []Region
	FrameSize   image.Point
	// Index of the first frame in the original video
	Offset int
}

// ListFrames returns sorted paths of image files in dir
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't list frames in '%s'", dir)
	}
	frames := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			frames = append(frames, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

// ListVideos returns sorted names of video directories of the dataset
func ListVideos(root, dataset string) ([]string, error) {
	dir := filepath.Join(root, dataset)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't list videos in '%s'", dir)
	}
	videos := []string{}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			videos = append(videos, entry.Name())
		}
	}
	sort.Strings(videos)
	return videos, nil
}

// LoadSequence reads frame list and ground truth of the video in dir
func LoadSequence(dir string) (*Sequence, error) {
	frames, err := ListFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, errors.Wrapf(sot.ErrFrameCount, "no frames in '%s'", dir)
	}
	gt, err := LoadGroundTruth(filepath.Join(dir, GroundTruthFile))
	if err != nil {
		return nil, err
	}
	if len(gt) != len(frames) {
		return nil, errors.Wrapf(sot.ErrFrameCount, "'%s' has %d frames and %d ground truth records", dir, len(frames), len(gt))
	}
	size, err := FrameSize(frames[0])
	if err != nil {
		return nil, err
	}
	return &Sequence{
		Name:        filepath.Base(dir),
		Dir:         dir,
		Frames:      frames,
		GroundTruth: gt,
		FrameSize:   size,
	}, nil
}

// Len returns number of frames
func (seq *Sequence) Len() int {
	return len(seq.Frames)
}

// From returns sub-sequence starting at frame start
func (seq *Sequence) From(start int) (*Sequence, error) {
	if start < 0 || start >= len(seq.Frames) {
		return nil, errors.Errorf("start frame %d is out of range [0, %d)", start, len(seq.Frames))
	}
	return &Sequence{
		Name:        seq.Name,
		Dir:         seq.Dir,
		Frames:      seq.Frames[start:],
		GroundTruth: seq.GroundTruth[start:],
		FrameSize:   seq.FrameSize,
		Offset:      seq.Offset + start,
	}, nil
}

// InitialTarget returns target region of the first frame
func (seq *Sequence) InitialTarget() (sot.TargetRegion, error) {
	return RegionToTarget(seq.GroundTruth[0])
}

// GroundTruthBoxes converts every region to box in top-left format
func (seq *Sequence) GroundTruthBoxes() ([]sot.Rectangle, error) {
	boxes := make([]sot.Rectangle, len(seq.GroundTruth))
	for i, region := range seq.GroundTruth {
		bbox, err := RegionToRect(region)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't convert region of frame %d", seq.Offset+i)
		}
		boxes[i] = bbox
	}
	return boxes, nil
}

// FrameSize returns dimensions of the image without decoding pixels
func FrameSize(path string) (image.Point, error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Point{}, errors.Wrapf(err, "Can't open frame '%s'", path)
	}
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return image.Point{}, errors.Wrapf(err, "Can't decode frame header '%s'", path)
	}
	return image.Point{X: cfg.Width, Y: cfg.Height}, nil
}

// DecodeFrame reads and decodes the image
func DecodeFrame(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open frame '%s'", path)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't decode frame '%s'", path)
	}
	return img, nil
}

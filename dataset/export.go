package dataset

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/LdDl/sot-go/sot"
	"github.com/pkg/errors"
)

// WriteBoxes writes one box per line as x,y,w,h
func WriteBoxes(w io.Writer, boxes []sot.Rectangle) error {
	writer := csv.NewWriter(w)
	for i, bbox := range boxes {
		record := []string{
			strconv.FormatFloat(bbox.X, 'f', 4, 64),
			strconv.FormatFloat(bbox.Y, 'f', 4, 64),
			strconv.FormatFloat(bbox.Width, 'f', 4, 64),
			strconv.FormatFloat(bbox.Height, 'f', 4, 64),
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrapf(err, "Can't write box of frame %d", i)
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "Can't flush boxes")
}

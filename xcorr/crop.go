package xcorr

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/gift"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"
)

// meanColor returns average color of the frame
func meanColor(frame image.Image) color.RGBA64 {
	b := frame.Bounds()
	if b.Empty() {
		return color.RGBA64{}
	}
	var sr, sg, sb, sa float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, a := frame.At(x, y).RGBA()
			sr += float64(r)
			sg += float64(g)
			sb += float64(bb)
			sa += float64(a)
		}
	}
	n := float64(b.Dx() * b.Dy())
	return color.RGBA64{
		R: uint16(math.Round(sr / n)),
		G: uint16(math.Round(sg / n)),
		B: uint16(math.Round(sb / n)),
		A: uint16(math.Round(sa / n)),
	}
}

// cropRect returns square of side round(size) centered at (cx, cy)
func cropRect(cx, cy, size float64) image.Rectangle {
	side := int(math.Round(size))
	if side < 1 {
		side = 1
	}
	x0 := int(math.Round(cx - float64(side)/2))
	y0 := int(math.Round(cy - float64(side)/2))
	return image.Rect(x0, y0, x0+side, y0+side)
}

// cropGray cuts square region of the frame, fills area outside the frame with pad color,
// rescales it to out x out pixels and converts to grayscale
func cropGray(frame image.Image, cx, cy, size float64, out int, pad color.Color) *image.Gray {
	rect := cropRect(cx, cy, size)
	canvas := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(pad), image.Point{}, draw.Src)
	// Draw clips to the frame bounds, pixels outside keep the pad color
	draw.Draw(canvas, canvas.Bounds(), frame, rect.Min, draw.Src)

	var scaled image.Image = canvas
	if rect.Dx() != out {
		resized := image.NewRGBA(image.Rect(0, 0, out, out))
		draw.BiLinear.Scale(resized, resized.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
		scaled = resized
	}

	g := gift.New(gift.Grayscale())
	gray := image.NewGray(g.Bounds(scaled.Bounds()))
	g.Draw(gray, scaled)
	return gray
}

// pool averages stride x stride blocks of the grayscale image. Values are in [0, 1].
// Incomplete blocks on the right and bottom edges are dropped.
func pool(gray *image.Gray, stride int) *mat.Dense {
	b := gray.Bounds()
	rows, cols := b.Dy()/stride, b.Dx()/stride
	features := mat.NewDense(rows, cols, nil)
	norm := float64(stride*stride) * 255
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sum := 0.0
			for y := r * stride; y < (r+1)*stride; y++ {
				row := gray.Pix[(y)*gray.Stride:]
				for x := c * stride; x < (c+1)*stride; x++ {
					sum += float64(row[x])
				}
			}
			features.Set(r, c, sum/norm)
		}
	}
	return features
}

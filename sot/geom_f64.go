package sot

import (
	"math"
)

// Rectangle is a bounding box in top-left format: X and Y are the coordinates of the top-left corner.
// Tracker emits one Rectangle per frame.
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

// NewRectFromCenter creates rectangle from <cx, cy, w, h>
func NewRectFromCenter(cx, cy, width, height float64) Rectangle {
	return Rectangle{
		X:      cx - width/2.0,
		Y:      cy - height/2.0,
		Width:  width,
		Height: height,
	}
}

// Center returns center of the rectangle
func (r Rectangle) Center() Point {
	return Point{
		X: r.X + r.Width/2.0,
		Y: r.Y + r.Height/2.0,
	}
}

type Point struct {
	X float64
	Y float64
}

// TargetRegion is an object box in <cx, cy, w, h> format. It is used to seed the tracker.
type TargetRegion struct {
	Center Point
	Width  float64
	Height float64
}

// NewTargetRegion creates TargetRegion from top-left rectangle
func NewTargetRegion(rect Rectangle) TargetRegion {
	return TargetRegion{
		Center: rect.Center(),
		Width:  rect.Width,
		Height: rect.Height,
	}
}

// Rect converts region into top-left rectangle
func (region TargetRegion) Rect() Rectangle {
	return NewRectFromCenter(region.Center.X, region.Center.Y, region.Width, region.Height)
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(float64(p1.X-p2.X), 2) + math.Pow(float64(p1.Y-p2.Y), 2))
}

// CenterDistance returns euclidean distance between centers of two rectangles
func CenterDistance(r1, r2 Rectangle) float64 {
	return euclideanDistance(r1.Center(), r2.Center())
}

package sot

import (
	"context"
	"image"
	"io"
)

// FrameSource yields decoded frames in order. Next returns io.EOF when frames are exhausted.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
}

// SliceFrames is FrameSource over frames already in memory
type SliceFrames struct {
	frames []image.Image
	pos    int
}

// NewSliceFrames creates FrameSource over given frames
func NewSliceFrames(frames ...image.Image) *SliceFrames {
	return &SliceFrames{
		frames: frames,
	}
}

// Next returns next frame
func (source *SliceFrames) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if source.pos >= len(source.frames) {
		return nil, io.EOF
	}
	frame := source.frames[source.pos]
	source.pos++
	return frame, nil
}

// Len returns total number of frames
func (source *SliceFrames) Len() int {
	return len(source.frames)
}

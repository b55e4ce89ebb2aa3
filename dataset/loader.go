package dataset

import (
	"context"
	"image"
	"io"
	"sync"
)

type loadedFrame struct {
	img image.Image
	err error
}

// FrameLoader decodes frames in background, keeping up to prefetch frames ahead of the consumer.
// It implements sot.FrameSource. Decoding stops on the first error.
type FrameLoader struct {
	frames    chan loadedFrame
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewFrameLoader starts decoding of given frames
func NewFrameLoader(paths []string, prefetch int) *FrameLoader {
	if prefetch < 1 {
		prefetch = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	loader := &FrameLoader{
		frames: make(chan loadedFrame, prefetch),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go loader.run(ctx, paths)
	return loader
}

func (loader *FrameLoader) run(ctx context.Context, paths []string) {
	defer close(loader.done)
	defer close(loader.frames)
	for _, path := range paths {
		img, err := DecodeFrame(path)
		select {
		case loader.frames <- loadedFrame{img: img, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Next returns next decoded frame or io.EOF when frames are exhausted
func (loader *FrameLoader) Next(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-loader.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame.img, frame.err
	}
}

// Close stops decoding and waits for background goroutine
func (loader *FrameLoader) Close() error {
	loader.closeOnce.Do(func() {
		loader.cancel()
		<-loader.done
	})
	return nil
}

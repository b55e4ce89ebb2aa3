package sot

import "github.com/pkg/errors"

var (
	// ErrConfiguration is returned for invalid parameters and for malformed scorer output. It is never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrDegenerateBox is returned when initial box has non-positive or non-finite size
	ErrDegenerateBox = errors.New("degenerate bounding box")
	// ErrFrameCount is returned when number of frames differs from number of ground truth records
	ErrFrameCount = errors.New("number of frames and number of ground truth records should be equal")
	// ErrNotInitialized is returned when Update is called before Init
	ErrNotInitialized = errors.New("tracker is not initialized")
	// ErrTrackerFailed is returned when tracker is used after a failed frame
	ErrTrackerFailed = errors.New("tracker has failed")
)

package encoder

import "errors"

var (
	// ErrNotFound indicates no working ffmpeg binary could be located.
	ErrNotFound = errors.New("ffmpeg not found")
	// ErrTimeout indicates the encoder ran past its deadline.
	ErrTimeout = errors.New("encoder timed out")
	// ErrFailed indicates the encoder exited with an error.
	ErrFailed = errors.New("encoder failed")
)

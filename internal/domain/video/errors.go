package video

import (
	"errors"
	"fmt"

	"github.com/rpggio/facelapse/internal/repository"
)

var (
	// ErrNoFrames indicates no included photo has an aligned frame.
	ErrNoFrames = errors.New("no aligned frames available for video")
	// ErrInvalidFrameDuration indicates a frame duration outside the allowed range.
	ErrInvalidFrameDuration = fmt.Errorf("%w: frame duration must be between %s and %s", repository.ErrInvalidInput, MinFrameDuration, MaxFrameDuration)
)

package photo

import "errors"

var (
	// ErrPhotoNotFound indicates the photo doesn't exist.
	ErrPhotoNotFound = errors.New("photo not found")
	// ErrNotEligible indicates a photo without a detected face was asked to join the output.
	ErrNotEligible = errors.New("photo has no detected face")
	// ErrInvalidInput indicates invalid input for photo operations.
	ErrInvalidInput = errors.New("invalid photo input")
)

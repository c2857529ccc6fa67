package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/facelapse/internal/domain/ingest"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/domain/video"
	"github.com/rpggio/facelapse/internal/encoder"
	"github.com/rpggio/facelapse/internal/landmark"
	"github.com/rpggio/facelapse/internal/repository"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. It returns nil for errors
// that have no client-facing meaning.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, photo.ErrPhotoNotFound), errors.Is(err, repository.ErrNotFound):
		return &APIError{Code: "PHOTO_NOT_FOUND", Message: "photo not found", RecoveryHint: "Call list_photos for valid ids"}
	case errors.Is(err, photo.ErrNotEligible):
		return &APIError{Code: "NOT_ELIGIBLE", Message: "photo has no detected face", RecoveryHint: "Run run_alignment on the photo first"}
	case errors.Is(err, ingest.ErrEmptyBatch):
		return &APIError{Code: "EMPTY_BATCH", Message: "no files submitted", RecoveryHint: "Pass at least one path"}
	case errors.Is(err, video.ErrNoFrames):
		return &APIError{Code: "NO_FRAMES", Message: "no aligned frames to assemble", RecoveryHint: "Align photos and include them first"}
	case errors.Is(err, video.ErrInvalidFrameDuration):
		return &APIError{Code: "INVALID_FRAME_DURATION", Message: err.Error()}
	case errors.Is(err, encoder.ErrNotFound):
		return &APIError{Code: "ENCODER_NOT_FOUND", Message: "ffmpeg not found", RecoveryHint: "Install ffmpeg or set video.ffmpeg_path"}
	case errors.Is(err, encoder.ErrTimeout):
		return &APIError{Code: "ENCODER_TIMEOUT", Message: "video encoding timed out"}
	case errors.Is(err, encoder.ErrFailed):
		return &APIError{Code: "ENCODER_FAILED", Message: err.Error()}
	case errors.Is(err, landmark.ErrServiceUnavailable):
		return &APIError{Code: "DETECTOR_UNAVAILABLE", Message: "landmark service unavailable", RecoveryHint: "Check detector.url"}
	case errors.Is(err, repository.ErrConflict):
		return &APIError{Code: "CONFLICT", Message: "entity already exists"}
	case errors.Is(err, photo.ErrInvalidInput), errors.Is(err, repository.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return nil
	}
}

package photo

import "time"

// ApplyAlignment records the outcome of an alignment attempt made at the given
// time. A nil geometry is a failed attempt: the face flag, the inclusion flag
// and any previous geometry are cleared. A successful attempt includes the
// photo in the output.
func ApplyAlignment(p Photo, eyes *EyeGeometry, at time.Time) Photo {
	alignedAt := at
	p.AlignedAt = &alignedAt
	if eyes == nil {
		p.Eyes = nil
		p.FaceDetected = false
		p.IncludedInOutput = false
		return p
	}
	geometry := *eyes
	p.Eyes = &geometry
	p.FaceDetected = true
	p.IncludedInOutput = true
	return p
}

// WithCapturedAt sets the capture time.
func WithCapturedAt(p Photo, t time.Time) Photo {
	captured := t
	p.CapturedAt = &captured
	return p
}

// WithManualOrder sets or, with nil, clears the manual position.
func WithManualOrder(p Photo, order *int) Photo {
	if order == nil {
		p.ManualOrder = nil
		return p
	}
	o := *order
	p.ManualOrder = &o
	return p
}

// WithInclusion sets whether the photo takes part in video assembly. Only
// photos with a detected face can be included.
func WithInclusion(p Photo, include bool) (Photo, error) {
	if include && !p.FaceDetected {
		return p, ErrNotEligible
	}
	p.IncludedInOutput = include
	return p, nil
}

// Validate checks the cross-field invariants of a photo.
func Validate(p Photo) error {
	if p.DisplayName == "" || p.ContentHash == "" {
		return ErrInvalidInput
	}
	if (p.Eyes != nil) != p.FaceDetected {
		return ErrInvalidInput
	}
	if p.IncludedInOutput && !p.FaceDetected {
		return ErrNotEligible
	}
	return nil
}

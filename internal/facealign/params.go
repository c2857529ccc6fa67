package facealign

import (
	"errors"
	"image/color"
	"slices"
)

// Eye landmark clusters of the MediaPipe face mesh topology.
var (
	DefaultLeftEyeIndices  = []int{33, 133, 159, 145}
	DefaultRightEyeIndices = []int{362, 263, 386, 374}
)

// ErrInvalidParams indicates an unusable alignment configuration.
var ErrInvalidParams = errors.New("invalid alignment parameters")

// Params fixes the output canvas and the detection behavior. It is built once
// and shared read-only by every alignment.
type Params struct {
	OutputWidth        int
	OutputHeight       int
	TargetEyeDistance  float64
	EyeLineFraction    float64
	MaxDetectDimension int
	MinConfidence      float64
	RetryConfidence    float64
	MinEyeDistance     float64
	FillColor          color.RGBA
	JPEGQuality        int
	LeftEyeIndices     []int
	RightEyeIndices    []int
}

// DefaultParams returns the 600x800 portrait canvas with 120px between eyes.
func DefaultParams() Params {
	return Params{
		OutputWidth:        600,
		OutputHeight:       800,
		TargetEyeDistance:  120,
		EyeLineFraction:    0.38,
		MaxDetectDimension: 2048,
		MinConfidence:      0.3,
		RetryConfidence:    0.2,
		MinEyeDistance:     1.0,
		FillColor:          color.RGBA{A: 255},
		JPEGQuality:        95,
		LeftEyeIndices:     slices.Clone(DefaultLeftEyeIndices),
		RightEyeIndices:    slices.Clone(DefaultRightEyeIndices),
	}
}

// TargetEyes returns where the left and right eye centers land on the canvas.
func (p Params) TargetEyes() (left, right Point) {
	y := float64(int(float64(p.OutputHeight) * p.EyeLineFraction))
	cx := float64(p.OutputWidth / 2)
	half := p.TargetEyeDistance / 2
	return Point{X: cx - half, Y: y}, Point{X: cx + half, Y: y}
}

// Validate rejects geometry that cannot produce a frame.
func (p Params) Validate() error {
	switch {
	case p.OutputWidth <= 0 || p.OutputHeight <= 0:
		return errors.Join(ErrInvalidParams, errors.New("output size must be positive"))
	case p.TargetEyeDistance <= 0 || p.TargetEyeDistance >= float64(p.OutputWidth):
		return errors.Join(ErrInvalidParams, errors.New("target eye distance must fit the canvas"))
	case p.EyeLineFraction <= 0 || p.EyeLineFraction >= 1:
		return errors.Join(ErrInvalidParams, errors.New("eye line fraction must be within (0,1)"))
	case p.MaxDetectDimension <= 0:
		return errors.Join(ErrInvalidParams, errors.New("detection ceiling must be positive"))
	case p.MinEyeDistance <= 0:
		return errors.Join(ErrInvalidParams, errors.New("minimum eye distance must be positive"))
	case p.JPEGQuality < 1 || p.JPEGQuality > 100:
		return errors.Join(ErrInvalidParams, errors.New("jpeg quality must be within 1..100"))
	case len(p.LeftEyeIndices) == 0 || len(p.RightEyeIndices) == 0:
		return errors.Join(ErrInvalidParams, errors.New("eye landmark indices are required"))
	}
	return nil
}

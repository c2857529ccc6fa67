// Package facealign turns a photo into a canonical portrait frame by locating
// the eyes and mapping them onto fixed canvas positions.
package facealign

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"slices"

	"github.com/rpggio/facelapse/internal/landmark"
)

// Status is the discriminated outcome of an alignment attempt.
type Status string

const (
	StatusOK         Status = "ok"
	StatusUnreadable Status = "unreadable"
	StatusNoFace     Status = "no_face"
	StatusDegenerate Status = "degenerate_geometry"
)

// Result describes one alignment attempt. Eyes and Transform are set only
// when Status is StatusOK.
type Result struct {
	Status    Status     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	Eyes      *Eyes      `json:"eyes,omitempty"`
	Transform *Transform `json:"transform,omitempty"`
}

// OK reports whether the attempt produced a frame.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Detector finds face landmarks. A nil set with a nil error means no face.
type Detector interface {
	Detect(ctx context.Context, img image.Image, minConfidence float64) (landmark.Set, error)
}

// Blobs is the blob access the aligner needs.
type Blobs interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Write(ctx context.Context, key string, r io.Reader) error
}

// Aligner produces aligned frames.
type Aligner struct {
	detector Detector
	blobs    Blobs
	params   Params
	logger   *slog.Logger
}

// NewAligner creates an aligner. params must pass Validate.
func NewAligner(detector Detector, blobs Blobs, params Params, logger *slog.Logger) (*Aligner, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	params.LeftEyeIndices = slices.Clone(params.LeftEyeIndices)
	params.RightEyeIndices = slices.Clone(params.RightEyeIndices)
	return &Aligner{
		detector: detector,
		blobs:    blobs,
		params:   params,
		logger:   logger,
	}, nil
}

// Params returns the configuration the aligner was built with.
func (a *Aligner) Params() Params {
	return a.params
}

// Align reads the original at originalKey and, when a usable face is found,
// writes the aligned JPEG frame to alignedKey. Expected conditions come back
// as a Result status; the error is reserved for storage and detector faults.
func (a *Aligner) Align(ctx context.Context, originalKey, alignedKey string) (Result, error) {
	rc, err := a.blobs.Open(ctx, originalKey)
	if err != nil {
		return Result{}, fmt.Errorf("opening original: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return Result{}, fmt.Errorf("reading original: %w", err)
	}

	img, err := DecodeOriented(data)
	if err != nil {
		return Result{Status: StatusUnreadable, Reason: err.Error()}, nil
	}

	eyes, found, err := a.locateEyes(ctx, img)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{Status: StatusNoFace}, nil
	}

	transform, ok := ComputeTransform(eyes, a.params)
	if !ok {
		return Result{
			Status: StatusDegenerate,
			Reason: fmt.Sprintf("eyes %.2fpx apart", eyes.Distance()),
		}, nil
	}

	frame := Warp(img, transform, a.params)
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, frame, a.params.JPEGQuality); err != nil {
		return Result{}, err
	}
	if err := a.blobs.Write(ctx, alignedKey, &buf); err != nil {
		return Result{}, fmt.Errorf("writing aligned frame: %w", err)
	}

	a.logger.Debug("aligned photo", "original", originalKey, "angle", transform.Angle, "scale", transform.Scale)
	return Result{Status: StatusOK, Eyes: &eyes, Transform: &transform}, nil
}

// locateEyes runs detection at full resolution and, for oversized images,
// once more on a downscaled copy with a lower confidence threshold.
func (a *Aligner) locateEyes(ctx context.Context, img image.Image) (Eyes, bool, error) {
	b := img.Bounds()
	set, err := a.detector.Detect(ctx, img, a.params.MinConfidence)
	if err != nil {
		return Eyes{}, false, fmt.Errorf("detecting landmarks: %w", err)
	}

	scale := 1.0
	width, height := b.Dx(), b.Dy()
	if set == nil && max(width, height) > a.params.MaxDetectDimension {
		small, s := Downscale(img, a.params.MaxDetectDimension)
		a.logger.Debug("retrying detection on downscaled image", "width", width, "height", height, "scale", s)
		set, err = a.detector.Detect(ctx, small, a.params.RetryConfidence)
		if err != nil {
			return Eyes{}, false, fmt.Errorf("detecting landmarks: %w", err)
		}
		scale = s
		width, height = small.Bounds().Dx(), small.Bounds().Dy()
	}
	if set == nil {
		return Eyes{}, false, nil
	}

	left, okLeft := set.Mean(a.params.LeftEyeIndices)
	right, okRight := set.Mean(a.params.RightEyeIndices)
	if !okLeft || !okRight {
		return Eyes{}, false, nil
	}

	toPixels := func(p landmark.Point) Point {
		return Point{
			X: p.X * float64(width) / scale,
			Y: p.Y * float64(height) / scale,
		}
	}
	return Eyes{Left: toPixels(left), Right: toPixels(right)}, true, nil
}

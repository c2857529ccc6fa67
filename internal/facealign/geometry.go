package facealign

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Point is a position in image pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Eyes holds the two eye centers of a face in original-image pixels.
type Eyes struct {
	Left  Point `json:"left"`
	Right Point `json:"right"`
}

// Distance is the separation between the eye centers.
func (e Eyes) Distance() float64 {
	return math.Hypot(e.Right.X-e.Left.X, e.Right.Y-e.Left.Y)
}

// Transform is the similarity transform from an original image onto the
// canvas: rotate about the eye midpoint, scale uniformly, then translate the
// midpoint onto the target midpoint.
type Transform struct {
	// Angle of the left-to-right eye vector in degrees. The transform rotates
	// by this angle to level the eyes.
	Angle float64 `json:"angle"`
	Scale float64 `json:"scale"`
	// Matrix maps source coordinates to canvas coordinates, row-major
	// [a b tx; c d ty].
	Matrix f64.Aff3 `json:"matrix"`
}

// Apply maps a source point onto the canvas.
func (t Transform) Apply(p Point) Point {
	m := t.Matrix
	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// ComputeTransform derives the transform that carries eyes onto the target
// eye pair of p. It reports false when the eyes are closer than
// p.MinEyeDistance.
func ComputeTransform(eyes Eyes, p Params) (Transform, bool) {
	dist := eyes.Distance()
	if dist < p.MinEyeDistance || math.IsNaN(dist) {
		return Transform{}, false
	}

	theta := math.Atan2(eyes.Right.Y-eyes.Left.Y, eyes.Right.X-eyes.Left.X)
	scale := p.TargetEyeDistance / dist
	a := scale * math.Cos(theta)
	b := scale * math.Sin(theta)

	cx := (eyes.Left.X + eyes.Right.X) / 2
	cy := (eyes.Left.Y + eyes.Right.Y) / 2
	targetLeft, targetRight := p.TargetEyes()
	tx := (targetLeft.X + targetRight.X) / 2
	ty := (targetLeft.Y + targetRight.Y) / 2

	return Transform{
		Angle: theta * 180 / math.Pi,
		Scale: scale,
		Matrix: f64.Aff3{
			a, b, tx - a*cx - b*cy,
			-b, a, ty + b*cx - a*cy,
		},
	}, true
}

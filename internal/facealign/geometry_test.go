package facealign

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargetEyes(t *testing.T) {
	left, right := DefaultParams().TargetEyes()
	require.Equal(t, Point{X: 240, Y: 304}, left)
	require.Equal(t, Point{X: 360, Y: 304}, right)
}

func TestComputeTransform_AlreadyMatchingSeparation(t *testing.T) {
	eyes := Eyes{Left: Point{X: 100, Y: 150}, Right: Point{X: 220, Y: 150}}

	tr, ok := ComputeTransform(eyes, DefaultParams())
	require.True(t, ok)
	require.InDelta(t, 0, tr.Angle, 1e-9)
	require.InDelta(t, 1, tr.Scale, 1e-9)

	left := tr.Apply(eyes.Left)
	right := tr.Apply(eyes.Right)
	require.InDelta(t, 240, left.X, 1e-9)
	require.InDelta(t, 304, left.Y, 1e-9)
	require.InDelta(t, 360, right.X, 1e-9)
	require.InDelta(t, 304, right.Y, 1e-9)
}

func TestComputeTransform_RotatedAndScaled(t *testing.T) {
	// 45 degrees, 60px apart: scale 2, both eyes land on the target pair
	eyes := Eyes{Left: Point{X: 500, Y: 400}, Right: Point{X: 500 + 42.42640687119285, Y: 400 + 42.42640687119285}}

	tr, ok := ComputeTransform(eyes, DefaultParams())
	require.True(t, ok)
	require.InDelta(t, 45, tr.Angle, 1e-9)
	require.InDelta(t, 2, tr.Scale, 1e-9)

	left := tr.Apply(eyes.Left)
	right := tr.Apply(eyes.Right)
	require.InDelta(t, 240, left.X, 1e-6)
	require.InDelta(t, 304, left.Y, 1e-6)
	require.InDelta(t, 360, right.X, 1e-6)
	require.InDelta(t, 304, right.Y, 1e-6)
}

func TestComputeTransform_Degenerate(t *testing.T) {
	eyes := Eyes{Left: Point{X: 100, Y: 100}, Right: Point{X: 100.3, Y: 100}}

	_, ok := ComputeTransform(eyes, DefaultParams())
	require.False(t, ok)
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.TargetEyeDistance = 700
	require.ErrorIs(t, p.Validate(), ErrInvalidParams)

	p = DefaultParams()
	p.EyeLineFraction = 1.2
	require.ErrorIs(t, p.Validate(), ErrInvalidParams)

	p = DefaultParams()
	p.JPEGQuality = 0
	require.ErrorIs(t, p.Validate(), ErrInvalidParams)
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 40), G: uint8(y * 40), B: 7, A: 255})
		}
	}
	return img
}

func TestOrient(t *testing.T) {
	src := gradient(3, 2) // pixel (x,y) has R=x*40, G=y*40

	tests := []struct {
		orientation int
		size        image.Point
		// destination pixel and the source pixel it must hold
		dst, from image.Point
	}{
		{orientation: 1, size: image.Pt(3, 2), dst: image.Pt(2, 1), from: image.Pt(2, 1)},
		{orientation: 2, size: image.Pt(3, 2), dst: image.Pt(0, 0), from: image.Pt(2, 0)},
		{orientation: 3, size: image.Pt(3, 2), dst: image.Pt(0, 0), from: image.Pt(2, 1)},
		{orientation: 4, size: image.Pt(3, 2), dst: image.Pt(0, 0), from: image.Pt(0, 1)},
		{orientation: 5, size: image.Pt(2, 3), dst: image.Pt(1, 2), from: image.Pt(2, 1)},
		{orientation: 6, size: image.Pt(2, 3), dst: image.Pt(0, 0), from: image.Pt(0, 1)},
		{orientation: 7, size: image.Pt(2, 3), dst: image.Pt(0, 0), from: image.Pt(2, 1)},
		{orientation: 8, size: image.Pt(2, 3), dst: image.Pt(0, 0), from: image.Pt(2, 0)},
	}

	for _, tt := range tests {
		out := Orient(src, tt.orientation)
		require.Equal(t, tt.size, out.Bounds().Size(), "orientation %d", tt.orientation)
		require.Equal(t, src.At(tt.from.X, tt.from.Y), out.At(tt.dst.X, tt.dst.Y), "orientation %d", tt.orientation)
	}
}

func TestDownscale(t *testing.T) {
	small, scale := Downscale(gradient(10, 4), 20)
	require.Equal(t, 1.0, scale)
	require.Equal(t, image.Pt(10, 4), small.Bounds().Size())

	small, scale = Downscale(gradient(40, 10), 20)
	require.InDelta(t, 0.5, scale, 1e-9)
	require.Equal(t, image.Pt(20, 5), small.Bounds().Size())
}

func TestWarp_IdentityKeepsPixelsAndFillsBorder(t *testing.T) {
	p := DefaultParams()
	p.OutputWidth, p.OutputHeight = 8, 8
	p.TargetEyeDistance = 2
	p.EyeLineFraction = 0.5

	// eyes at the target positions already: identity transform
	left, right := p.TargetEyes()
	tr, ok := ComputeTransform(Eyes{Left: left, Right: right}, p)
	require.True(t, ok)
	require.InDelta(t, 1, tr.Scale, 1e-9)

	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}

	out := Warp(src, tr, p)
	require.Equal(t, image.Pt(8, 8), out.Bounds().Size())
	require.Equal(t, color.RGBA{R: 200, G: 200, B: 200, A: 255}, out.RGBAAt(1, 1))
	require.Equal(t, color.RGBA{A: 255}, out.RGBAAt(7, 7))
}

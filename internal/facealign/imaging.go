package facealign

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/rwcarlsen/goexif/exif"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeOriented decodes an image and rotates or flips it according to its
// EXIF orientation tag so pixels match the intended display orientation.
func DecodeOriented(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return Orient(img, readOrientation(data)), nil
}

func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// Orient applies one of the eight EXIF orientations. Values outside 2..8
// return img unchanged.
func Orient(img image.Image, orientation int) image.Image {
	if orientation < 2 || orientation > 8 {
		return img
	}
	src := toRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	// srcAt maps a destination pixel to the source pixel it copies.
	var srcAt func(x, y int) (int, int)
	dw, dh := w, h
	switch orientation {
	case 2: // mirror horizontal
		srcAt = func(x, y int) (int, int) { return w - 1 - x, y }
	case 3: // rotate 180
		srcAt = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case 4: // mirror vertical
		srcAt = func(x, y int) (int, int) { return x, h - 1 - y }
	case 5: // transpose
		dw, dh = h, w
		srcAt = func(x, y int) (int, int) { return y, x }
	case 6: // rotate 90 clockwise
		dw, dh = h, w
		srcAt = func(x, y int) (int, int) { return y, h - 1 - x }
	case 7: // transverse
		dw, dh = h, w
		srcAt = func(x, y int) (int, int) { return w - 1 - y, h - 1 - x }
	case 8: // rotate 90 counter-clockwise
		dw, dh = h, w
		srcAt = func(x, y int) (int, int) { return w - 1 - y, x }
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			sx, sy := srcAt(x, y)
			si := src.PixOffset(sx, sy)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}

// toRGBA returns img as an *image.RGBA anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// Downscale shrinks img so its larger side equals maxDim and returns the
// factor applied. Images already within maxDim are returned as is with 1.
func Downscale(img image.Image, maxDim int) (image.Image, float64) {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if longest <= maxDim {
		return img, 1
	}
	scale := float64(maxDim) / float64(longest)
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, scale
}

// Warp renders src through t onto a fresh canvas of the configured size,
// filling uncovered pixels with the fill color. Resampling is Catmull-Rom
// bicubic.
func Warp(src image.Image, t Transform, p Params) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, p.OutputWidth, p.OutputHeight))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(p.FillColor), image.Point{}, xdraw.Src)

	// Eye coordinates address pixel centers at integer positions while
	// x/image/draw addresses pixel corners, so shift by half a pixel on both sides.
	m := t.Matrix
	m2 := f64.Aff3{
		m[0], m[1], m[2] + 0.5 - 0.5*(m[0]+m[1]),
		m[3], m[4], m[5] + 0.5 - 0.5*(m[3]+m[4]),
	}
	b := src.Bounds()
	if b.Min != (image.Point{}) {
		m2[2] -= m[0]*float64(b.Min.X) + m[1]*float64(b.Min.Y)
		m2[5] -= m[3]*float64(b.Min.X) + m[4]*float64(b.Min.Y)
	}
	xdraw.CatmullRom.Transform(dst, m2, src, b, xdraw.Src, nil)
	return dst
}

// EncodeJPEG writes img as a JPEG of the given quality.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	return nil
}

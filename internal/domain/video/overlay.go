package video

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	labelScale   = 2
	labelMargin  = 20
	labelPadding = 10
)

var labelBox = color.RGBA{A: 153}

// Label formats the overlay text for a frame taken at date. With a birthday
// on or before that date the age in years is appended.
func Label(date time.Time, birthday *time.Time) string {
	label := date.Format("January 2, 2006")
	if birthday != nil {
		if age, ok := AgeAt(date, *birthday); ok {
			label += fmt.Sprintf(" · age %d", age)
		}
	}
	return label
}

// AgeAt returns completed years between birthday and date.
func AgeAt(date, birthday time.Time) (int, bool) {
	age := date.Year() - birthday.Year()
	if date.Month() < birthday.Month() || (date.Month() == birthday.Month() && date.Day() < birthday.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

// DrawLabel renders label in the bottom-left corner of img on a translucent
// box.
func DrawLabel(img draw.Image, label string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	width := d.MeasureString(label).Ceil()
	if width == 0 {
		return
	}

	text := image.NewRGBA(image.Rect(0, 0, width, face.Height))
	d.Dst = text
	d.Src = image.White
	d.Dot = fixed.P(0, face.Ascent)
	d.DrawString(label)

	b := img.Bounds()
	scaled := image.Rect(0, 0, width*labelScale, face.Height*labelScale)
	target := scaled.Add(image.Pt(b.Min.X+labelMargin+labelPadding, b.Max.Y-labelMargin-labelPadding-scaled.Dy()))
	box := image.Rect(target.Min.X-labelPadding, target.Min.Y-labelPadding, target.Max.X+labelPadding, target.Max.Y+labelPadding)

	draw.Draw(img, box.Intersect(b), &image.Uniform{C: labelBox}, image.Point{}, draw.Over)
	xdraw.NearestNeighbor.Scale(img, target, text, text.Bounds(), draw.Over, nil)
}

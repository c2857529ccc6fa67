package capturedate

import (
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// exifDateFields are tried in order. goexif merges the primary IFD with the
// Exif sub-IFD, so both blocks are searched.
var exifDateFields = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTime,
	exif.DateTimeDigitized,
}

// ExifReader reads capture-time strings from EXIF blocks of JPEG and TIFF data.
type ExifReader struct{}

// CaptureTime implements MetadataReader.
func (ExifReader) CaptureTime(r io.Reader) (string, bool) {
	x, err := exif.Decode(r)
	if err != nil {
		return "", false
	}
	for _, field := range exifDateFields {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil {
			continue
		}
		value = strings.TrimSpace(strings.Trim(value, "\x00"))
		if value != "" {
			return value, true
		}
	}
	return "", false
}

// Package capturedate resolves when a photo was taken from its embedded
// metadata or, failing that, from the naming conventions of its file.
package capturedate

import (
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Source identifies which signal produced a capture time.
type Source string

const (
	SourceExif     Source = "exif"
	SourceFilename Source = "filename"
	SourceUnknown  Source = "unknown"
)

// MetadataReader returns the raw embedded capture-time string of an image, if any.
type MetadataReader interface {
	CaptureTime(r io.Reader) (string, bool)
}

// Resolver derives a best-effort capture timestamp.
type Resolver struct {
	meta MetadataReader
}

// NewResolver creates a resolver. A nil reader skips the metadata step.
func NewResolver(meta MetadataReader) *Resolver {
	return &Resolver{meta: meta}
}

// Resolve tries embedded metadata first and filename patterns second.
// A nil time means the capture time is unknown.
func (r *Resolver) Resolve(content io.Reader, sourceName string) (*time.Time, Source) {
	if r.meta != nil && content != nil {
		if raw, ok := r.meta.CaptureTime(content); ok {
			if t, ok := ParseExifTime(raw); ok {
				return &t, SourceExif
			}
		}
	}
	if t, ok := ParseFilename(sourceName); ok {
		return &t, SourceFilename
	}
	return nil, SourceUnknown
}

var exifLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"2006:01:02 15:04",
}

// ParseExifTime parses the colon-delimited EXIF timestamp form
// ("2024:01:15 14:30:00") into a UTC wall-clock time.
func ParseExifTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(strings.Trim(raw, "\x00"))
	if raw == "" {
		return time.Time{}, false
	}
	// Some writers append subseconds or a zone; the first 19 bytes are the timestamp.
	if len(raw) > 19 {
		raw = raw[:19]
	}
	for _, layout := range exifLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Stem returns the base name without its final extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

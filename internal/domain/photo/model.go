package photo

import (
	"path"
	"strings"
	"time"
)

// Blob key prefixes for the artifacts of a photo.
const (
	OriginalsDir = "originals"
	AlignedDir   = "aligned"
	VideosDir    = "videos"
	StagingDir   = "staging"
)

// Point is a position in original-image pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeGeometry holds the detected eye centers of a face.
type EyeGeometry struct {
	Left  Point `json:"left"`
	Right Point `json:"right"`
}

// Photo is one ingested photograph.
type Photo struct {
	ID               int64        `json:"id"`
	DisplayName      string       `json:"display_name"`
	SourceName       string       `json:"source_name"`
	ContentHash      string       `json:"content_hash"`
	CapturedAt       *time.Time   `json:"captured_at,omitempty"`
	Eyes             *EyeGeometry `json:"eyes,omitempty"`
	FaceDetected     bool         `json:"face_detected"`
	IncludedInOutput bool         `json:"included_in_output"`
	ManualOrder      *int         `json:"manual_order,omitempty"`
	AlignedAt        *time.Time   `json:"aligned_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// OriginalKey is the blob key of the uploaded bytes.
func (p Photo) OriginalKey() string {
	return OriginalKey(p.DisplayName)
}

// AlignedKey is the blob key of the aligned frame. Frames are always JPEG.
func (p Photo) AlignedKey() string {
	return path.Join(AlignedDir, DisplayStem(p.DisplayName)+".jpg")
}

// OriginalKey returns the blob key for an original stored under displayName.
func OriginalKey(displayName string) string {
	return path.Join(OriginalsDir, displayName)
}

// DisplayStem strips the extension from a display name.
func DisplayStem(displayName string) string {
	return strings.TrimSuffix(displayName, path.Ext(displayName))
}

// Summary is the listing view of a photo.
type Summary struct {
	ID               int64        `json:"id"`
	Position         int          `json:"position"`
	DisplayName      string       `json:"display_name"`
	SourceName       string       `json:"source_name"`
	CapturedAt       *time.Time   `json:"captured_at,omitempty"`
	FaceDetected     bool         `json:"face_detected"`
	IncludedInOutput bool         `json:"included_in_output"`
	ManualOrder      *int         `json:"manual_order,omitempty"`
	Eyes             *EyeGeometry `json:"eyes,omitempty"`
	AlignedKey       string       `json:"aligned_key,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Summarize builds the listing view of p at the given position.
func Summarize(p Photo, position int) Summary {
	s := Summary{
		ID:               p.ID,
		Position:         position,
		DisplayName:      p.DisplayName,
		SourceName:       p.SourceName,
		CapturedAt:       p.CapturedAt,
		FaceDetected:     p.FaceDetected,
		IncludedInOutput: p.IncludedInOutput,
		ManualOrder:      p.ManualOrder,
		Eyes:             p.Eyes,
		CreatedAt:        p.CreatedAt,
	}
	if p.FaceDetected {
		s.AlignedKey = p.AlignedKey()
	}
	return s
}

// DuplicateGroup lists records that share a content hash.
type DuplicateGroup struct {
	ContentHash string  `json:"content_hash"`
	Photos      []Photo `json:"photos"`
}

package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeBatchIngested     ActivityType = "batch_ingested"
	TypePhotoAligned      ActivityType = "photo_aligned"
	TypeAlignmentFailed   ActivityType = "alignment_failed"
	TypeOrderChanged      ActivityType = "order_changed"
	TypeInclusionChanged  ActivityType = "inclusion_changed"
	TypeDatesInterpolated ActivityType = "dates_interpolated"
	TypePhotoDeleted      ActivityType = "photo_deleted"
	TypeNoFacePruned      ActivityType = "no_face_pruned"
	TypeVideoBuilt        ActivityType = "video_built"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	PhotoID      *int64       `json:"photo_id,omitempty"`
	BatchID      string       `json:"batch_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}

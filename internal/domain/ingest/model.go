package ingest

import (
	"io"

	"github.com/rpggio/facelapse/internal/capturedate"
	"github.com/rpggio/facelapse/internal/domain/photo"
)

// Upload is one file of a batch.
type Upload struct {
	Name string
	Body io.Reader
}

// Status is the per-file outcome of a submission.
type Status string

const (
	StatusAccepted           Status = "accepted"
	StatusDuplicateInLibrary Status = "duplicate_in_library"
	StatusDuplicateInBatch   Status = "duplicate_in_batch"
)

// Outcome reports what happened to one upload. ExistingID and ExistingName
// name the stored record a duplicate matched; for same-batch duplicates
// SiblingIndex is the input index of the first copy.
type Outcome struct {
	Index        int                `json:"index"`
	SourceName   string             `json:"source_name"`
	Status       Status             `json:"status"`
	Photo        *photo.Photo       `json:"photo,omitempty"`
	DateSource   capturedate.Source `json:"date_source,omitempty"`
	ExistingID   int64              `json:"existing_id,omitempty"`
	ExistingName string             `json:"existing_name,omitempty"`
	SiblingIndex *int               `json:"sibling_index,omitempty"`
}

// Result is the outcome of a whole batch, in input order.
type Result struct {
	BatchID    string    `json:"batch_id"`
	Outcomes   []Outcome `json:"outcomes"`
	Accepted   int       `json:"accepted"`
	Duplicates int       `json:"duplicates"`
}

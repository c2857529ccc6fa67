package ingest

import (
	"fmt"

	"github.com/rpggio/facelapse/internal/repository"
)

// ErrEmptyBatch indicates a submission without any files.
var ErrEmptyBatch = fmt.Errorf("%w: empty batch", repository.ErrInvalidInput)

// ErrUnsupportedFormat indicates an upload in an image format the aligner
// cannot decode, such as HEIC.
var ErrUnsupportedFormat = fmt.Errorf("%w: unsupported image format", repository.ErrInvalidInput)

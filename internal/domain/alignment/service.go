// Package alignment runs face alignment over stored photos and records the
// outcome of each attempt.
package alignment

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/domain/timeline"
	"github.com/rpggio/facelapse/internal/facealign"
	"github.com/rpggio/facelapse/internal/repository"
)

// Status is the per-photo outcome of an alignment run.
type Status string

const (
	StatusOK              Status = Status(facealign.StatusOK)
	StatusUnreadable      Status = Status(facealign.StatusUnreadable)
	StatusNoFace          Status = Status(facealign.StatusNoFace)
	StatusDegenerate      Status = Status(facealign.StatusDegenerate)
	StatusNotFound        Status = "not_found"
	StatusOriginalMissing Status = "original_missing"
)

// Aligner produces an aligned frame from a stored original.
type Aligner interface {
	Align(ctx context.Context, originalKey, alignedKey string) (facealign.Result, error)
}

// Progress reports one processed photo. Index is 1-based.
type Progress struct {
	Index            int                `json:"index"`
	Total            int                `json:"total"`
	PhotoID          int64              `json:"photo_id"`
	DisplayName      string             `json:"display_name,omitempty"`
	Status           Status             `json:"status"`
	Reason           string             `json:"reason,omitempty"`
	FaceDetected     bool               `json:"face_detected"`
	IncludedInOutput bool               `json:"included_in_output"`
	Eyes             *photo.EyeGeometry `json:"eyes,omitempty"`
}

// Service aligns photos one at a time.
type Service struct {
	store      photo.Store
	blobs      photo.BlobStore
	aligner    Aligner
	activities photo.ActivityRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new alignment service.
func NewService(store photo.Store, blobs photo.BlobStore, aligner Aligner, activities photo.ActivityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:      store,
		blobs:      blobs,
		aligner:    aligner,
		activities: activities,
		logger:     logger,
		now:        time.Now,
	}
}

// Pending returns the IDs of photos never aligned, in timeline order.
func (s *Service) Pending(ctx context.Context) ([]int64, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}
	timeline.Sort(all)

	var ids []int64
	for _, p := range all {
		if p.AlignedAt == nil {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// Run aligns the given photos in order. Each result is committed before it
// is yielded, and nothing further is processed once the consumer stops or
// ctx is done. Expected per-photo conditions are reported in Progress; a
// storage or detector fault is yielded once as an error and ends the run.
func (s *Service) Run(ctx context.Context, ids []int64) iter.Seq2[Progress, error] {
	return func(yield func(Progress, error) bool) {
		for i, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(Progress{}, err)
				return
			}

			p, err := s.alignOne(ctx, id)
			if err != nil {
				yield(Progress{}, fmt.Errorf("aligning photo %d: %w", id, err))
				return
			}
			p.Index = i + 1
			p.Total = len(ids)
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Collect drains a run into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Progress, error]) ([]Progress, error) {
	var out []Progress
	for p, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) alignOne(ctx context.Context, id int64) (Progress, error) {
	current, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return Progress{PhotoID: id, Status: StatusNotFound}, nil
	}
	if err != nil {
		return Progress{}, err
	}

	progress := Progress{PhotoID: id, DisplayName: current.DisplayName}
	exists, err := s.blobs.Exists(ctx, current.OriginalKey())
	if err != nil {
		return Progress{}, err
	}
	if !exists {
		progress.Status = StatusOriginalMissing
		progress.FaceDetected = current.FaceDetected
		progress.IncludedInOutput = current.IncludedInOutput
		progress.Eyes = current.Eyes
		return progress, nil
	}

	res, err := s.aligner.Align(ctx, current.OriginalKey(), current.AlignedKey())
	if err != nil {
		return Progress{}, err
	}

	var eyes *photo.EyeGeometry
	if res.OK() {
		eyes = &photo.EyeGeometry{
			Left:  photo.Point{X: res.Eyes.Left.X, Y: res.Eyes.Left.Y},
			Right: photo.Point{X: res.Eyes.Right.X, Y: res.Eyes.Right.Y},
		}
	}

	var updated photo.Photo
	err = s.store.InTx(ctx, func(repo photo.Repository) error {
		latest, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		updated = photo.ApplyAlignment(*latest, eyes, s.now())
		return repo.Update(ctx, &updated)
	})
	if errors.Is(err, repository.ErrNotFound) {
		// deleted while the frame was being produced
		s.deleteFrame(ctx, current.AlignedKey())
		return Progress{PhotoID: id, DisplayName: current.DisplayName, Status: StatusNotFound}, nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("saving alignment: %w", err)
	}
	if !res.OK() {
		// the record no longer points at a frame
		s.deleteFrame(ctx, current.AlignedKey())
	}

	progress.Status = Status(res.Status)
	progress.Reason = res.Reason
	progress.FaceDetected = updated.FaceDetected
	progress.IncludedInOutput = updated.IncludedInOutput
	progress.Eyes = updated.Eyes

	entry := &activity.ActivityEntry{
		PhotoID:      &updated.ID,
		ActivityType: activity.TypePhotoAligned,
		Summary:      fmt.Sprintf("aligned %s", updated.DisplayName),
	}
	if !res.OK() {
		entry.ActivityType = activity.TypeAlignmentFailed
		entry.Summary = fmt.Sprintf("alignment of %s failed: %s", updated.DisplayName, res.Status)
		s.logger.Info("alignment failed", "photo_id", id, "status", res.Status, "reason", res.Reason)
	}
	s.logActivity(ctx, entry)

	return progress, nil
}

func (s *Service) deleteFrame(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove aligned frame", "key", key, "error", err)
	}
}

func (s *Service) logActivity(ctx context.Context, entry *activity.ActivityEntry) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, entry)
}

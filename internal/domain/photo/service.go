package photo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/repository"
)

// Service handles single-photo and bulk library operations.
type Service struct {
	store      Store
	blobs      BlobStore
	activities ActivityRepository
	logger     *slog.Logger
}

// NewService creates a new photo service.
func NewService(store Store, blobs BlobStore, activities ActivityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:      store,
		blobs:      blobs,
		activities: activities,
		logger:     logger,
	}
}

// Get returns a photo by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Photo, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("getting photo: %w", err)
	}
	return p, nil
}

// SetInclusion includes or excludes a photo from video assembly.
func (s *Service) SetInclusion(ctx context.Context, id int64, include bool) (*Photo, error) {
	var updated Photo
	err := s.store.InTx(ctx, func(repo Repository) error {
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		updated, err = WithInclusion(*current, include)
		if err != nil {
			return err
		}
		return repo.Update(ctx, &updated)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPhotoNotFound
		}
		if errors.Is(err, ErrNotEligible) {
			return nil, err
		}
		return nil, fmt.Errorf("updating inclusion: %w", err)
	}

	s.logActivity(ctx, &activity.ActivityEntry{
		PhotoID:      &updated.ID,
		ActivityType: activity.TypeInclusionChanged,
		Summary:      fmt.Sprintf("%s included=%t", updated.DisplayName, include),
	})
	return &updated, nil
}

// Delete removes a photo record and its stored files.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var removed *Photo
	err := s.store.InTx(ctx, func(repo Repository) error {
		p, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		removed = p
		return repo.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPhotoNotFound
		}
		return fmt.Errorf("deleting photo: %w", err)
	}

	s.removeFiles(ctx, *removed)
	s.logActivity(ctx, &activity.ActivityEntry{
		PhotoID:      &removed.ID,
		ActivityType: activity.TypePhotoDeleted,
		Summary:      fmt.Sprintf("deleted %s", removed.DisplayName),
	})
	return nil
}

// PruneNoFace deletes every photo whose last alignment found no face,
// together with its files. Photos never aligned are kept.
func (s *Service) PruneNoFace(ctx context.Context) (int, error) {
	var removed []Photo
	err := s.store.InTx(ctx, func(repo Repository) error {
		all, err := repo.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range all {
			if p.FaceDetected || p.AlignedAt == nil {
				continue
			}
			if err := repo.Delete(ctx, p.ID); err != nil {
				return err
			}
			removed = append(removed, p)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pruning photos without faces: %w", err)
	}

	for _, p := range removed {
		s.removeFiles(ctx, p)
	}
	if len(removed) > 0 {
		s.logActivity(ctx, &activity.ActivityEntry{
			ActivityType: activity.TypeNoFacePruned,
			Summary:      fmt.Sprintf("pruned %d photos without a detected face", len(removed)),
		})
	}
	return len(removed), nil
}

// DuplicateReport groups stored photos that share a content hash. The unique
// index keeps this empty unless rows were written around it.
func (s *Service) DuplicateReport(ctx context.Context) ([]DuplicateGroup, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}

	byHash := make(map[string][]Photo)
	var order []string
	for _, p := range all {
		if _, seen := byHash[p.ContentHash]; !seen {
			order = append(order, p.ContentHash)
		}
		byHash[p.ContentHash] = append(byHash[p.ContentHash], p)
	}

	var groups []DuplicateGroup
	for _, hash := range order {
		if len(byHash[hash]) > 1 {
			groups = append(groups, DuplicateGroup{ContentHash: hash, Photos: byHash[hash]})
		}
	}
	return groups, nil
}

func (s *Service) removeFiles(ctx context.Context, p Photo) {
	for _, key := range []string{p.OriginalKey(), p.AlignedKey()} {
		if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove photo file", "photo_id", p.ID, "key", key, "error", err)
		}
	}
}

func (s *Service) logActivity(ctx context.Context, entry *activity.ActivityEntry) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, entry)
}

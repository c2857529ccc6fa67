package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/repository"
)

// OrderUpdate assigns a manual position to one photo. A nil Order clears it.
type OrderUpdate struct {
	ID    int64 `json:"id"`
	Order *int  `json:"order,omitempty"`
}

// Service exposes the ordered library and the operations that move photos
// within it.
type Service struct {
	store      photo.Store
	activities photo.ActivityRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new timeline service.
func NewService(store photo.Store, activities photo.ActivityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:      store,
		activities: activities,
		logger:     logger,
		now:        time.Now,
	}
}

// Ordered returns every photo in timeline order.
func (s *Service) Ordered(ctx context.Context) ([]photo.Photo, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}
	Sort(all)
	return all, nil
}

// Listing returns the ordered library as summaries with 1-based positions.
func (s *Service) Listing(ctx context.Context) ([]photo.Summary, error) {
	ordered, err := s.Ordered(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]photo.Summary, len(ordered))
	for i, p := range ordered {
		summaries[i] = photo.Summarize(p, i+1)
	}
	return summaries, nil
}

// SetManualOrder pins a photo at a manual position, or unpins it with nil.
func (s *Service) SetManualOrder(ctx context.Context, id int64, order *int) (*photo.Photo, error) {
	var updated photo.Photo
	err := s.store.InTx(ctx, func(repo photo.Repository) error {
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		updated = photo.WithManualOrder(*current, order)
		return repo.Update(ctx, &updated)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, photo.ErrPhotoNotFound
		}
		return nil, fmt.Errorf("setting manual order: %w", err)
	}

	summary := fmt.Sprintf("cleared manual order of %s", updated.DisplayName)
	if order != nil {
		summary = fmt.Sprintf("moved %s to position %d", updated.DisplayName, *order)
	}
	s.logActivity(ctx, &activity.ActivityEntry{
		PhotoID:      &updated.ID,
		ActivityType: activity.TypeOrderChanged,
		Summary:      summary,
	})
	return &updated, nil
}

// Reorder applies several manual positions in one transaction. Unknown IDs are
// skipped. It returns how many photos were updated.
func (s *Service) Reorder(ctx context.Context, updates []OrderUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	count := 0
	err := s.store.InTx(ctx, func(repo photo.Repository) error {
		for _, u := range updates {
			current, err := repo.Get(ctx, u.ID)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			updated := photo.WithManualOrder(*current, u.Order)
			if err := repo.Update(ctx, &updated); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reordering photos: %w", err)
	}

	if count > 0 {
		s.logActivity(ctx, &activity.ActivityEntry{
			ActivityType: activity.TypeOrderChanged,
			Summary:      fmt.Sprintf("reordered %d photos", count),
		})
	}
	return count, nil
}

// Interpolate assigns capture dates to undated photos and returns how many
// were updated. With no ids every undated photo is a target; otherwise only
// the listed ones that lack a date.
func (s *Service) Interpolate(ctx context.Context, ids []int64) (int, error) {
	var targets map[int64]bool
	if len(ids) > 0 {
		targets = make(map[int64]bool, len(ids))
		for _, id := range ids {
			targets[id] = true
		}
	}

	count := 0
	err := s.store.InTx(ctx, func(repo photo.Repository) error {
		all, err := repo.List(ctx)
		if err != nil {
			return err
		}
		Sort(all)

		pending := false
		for _, p := range all {
			if p.CapturedAt == nil && (targets == nil || targets[p.ID]) {
				pending = true
				break
			}
		}
		if !pending {
			return nil
		}

		dates := Interpolate(all, s.now())
		for i, p := range all {
			if p.CapturedAt != nil || (targets != nil && !targets[p.ID]) {
				continue
			}
			updated := photo.WithCapturedAt(p, dates[i])
			if err := repo.Update(ctx, &updated); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("interpolating dates: %w", err)
	}

	if count > 0 {
		s.logger.Info("interpolated capture dates", "count", count)
		s.logActivity(ctx, &activity.ActivityEntry{
			ActivityType: activity.TypeDatesInterpolated,
			Summary:      fmt.Sprintf("interpolated %d capture dates", count),
		})
	}
	return count, nil
}

func (s *Service) logActivity(ctx context.Context, entry *activity.ActivityEntry) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, entry)
}

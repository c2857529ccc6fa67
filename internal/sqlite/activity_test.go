package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestActivityRepository_LogList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	entry1 := &activity.ActivityEntry{
		BatchID:      "b1",
		ActivityType: activity.TypeBatchIngested,
		Summary:      "Ingested 3 photos",
		Details:      `{"accepted":3}`,
	}
	entry2 := &activity.ActivityEntry{
		ActivityType: activity.TypeVideoBuilt,
		Summary:      "Built video",
	}

	require.NoError(t, repo.Log(ctx, entry1))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.Log(ctx, entry2))
	require.NotZero(t, entry1.ID)

	entries, err := repo.List(ctx, activity.ListActivityOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entry2.ActivityType, entries[0].ActivityType)
	require.Equal(t, entry1.ActivityType, entries[1].ActivityType)
	require.Equal(t, "b1", entries[1].BatchID)
	require.Equal(t, `{"accepted":3}`, entries[1].Details)
	require.Nil(t, entries[1].PhotoID)
}

func TestActivityRepository_Filters(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	photoID := int64(7)
	require.NoError(t, repo.Log(ctx, &activity.ActivityEntry{
		PhotoID:      &photoID,
		ActivityType: activity.TypePhotoAligned,
		Summary:      "Aligned 7.jpg",
	}))
	require.NoError(t, repo.Log(ctx, &activity.ActivityEntry{
		PhotoID:      &photoID,
		ActivityType: activity.TypeInclusionChanged,
		Summary:      "Excluded 7.jpg",
	}))
	require.NoError(t, repo.Log(ctx, &activity.ActivityEntry{
		BatchID:      "b2",
		ActivityType: activity.TypeBatchIngested,
		Summary:      "Ingested 1 photo",
	}))

	aligned := activity.TypePhotoAligned
	entries, err := repo.List(ctx, activity.ListActivityOptions{PhotoID: &photoID, ActivityType: &aligned})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, photoID, *entries[0].PhotoID)

	entries, err = repo.List(ctx, activity.ListActivityOptions{BatchID: "b2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = repo.List(ctx, activity.ListActivityOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = repo.List(ctx, activity.ListActivityOptions{Offset: 2})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

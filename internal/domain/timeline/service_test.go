package timeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/domain/timeline"
	"github.com/rpggio/facelapse/internal/testenv"
	"github.com/stretchr/testify/require"
)

func TestService_ListingUsesTimelineOrder(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.AddPhoto(t, photo.Photo{DisplayName: "10.jpg", ContentHash: "a"})
	env.AddPhoto(t, photo.Photo{DisplayName: "2.jpg", ContentHash: "b"})
	env.AddPhoto(t, photo.Photo{DisplayName: "1.jpg", ContentHash: "c"})

	listing, err := env.Timeline.Listing(ctx)
	require.NoError(t, err)
	require.Len(t, listing, 3)
	require.Equal(t, "1.jpg", listing[0].DisplayName)
	require.Equal(t, 1, listing[0].Position)
	require.Equal(t, "10.jpg", listing[2].DisplayName)
	require.Equal(t, 3, listing[2].Position)
}

func TestService_SetManualOrder(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	env.AddPhoto(t, photo.Photo{DisplayName: "1.jpg", ContentHash: "a"})
	last := env.AddPhoto(t, photo.Photo{DisplayName: "2.jpg", ContentHash: "b"})

	order := 5
	updated, err := env.Timeline.SetManualOrder(ctx, last.ID, &order)
	require.NoError(t, err)
	require.Equal(t, 5, *updated.ManualOrder)

	listing, err := env.Timeline.Listing(ctx)
	require.NoError(t, err)
	require.Equal(t, "2.jpg", listing[0].DisplayName)

	_, err = env.Timeline.SetManualOrder(ctx, last.ID, nil)
	require.NoError(t, err)
	listing, err = env.Timeline.Listing(ctx)
	require.NoError(t, err)
	require.Equal(t, "1.jpg", listing[0].DisplayName)

	_, err = env.Timeline.SetManualOrder(ctx, 999, &order)
	require.ErrorIs(t, err, photo.ErrPhotoNotFound)
}

func TestService_ReorderSkipsUnknownIDs(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	a := env.AddPhoto(t, photo.Photo{DisplayName: "1.jpg", ContentHash: "a"})
	b := env.AddPhoto(t, photo.Photo{DisplayName: "2.jpg", ContentHash: "b"})

	count, err := env.Timeline.Reorder(ctx, []timeline.OrderUpdate{
		{ID: b.ID, Order: intPtr(0)},
		{ID: 404, Order: intPtr(1)},
		{ID: a.ID, Order: intPtr(2)},
	})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	listing, err := env.Timeline.Listing(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID, a.ID}, []int64{listing[0].ID, listing[1].ID})
}

func TestService_ReorderClearsPins(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	a := env.AddPhoto(t, photo.Photo{DisplayName: "1.jpg", ContentHash: "a"})
	b := env.AddPhoto(t, photo.Photo{DisplayName: "2.jpg", ContentHash: "b", ManualOrder: intPtr(0)})

	count, err := env.Timeline.Reorder(ctx, []timeline.OrderUpdate{{ID: b.ID}})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	loaded, err := env.Photos.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Nil(t, loaded.ManualOrder)

	listing, err := env.Timeline.Listing(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, b.ID}, []int64{listing[0].ID, listing[1].ID})
}

func intPtr(v int) *int { return &v }

func TestService_InterpolatePersistsMidpoint(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	d0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d4 := time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)
	env.AddPhoto(t, photo.Photo{DisplayName: "1.jpg", ContentHash: "a", CapturedAt: &d0})
	env.AddPhoto(t, photo.Photo{DisplayName: "2.jpg", ContentHash: "b"})
	mid := env.AddPhoto(t, photo.Photo{DisplayName: "3.jpg", ContentHash: "c"})
	env.AddPhoto(t, photo.Photo{DisplayName: "4.jpg", ContentHash: "d"})
	env.AddPhoto(t, photo.Photo{DisplayName: "5.jpg", ContentHash: "e", CapturedAt: &d4})

	count, err := env.Timeline.Interpolate(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	loaded, err := env.Photos.Get(ctx, mid.ID)
	require.NoError(t, err)
	require.True(t, d0.Add(d4.Sub(d0)/2).Equal(*loaded.CapturedAt))

	count, err = env.Timeline.Interpolate(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestService_InterpolateOnlyListedIDs(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	d0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	known := env.AddPhoto(t, photo.Photo{DisplayName: "1.jpg", ContentHash: "a", CapturedAt: &d0})
	target := env.AddPhoto(t, photo.Photo{DisplayName: "2.jpg", ContentHash: "b"})
	other := env.AddPhoto(t, photo.Photo{DisplayName: "3.jpg", ContentHash: "c"})

	count, err := env.Timeline.Interpolate(ctx, []int64{known.ID, target.ID})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	loaded, err := env.Photos.Get(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.CapturedAt)

	loaded, err = env.Photos.Get(ctx, other.ID)
	require.NoError(t, err)
	require.Nil(t, loaded.CapturedAt)

	loaded, err = env.Photos.Get(ctx, known.ID)
	require.NoError(t, err)
	require.True(t, d0.Equal(*loaded.CapturedAt))
}

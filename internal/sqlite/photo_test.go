package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/repository"
	"github.com/stretchr/testify/require"
)

func newPhoto(name, hash string) *photo.Photo {
	return &photo.Photo{
		DisplayName: name,
		SourceName:  "IMG_" + name,
		ContentHash: hash,
	}
}

func TestPhotoRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	captured := time.Date(2023, 5, 6, 10, 0, 0, 0, time.UTC)
	order := 3
	p := newPhoto("1.jpg", "aa")
	p.CapturedAt = &captured
	p.ManualOrder = &order

	require.NoError(t, repo.Create(ctx, p))
	require.NotZero(t, p.ID)

	loaded, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "1.jpg", loaded.DisplayName)
	require.Equal(t, "IMG_1.jpg", loaded.SourceName)
	require.Equal(t, "aa", loaded.ContentHash)
	require.True(t, captured.Equal(*loaded.CapturedAt))
	require.Equal(t, 3, *loaded.ManualOrder)
	require.Nil(t, loaded.Eyes)
	require.Nil(t, loaded.AlignedAt)
	require.False(t, loaded.FaceDetected)
	require.False(t, loaded.CreatedAt.IsZero())

	byHash, err := repo.GetByContentHash(ctx, "aa")
	require.NoError(t, err)
	require.Equal(t, p.ID, byHash.ID)
}

func TestPhotoRepository_NotFound(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	_, err := repo.Get(ctx, 42)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByContentHash(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.Update(ctx, &photo.Photo{ID: 42})
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.Delete(ctx, 42)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPhotoRepository_UniqueContentHash(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	require.NoError(t, repo.Create(ctx, newPhoto("1.jpg", "same")))
	err := repo.Create(ctx, newPhoto("2.jpg", "same"))
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestPhotoRepository_UpdateAlignment(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	p := newPhoto("1.jpg", "aa")
	require.NoError(t, repo.Create(ctx, p))

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	aligned := photo.ApplyAlignment(*p, &photo.EyeGeometry{
		Left:  photo.Point{X: 100.5, Y: 150},
		Right: photo.Point{X: 220, Y: 151.25},
	}, at)
	require.NoError(t, repo.Update(ctx, &aligned))

	loaded, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, loaded.FaceDetected)
	require.True(t, loaded.IncludedInOutput)
	require.Equal(t, aligned.Eyes, loaded.Eyes)
	require.True(t, at.Equal(*loaded.AlignedAt))

	failed := photo.ApplyAlignment(*loaded, nil, at.Add(time.Hour))
	require.NoError(t, repo.Update(ctx, &failed))

	loaded, err = repo.Get(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, loaded.FaceDetected)
	require.False(t, loaded.IncludedInOutput)
	require.Nil(t, loaded.Eyes)
	require.NotNil(t, loaded.AlignedAt)
}

func TestPhotoRepository_RejectsInclusionWithoutFace(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	p := newPhoto("1.jpg", "aa")
	require.NoError(t, repo.Create(ctx, p))

	p.IncludedInOutput = true
	err := repo.Update(ctx, p)
	require.ErrorIs(t, err, repository.ErrInvalidInput)
	require.ErrorIs(t, err, photo.ErrNotEligible)
}

func TestPhotoRepository_CreateValidates(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	err := repo.Create(ctx, newPhoto("", "aa"))
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	faceless := newPhoto("1.jpg", "bb")
	faceless.FaceDetected = true
	err = repo.Create(ctx, faceless)
	require.ErrorIs(t, err, photo.ErrInvalidInput)
	require.Zero(t, faceless.ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestPhotoRepository_ListAndDelete(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	a := newPhoto("1.jpg", "aa")
	b := newPhoto("2.jpg", "bb")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, a.ID, all[0].ID)

	require.NoError(t, repo.Delete(ctx, a.ID))
	all, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "2.jpg", all[0].DisplayName)
}

func TestPhotoRepository_InTxRollsBack(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx photo.Repository) error {
		if err := tx.Create(ctx, newPhoto("1.jpg", "aa")); err != nil {
			return err
		}
		if _, err := tx.ReserveDisplayNumbers(ctx, 5); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	start, err := repo.ReserveDisplayNumbers(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), start)
}

func TestPhotoRepository_ReserveDisplayNumbers(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	start, err := repo.ReserveDisplayNumbers(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, int64(1), start)

	start, err = repo.ReserveDisplayNumbers(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(4), start)

	_, err = repo.ReserveDisplayNumbers(ctx, 0)
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestPhotoRepository_ReserveSkipsExistingNames(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	// rows imported without going through the mark
	require.NoError(t, repo.Create(ctx, newPhoto("41.png", "aa")))
	require.NoError(t, repo.Create(ctx, newPhoto("holiday.jpg", "bb")))

	start, err := repo.ReserveDisplayNumbers(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(42), start)
}

func TestPhotoRepository_NumbersNotReusedAfterDelete(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewPhotoRepository(db)

	start, err := repo.ReserveDisplayNumbers(ctx, 2)
	require.NoError(t, err)
	first := newPhoto("1.jpg", "aa")
	second := newPhoto("2.jpg", "bb")
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.Equal(t, int64(1), start)

	require.NoError(t, repo.Delete(ctx, second.ID))

	next, err := repo.ReserveDisplayNumbers(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), next)
}

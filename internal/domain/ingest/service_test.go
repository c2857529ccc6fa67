package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/rpggio/facelapse/internal/blob"
	"github.com/rpggio/facelapse/internal/capturedate"
	"github.com/rpggio/facelapse/internal/domain/ingest"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/repository"
	"github.com/rpggio/facelapse/internal/repository/mocks"
	"github.com/rpggio/facelapse/internal/testenv"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func upload(name, content string) ingest.Upload {
	return ingest.Upload{Name: name, Body: strings.NewReader(content)}
}

func stagingEntries(t *testing.T, blobs *blob.Local) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(blobs.Path(photo.StagingDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func TestSubmit_EmptyBatch(t *testing.T) {
	env := testenv.New(t)

	_, err := env.Ingest.Submit(context.Background(), nil)
	require.ErrorIs(t, err, ingest.ErrEmptyBatch)
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestSubmit_DuplicateAcrossBatches(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	first, err := env.Ingest.Submit(ctx, []ingest.Upload{upload("beach.jpg", "same bytes")})
	require.NoError(t, err)
	require.Equal(t, 1, first.Accepted)
	stored := first.Outcomes[0].Photo
	require.Equal(t, "1.jpg", stored.DisplayName)

	second, err := env.Ingest.Submit(ctx, []ingest.Upload{upload("renamed copy.jpg", "same bytes")})
	require.NoError(t, err)
	require.Zero(t, second.Accepted)
	require.Equal(t, ingest.StatusDuplicateInLibrary, second.Outcomes[0].Status)
	require.Equal(t, stored.ID, second.Outcomes[0].ExistingID)
	require.Equal(t, "1.jpg", second.Outcomes[0].ExistingName)

	all, err := env.Photos.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Empty(t, stagingEntries(t, env.Blobs))
}

func TestSubmit_DuplicateWithinBatch(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	res, err := env.Ingest.Submit(ctx, []ingest.Upload{
		upload("a.jpg", "x"),
		upload("b.jpg", "y"),
		upload("c.jpg", "x"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Accepted)
	require.Equal(t, 1, res.Duplicates)
	require.NotEmpty(t, res.BatchID)

	dup := res.Outcomes[2]
	require.Equal(t, ingest.StatusDuplicateInBatch, dup.Status)
	require.Equal(t, 0, *dup.SiblingIndex)
	require.Equal(t, res.Outcomes[0].Photo.ID, dup.ExistingID)
	require.Equal(t, res.Outcomes[0].Photo.DisplayName, dup.ExistingName)

	all, err := env.Photos.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotEqual(t, all[0].ContentHash, all[1].ContentHash)
	require.Empty(t, stagingEntries(t, env.Blobs))
}

func TestSubmit_LaterCopyOfLibraryPhotoInSameBatch(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	_, err := env.Ingest.Submit(ctx, []ingest.Upload{upload("a.jpg", "x")})
	require.NoError(t, err)

	res, err := env.Ingest.Submit(ctx, []ingest.Upload{upload("b.jpg", "x"), upload("c.jpg", "x")})
	require.NoError(t, err)
	for _, o := range res.Outcomes {
		require.Equal(t, ingest.StatusDuplicateInLibrary, o.Status)
		require.Equal(t, "1.jpg", o.ExistingName)
	}
}

func TestSubmit_NumbersByDateThenFilenameNumber(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	res, err := env.Ingest.Submit(ctx, []ingest.Upload{
		upload("scan_12.PNG", "p1"),
		upload("IMG_20230102_101010.jpg", "p2"),
		upload("scan_3.jpeg", "p3"),
		upload("IMG_20220101_101010.jpg", "p4"),
	})
	require.NoError(t, err)
	require.Equal(t, 4, res.Accepted)

	byName := map[string]string{}
	for _, o := range res.Outcomes {
		byName[o.SourceName] = o.Photo.DisplayName
	}
	require.Equal(t, "1.jpg", byName["IMG_20220101_101010.jpg"])
	require.Equal(t, "2.jpg", byName["IMG_20230102_101010.jpg"])
	require.Equal(t, "3.jpeg", byName["scan_3.jpeg"])
	require.Equal(t, "4.png", byName["scan_12.PNG"])

	require.Equal(t, capturedate.SourceFilename, res.Outcomes[1].DateSource)
	require.Nil(t, res.Outcomes[0].Photo.CapturedAt)

	ok, err := env.Blobs.Exists(ctx, "originals/4.png")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSubmit_NumberingContinuesAfterDeletion(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	res, err := env.Ingest.Submit(ctx, []ingest.Upload{upload("1.jpg", "a"), upload("2.jpg", "b")})
	require.NoError(t, err)
	require.NoError(t, env.PhotoService.Delete(ctx, res.Outcomes[1].Photo.ID))

	res, err = env.Ingest.Submit(ctx, []ingest.Upload{upload("3.jpg", "c")})
	require.NoError(t, err)
	require.Equal(t, "3.jpg", res.Outcomes[0].Photo.DisplayName)
}

func TestSubmit_SniffsUnknownExtensions(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))

	res, err := env.Ingest.Submit(ctx, []ingest.Upload{
		{Name: "upload.bin", Body: &buf},
		upload("notes.txt", "plain text"),
	})
	require.NoError(t, err)
	require.Equal(t, "1.png", res.Outcomes[0].Photo.DisplayName)
	require.Equal(t, "2.jpg", res.Outcomes[1].Photo.DisplayName)
}

func TestSubmit_RejectsHEIC(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()

	_, err := env.Ingest.Submit(ctx, []ingest.Upload{
		upload("1.jpg", "fine"),
		upload("IMG_4411.HEIC", "not decodable"),
	})
	require.ErrorIs(t, err, ingest.ErrUnsupportedFormat)
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	heif := make([]byte, 32)
	copy(heif[4:], "ftypheic")
	_, err = env.Ingest.Submit(ctx, []ingest.Upload{{Name: "export.bin", Body: bytes.NewReader(heif)}})
	require.ErrorIs(t, err, ingest.ErrUnsupportedFormat)

	all, err := env.Photos.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
	require.Empty(t, stagingEntries(t, env.Blobs))
	require.False(t, ingest.SupportedFile("IMG_4411.heic"))
}

func TestSubmit_RollsBackFilesOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	store := &mocks.PhotoStore{}
	store.On("GetByContentHash", ctx, mock.Anything).Return(nil, repository.ErrNotFound)
	store.On("ReserveDisplayNumbers", ctx, 2).Return(int64(1), nil)
	store.On("Create", ctx, mock.MatchedBy(func(p *photo.Photo) bool { return p.DisplayName == "1.jpg" })).Return(nil)
	store.On("Create", ctx, mock.MatchedBy(func(p *photo.Photo) bool { return p.DisplayName == "2.jpg" })).Return(errors.New("disk full"))

	svc := ingest.NewService(store, blobs, nil, nil, nil)
	_, err = svc.Submit(ctx, []ingest.Upload{upload("a.jpg", "1"), upload("b.jpg", "2")})
	require.Error(t, err)

	for _, key := range []string{"originals/1.jpg", "originals/2.jpg"} {
		ok, err := blobs.Exists(ctx, key)
		require.NoError(t, err)
		require.False(t, ok, key)
	}
	require.Empty(t, stagingEntries(t, blobs))
}

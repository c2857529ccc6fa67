package mocks

import (
	"context"
	"io"

	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/encoder"
	"github.com/rpggio/facelapse/internal/facealign"
	"github.com/stretchr/testify/mock"
)

// PhotoStore is a mock for photo.Store. InTx runs fn against the mock itself.
type PhotoStore struct {
	mock.Mock
}

func (m *PhotoStore) InTx(ctx context.Context, fn func(photo.Repository) error) error {
	return fn(m)
}

func (m *PhotoStore) Create(ctx context.Context, p *photo.Photo) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *PhotoStore) Get(ctx context.Context, id int64) (*photo.Photo, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*photo.Photo); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PhotoStore) GetByContentHash(ctx context.Context, hash string) (*photo.Photo, error) {
	args := m.Called(ctx, hash)
	if p, ok := args.Get(0).(*photo.Photo); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PhotoStore) Update(ctx context.Context, p *photo.Photo) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *PhotoStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *PhotoStore) List(ctx context.Context) ([]photo.Photo, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]photo.Photo); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PhotoStore) ReserveDisplayNumbers(ctx context.Context, count int) (int64, error) {
	args := m.Called(ctx, count)
	return args.Get(0).(int64), args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if entries, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

// BlobStore is a mock for photo.BlobStore.
type BlobStore struct {
	mock.Mock
}

func (m *BlobStore) Write(ctx context.Context, key string, r io.Reader) error {
	args := m.Called(ctx, key, r)
	return args.Error(0)
}

func (m *BlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *BlobStore) Rename(ctx context.Context, from, to string) error {
	args := m.Called(ctx, from, to)
	return args.Error(0)
}

func (m *BlobStore) Path(key string) string {
	args := m.Called(key)
	return args.String(0)
}

// Aligner is a mock for alignment.Aligner.
type Aligner struct {
	mock.Mock
}

func (m *Aligner) Align(ctx context.Context, originalKey, alignedKey string) (facealign.Result, error) {
	args := m.Called(ctx, originalKey, alignedKey)
	return args.Get(0).(facealign.Result), args.Error(1)
}

// FrameEncoder is a mock for video.FrameEncoder.
type FrameEncoder struct {
	mock.Mock
}

func (m *FrameEncoder) Encode(ctx context.Context, frames []encoder.Frame, outPath string) error {
	args := m.Called(ctx, frames, outPath)
	return args.Error(0)
}

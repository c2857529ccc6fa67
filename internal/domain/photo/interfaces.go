package photo

import (
	"context"
	"io"

	"github.com/rpggio/facelapse/internal/domain/activity"
)

// Repository provides persistence operations for photos.
type Repository interface {
	Create(ctx context.Context, p *Photo) error
	Get(ctx context.Context, id int64) (*Photo, error)
	GetByContentHash(ctx context.Context, hash string) (*Photo, error)
	Update(ctx context.Context, p *Photo) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Photo, error)
	// ReserveDisplayNumbers claims count consecutive display numbers and
	// returns the first. Numbers are never handed out twice.
	ReserveDisplayNumbers(ctx context.Context, count int) (int64, error)
}

// Store is a Repository that can run a unit of work in a transaction. The
// Repository passed to fn is bound to the transaction; returning an error
// rolls it back.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}

// BlobStore holds original uploads, aligned frames and rendered videos under
// slash-separated keys.
type BlobStore interface {
	Write(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Rename(ctx context.Context, from, to string) error
	// Path returns the local filesystem path of key, for external tools.
	Path(key string) string
}

// ActivityRepository records activity entries.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}

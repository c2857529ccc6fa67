// Package testenv assembles the full engine over an in-memory database and a
// temporary blob root for tests.
package testenv

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/facelapse/internal/blob"
	"github.com/rpggio/facelapse/internal/capturedate"
	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/alignment"
	"github.com/rpggio/facelapse/internal/domain/ingest"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/domain/timeline"
	"github.com/rpggio/facelapse/internal/domain/video"
	"github.com/rpggio/facelapse/internal/encoder"
	"github.com/rpggio/facelapse/internal/facealign"
	"github.com/rpggio/facelapse/internal/landmark"
	"github.com/rpggio/facelapse/internal/sqlite"
)

// Env is a wired engine backed by throwaway storage.
type Env struct {
	DB         *sqlite.DB
	Photos     *sqlite.PhotoRepository
	Activities *sqlite.ActivityRepository
	Blobs      *blob.Local
	Detector   *Detector
	Encoder    *Encoder

	PhotoService *photo.Service
	Timeline     *timeline.Service
	Ingest       *ingest.Service
	Alignment    *alignment.Service
	Video        *video.Service
	Activity     *activity.Service
}

// New builds an Env and registers its cleanup with t.
func New(t *testing.T) *Env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	photos := sqlite.NewPhotoRepository(db)
	activities := sqlite.NewActivityRepository(db)
	detector := &Detector{}
	enc := &Encoder{}

	aligner, err := facealign.NewAligner(detector, blobs, facealign.DefaultParams(), nil)
	require.NoError(t, err)

	return &Env{
		DB:           db,
		Photos:       photos,
		Activities:   activities,
		Blobs:        blobs,
		Detector:     detector,
		Encoder:      enc,
		PhotoService: photo.NewService(photos, blobs, activities, nil),
		Timeline:     timeline.NewService(photos, activities, nil),
		Ingest:       ingest.NewService(photos, blobs, capturedate.NewResolver(capturedate.ExifReader{}), activities, nil),
		Alignment:    alignment.NewService(photos, blobs, aligner, activities, nil),
		Video:        video.NewService(photos, blobs, enc, activities, nil),
		Activity:     activity.NewService(activities, nil),
	}
}

// AddPhoto inserts a record directly, bypassing ingestion.
func (e *Env) AddPhoto(t *testing.T, p photo.Photo) photo.Photo {
	t.Helper()
	require.NoError(t, e.Photos.Create(context.Background(), &p))
	return p
}

// WritePortrait stores a w x h PNG under key.
func (e *Env) WritePortrait(t *testing.T, key string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, e.Blobs.Write(context.Background(), key, &buf))
}

// Detector reports one face with level eyes at 40% and 60% of the width.
type Detector struct {
	mu        sync.Mutex
	noFace    bool
	calls     int
	failAfter int
	failErr   error
}

// FailAfter makes every detection after the next n return err.
func (d *Detector) FailAfter(n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAfter = d.calls + n
	d.failErr = err
}

// SetNoFace makes later detections find nothing.
func (d *Detector) SetNoFace(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.noFace = v
}

// Calls is the number of Detect invocations so far.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *Detector) Detect(ctx context.Context, img image.Image, minConfidence float64) (landmark.Set, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failErr != nil && d.calls > d.failAfter {
		return nil, d.failErr
	}
	if d.noFace {
		return nil, nil
	}
	set := make(landmark.Set, 478)
	for _, idx := range facealign.DefaultLeftEyeIndices {
		set[idx] = landmark.Point{X: 0.4, Y: 0.4}
	}
	for _, idx := range facealign.DefaultRightEyeIndices {
		set[idx] = landmark.Point{X: 0.6, Y: 0.4}
	}
	return set, nil
}

// Encoder records the frames it is asked to encode and writes a placeholder
// output file.
type Encoder struct {
	mu     sync.Mutex
	Frames []encoder.Frame
	Err    error
}

func (e *Encoder) Encode(ctx context.Context, frames []encoder.Frame, outPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.Frames = append([]encoder.Frame(nil), frames...)
	return os.WriteFile(outPath, []byte("video"), 0o644)
}

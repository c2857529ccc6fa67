// Package video assembles the aligned frames of the timeline into a video.
package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/domain/timeline"
	"github.com/rpggio/facelapse/internal/encoder"
)

// Frame duration bounds.
const (
	DefaultFrameDuration = 100 * time.Millisecond
	MinFrameDuration     = 10 * time.Millisecond
	MaxFrameDuration     = 5 * time.Second
)

// FrameEncoder turns an ordered frame list into a video file.
type FrameEncoder interface {
	Encode(ctx context.Context, frames []encoder.Frame, outPath string) error
}

// Options controls a build. A zero FrameDuration uses DefaultFrameDuration.
type Options struct {
	FrameDuration time.Duration
	ShowDates     bool
	Birthday      *time.Time
}

// Result describes a built video.
type Result struct {
	Key           string  `json:"key"`
	Path          string  `json:"path"`
	FileName      string  `json:"file_name"`
	FrameCount    int     `json:"frame_count"`
	FrameDuration float64 `json:"frame_duration"`
	TotalDuration float64 `json:"total_duration"`
}

// Service builds videos.
type Service struct {
	store      photo.Store
	blobs      photo.BlobStore
	encoder    FrameEncoder
	activities photo.ActivityRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new video service.
func NewService(store photo.Store, blobs photo.BlobStore, enc FrameEncoder, activities photo.ActivityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:      store,
		blobs:      blobs,
		encoder:    enc,
		activities: activities,
		logger:     logger,
		now:        time.Now,
	}
}

// OutputName is the file name of a video built with the given options.
func OutputName(frameDuration time.Duration, showDates bool) string {
	suffix := ""
	if showDates {
		suffix = "_dates"
	}
	return fmt.Sprintf("timelapse_%.2fs%s.mp4", frameDuration.Seconds(), suffix)
}

type frameSource struct {
	photo photo.Photo
	date  time.Time
	path  string
}

// Build encodes every included photo with an aligned frame, in timeline order.
func (s *Service) Build(ctx context.Context, opts Options) (*Result, error) {
	if opts.FrameDuration == 0 {
		opts.FrameDuration = DefaultFrameDuration
	}
	if opts.FrameDuration < MinFrameDuration || opts.FrameDuration > MaxFrameDuration {
		return nil, ErrInvalidFrameDuration
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}
	timeline.Sort(all)
	dates := timeline.Interpolate(all, s.now())

	var sources []frameSource
	for i, p := range all {
		if !p.IncludedInOutput || !p.FaceDetected {
			continue
		}
		ok, err := s.blobs.Exists(ctx, p.AlignedKey())
		if err != nil {
			return nil, fmt.Errorf("checking aligned frame: %w", err)
		}
		if !ok {
			s.logger.Warn("aligned frame missing, skipping", "photo_id", p.ID, "key", p.AlignedKey())
			continue
		}
		sources = append(sources, frameSource{photo: p, date: dates[i], path: s.blobs.Path(p.AlignedKey())})
	}
	if len(sources) == 0 {
		return nil, ErrNoFrames
	}

	if opts.ShowDates {
		dir, err := os.MkdirTemp("", "facelapse-overlay-*")
		if err != nil {
			return nil, fmt.Errorf("creating overlay directory: %w", err)
		}
		defer os.RemoveAll(dir)

		if err := renderOverlays(ctx, sources, dir, opts.Birthday); err != nil {
			return nil, err
		}
	}

	frames := make([]encoder.Frame, len(sources))
	for i, src := range sources {
		frames[i] = encoder.Frame{Path: src.path, Duration: opts.FrameDuration}
	}

	name := OutputName(opts.FrameDuration, opts.ShowDates)
	key := path.Join(photo.VideosDir, name)
	outPath := s.blobs.Path(key)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating video directory: %w", err)
	}
	start := time.Now()
	if err := s.encoder.Encode(ctx, frames, outPath); err != nil {
		return nil, fmt.Errorf("encoding video: %w", err)
	}

	res := &Result{
		Key:           key,
		Path:          outPath,
		FileName:      name,
		FrameCount:    len(frames),
		FrameDuration: opts.FrameDuration.Seconds(),
		TotalDuration: (time.Duration(len(frames)) * opts.FrameDuration).Seconds(),
	}
	s.logger.Info("built video", "file", name, "frames", res.FrameCount, "elapsed", time.Since(start))
	s.logActivity(ctx, &activity.ActivityEntry{
		ActivityType: activity.TypeVideoBuilt,
		Summary:      fmt.Sprintf("built %s from %d frames", name, res.FrameCount),
	})
	return res, nil
}

// renderOverlays writes a labelled copy of each frame into dir and points the
// source at it.
func renderOverlays(ctx context.Context, sources []frameSource, dir string, birthday *time.Time) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range sources {
		src := &sources[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := filepath.Join(dir, fmt.Sprintf("dated_%d.jpg", src.photo.ID))
			if err := overlayFrame(src.path, out, Label(src.date, birthday)); err != nil {
				return fmt.Errorf("rendering overlay for %s: %w", src.photo.DisplayName, err)
			}
			src.path = out
			return nil
		})
	}
	return g.Wait()
}

func overlayFrame(in, out, label string) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return err
	}

	canvas := image.NewRGBA(img.Bounds())
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)
	DrawLabel(canvas, label)

	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(dst, canvas, &jpeg.Options{Quality: 95}); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (s *Service) logActivity(ctx context.Context, entry *activity.ActivityEntry) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, entry)
}

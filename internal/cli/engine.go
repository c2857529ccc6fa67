package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rpggio/facelapse/internal/blob"
	"github.com/rpggio/facelapse/internal/capturedate"
	"github.com/rpggio/facelapse/internal/config"
	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/alignment"
	"github.com/rpggio/facelapse/internal/domain/ingest"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/domain/timeline"
	"github.com/rpggio/facelapse/internal/domain/video"
	"github.com/rpggio/facelapse/internal/encoder"
	"github.com/rpggio/facelapse/internal/facealign"
	"github.com/rpggio/facelapse/internal/landmark"
	"github.com/rpggio/facelapse/internal/mcp"
	"github.com/rpggio/facelapse/internal/sqlite"
)

// engine is the wired set of services behind every command.
type engine struct {
	db       *sqlite.DB
	blobs    *blob.Local
	detector *landmark.HTTPDetector
	logger   *slog.Logger

	photos    *photo.Service
	timeline  *timeline.Service
	ingest    *ingest.Service
	alignment *alignment.Service
	video     *video.Service
	activity  *activity.Service
}

func openEngine(cfg config.Config, logger *slog.Logger) (*engine, error) {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("preparing database path: %w", err)
	}
	db, err := sqlite.New(sqlite.FileDSN(cfg.DB.Path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	blobs, err := blob.NewLocal(cfg.Storage.DataDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	detector := landmark.NewHTTPDetector(cfg.Detector.URL, cfg.Detector.Timeout)
	aligner, err := facealign.NewAligner(detector, blobs, cfg.Alignment.Params(), logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	photoRepo := sqlite.NewPhotoRepository(db)
	activityRepo := sqlite.NewActivityRepository(db)
	enc := &lazyEncoder{path: cfg.Video.FFmpegPath, timeout: cfg.Video.Timeout, logger: logger}

	return &engine{
		db:        db,
		blobs:     blobs,
		detector:  detector,
		logger:    logger,
		photos:    photo.NewService(photoRepo, blobs, activityRepo, logger),
		timeline:  timeline.NewService(photoRepo, activityRepo, logger),
		ingest:    ingest.NewService(photoRepo, blobs, capturedate.NewResolver(capturedate.ExifReader{}), activityRepo, logger),
		alignment: alignment.NewService(photoRepo, blobs, aligner, activityRepo, logger),
		video:     video.NewService(photoRepo, blobs, enc, activityRepo, logger),
		activity:  activity.NewService(activityRepo, logger),
	}, nil
}

func (e *engine) Close() error {
	return e.db.Close()
}

func (e *engine) mcpServices() mcp.Services {
	return mcp.Services{
		Ingest:    e.ingest,
		Alignment: e.alignment,
		Timeline:  e.timeline,
		Photos:    e.photos,
		Video:     e.video,
		Activity:  e.activity,
	}
}

// checkDetector warns when the landmark service is down, before an alignment
// run stops at its first photo.
func (e *engine) checkDetector(ctx context.Context) {
	health, err := e.detector.Health(ctx)
	if err != nil {
		e.logger.Warn("landmark service not reachable", "error", err)
		return
	}
	e.logger.Debug("landmark service ready", "status", health.Status, "model", health.Model)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// lazyEncoder locates ffmpeg on first use so commands that never build a
// video run without it. A failed lookup is retried on the next build.
type lazyEncoder struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
	find    func(ctx context.Context, customPath string) (*encoder.BinaryInfo, error)

	mu  sync.Mutex
	enc video.FrameEncoder
}

func (l *lazyEncoder) Encode(ctx context.Context, frames []encoder.Frame, outPath string) error {
	enc, err := l.encoder(ctx)
	if err != nil {
		return err
	}
	return enc.Encode(ctx, frames, outPath)
}

func (l *lazyEncoder) encoder(ctx context.Context) (video.FrameEncoder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enc != nil {
		return l.enc, nil
	}

	find := l.find
	if find == nil {
		find = func(ctx context.Context, customPath string) (*encoder.BinaryInfo, error) {
			return encoder.NewFinder(customPath).Find(ctx)
		}
	}
	info, err := find(ctx, l.path)
	if err != nil {
		return nil, err
	}
	l.logger.Info("using ffmpeg", "path", info.Path, "version", info.Version)
	l.enc = encoder.NewFFmpeg(info.Path, l.timeout, l.logger)
	return l.enc, nil
}

package mcp

import (
	"context"
	"iter"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/alignment"
	"github.com/rpggio/facelapse/internal/domain/ingest"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/domain/timeline"
	"github.com/rpggio/facelapse/internal/domain/video"
)

// IngestService defines ingestion operations needed by MCP.
type IngestService interface {
	SubmitFiles(ctx context.Context, paths []string) (*ingest.Result, error)
}

// AlignmentService defines alignment operations needed by MCP.
type AlignmentService interface {
	Pending(ctx context.Context) ([]int64, error)
	Run(ctx context.Context, ids []int64) iter.Seq2[alignment.Progress, error]
}

// TimelineService defines ordering operations needed by MCP.
type TimelineService interface {
	Listing(ctx context.Context) ([]photo.Summary, error)
	SetManualOrder(ctx context.Context, id int64, order *int) (*photo.Photo, error)
	Reorder(ctx context.Context, updates []timeline.OrderUpdate) (int, error)
	Interpolate(ctx context.Context, ids []int64) (int, error)
}

// PhotoService defines per-photo operations needed by MCP.
type PhotoService interface {
	SetInclusion(ctx context.Context, id int64, include bool) (*photo.Photo, error)
	Delete(ctx context.Context, id int64) error
	PruneNoFace(ctx context.Context) (int, error)
}

// VideoService defines video operations needed by MCP.
type VideoService interface {
	Build(ctx context.Context, opts video.Options) (*video.Result, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Ingest    IngestService
	Alignment AlignmentService
	Timeline  TimelineService
	Photos    PhotoService
	Video     VideoService
	Activity  ActivityService
}

// Config contains server configuration.
type Config struct {
	Services Services
	Version  string
	Logger   *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "facelapse",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(callLoggingMiddleware(logger))

	registerTools(server, cfg.Services)

	return server
}

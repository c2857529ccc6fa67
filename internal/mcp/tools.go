package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/facelapse/internal/domain/activity"
	"github.com/rpggio/facelapse/internal/domain/alignment"
	"github.com/rpggio/facelapse/internal/domain/photo"
	"github.com/rpggio/facelapse/internal/domain/timeline"
	"github.com/rpggio/facelapse/internal/domain/video"
)

type SubmitBatchParams struct {
	Paths []string `json:"paths" jsonschema:"local file paths of the photos to ingest"`
}

type RunAlignmentParams struct {
	IDs []int64 `json:"ids,omitempty" jsonschema:"photo ids to align or realign; omit to align every photo never aligned"`
}

// RunAlignmentResponse holds every event of a run. Error is set when a
// fault ended the run early; the events before it are committed.
type RunAlignmentResponse struct {
	Events  []alignment.Progress `json:"events"`
	Aligned int                  `json:"aligned"`
	Failed  int                  `json:"failed"`
	Error   *APIError            `json:"error,omitempty"`
}

type ListPhotosResponse struct {
	Photos []photo.Summary `json:"photos"`
}

type SetManualOrderParams struct {
	ID    int64 `json:"id" jsonschema:"photo id"`
	Order *int  `json:"order,omitempty" jsonschema:"manual position; omit to clear it"`
}

type ReorderPhotosParams struct {
	Updates []OrderParam `json:"updates" jsonschema:"manual positions to apply in one transaction"`
}

type OrderParam struct {
	ID    int64 `json:"id"`
	Order *int  `json:"order,omitempty"`
}

type IDsParams struct {
	IDs []int64 `json:"ids,omitempty" jsonschema:"photo ids; omit for all photos"`
}

type CountResponse struct {
	Updated int `json:"updated"`
}

type SetInclusionParams struct {
	ID       int64 `json:"id" jsonschema:"photo id"`
	Included bool  `json:"included" jsonschema:"whether the photo appears in videos"`
}

type PhotoIDParams struct {
	ID int64 `json:"id" jsonschema:"photo id"`
}

type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

type BuildVideoParams struct {
	FrameDuration float64 `json:"frame_duration,omitempty" jsonschema:"seconds per frame, 0.01 to 5.0; default 0.1"`
	ShowDates     bool    `json:"show_dates,omitempty" jsonschema:"draw the capture date on each frame"`
	Birthday      string  `json:"birthday,omitempty" jsonschema:"YYYY-MM-DD; adds the subject's age to date labels"`
}

type RecentActivityParams struct {
	PhotoID *int64 `json:"photo_id,omitempty" jsonschema:"photo id to filter by"`
	BatchID string `json:"batch_id,omitempty" jsonschema:"ingestion batch id to filter by"`
	Type    string `json:"type,omitempty" jsonschema:"activity type to filter by"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of entries, default 50"`
}

type RecentActivityResponse struct {
	Entries []activity.ActivityEntry `json:"entries"`
}

type noParams struct{}

// addTool registers fn under name, mapping domain errors to API errors.
func addTool[In any](server *sdkmcp.Server, name, description string, fn func(context.Context, In) (any, error)) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
			out, err := fn(ctx, in)
			if err != nil {
				if apiErr := MapError(err); apiErr != nil {
					recordErrorCode(ctx, apiErr.Code)
					return nil, nil, apiErr
				}
				recordErrorCode(ctx, "INTERNAL")
				return nil, nil, err
			}
			return nil, out, nil
		})
}

func registerTools(server *sdkmcp.Server, svc Services) {
	addTool(server, "submit_batch",
		"Ingest a batch of local photo files. Duplicates are reported, not stored.",
		func(ctx context.Context, in SubmitBatchParams) (any, error) {
			return svc.Ingest.SubmitFiles(ctx, in.Paths)
		})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "run_alignment",
		Description: "Detect faces and write aligned frames. Reports one event per photo, also as progress notifications when a progress token is given.",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in RunAlignmentParams) (*sdkmcp.CallToolResult, any, error) {
		return runAlignment(ctx, req, svc.Alignment, in)
	})

	addTool(server, "list_photos",
		"List every photo in timeline order with its position.",
		func(ctx context.Context, _ noParams) (any, error) {
			photos, err := svc.Timeline.Listing(ctx)
			if err != nil {
				return nil, err
			}
			return ListPhotosResponse{Photos: photos}, nil
		})

	addTool(server, "set_manual_order",
		"Pin a photo to a manual position, or clear the pin.",
		func(ctx context.Context, in SetManualOrderParams) (any, error) {
			return svc.Timeline.SetManualOrder(ctx, in.ID, in.Order)
		})

	addTool(server, "reorder_photos",
		"Apply several manual positions at once. Unknown ids are skipped.",
		func(ctx context.Context, in ReorderPhotosParams) (any, error) {
			updates := make([]timeline.OrderUpdate, 0, len(in.Updates))
			for _, u := range in.Updates {
				updates = append(updates, timeline.OrderUpdate{ID: u.ID, Order: u.Order})
			}
			n, err := svc.Timeline.Reorder(ctx, updates)
			if err != nil {
				return nil, err
			}
			return CountResponse{Updated: n}, nil
		})

	addTool(server, "interpolate_dates",
		"Fill in capture dates of undated photos from their dated neighbours.",
		func(ctx context.Context, in IDsParams) (any, error) {
			n, err := svc.Timeline.Interpolate(ctx, in.IDs)
			if err != nil {
				return nil, err
			}
			return CountResponse{Updated: n}, nil
		})

	addTool(server, "set_inclusion",
		"Include or exclude a photo from videos. Only photos with a face can be included.",
		func(ctx context.Context, in SetInclusionParams) (any, error) {
			return svc.Photos.SetInclusion(ctx, in.ID, in.Included)
		})

	addTool(server, "delete_photo",
		"Delete a photo with its original and aligned frame.",
		func(ctx context.Context, in PhotoIDParams) (any, error) {
			if err := svc.Photos.Delete(ctx, in.ID); err != nil {
				return nil, err
			}
			return DeleteResponse{Deleted: 1}, nil
		})

	addTool(server, "prune_no_face",
		"Delete every aligned photo in which no face was found.",
		func(ctx context.Context, _ noParams) (any, error) {
			n, err := svc.Photos.PruneNoFace(ctx)
			if err != nil {
				return nil, err
			}
			return DeleteResponse{Deleted: n}, nil
		})

	addTool(server, "build_video",
		"Encode the included aligned frames into an mp4 in timeline order.",
		func(ctx context.Context, in BuildVideoParams) (any, error) {
			opts, err := videoOptions(in)
			if err != nil {
				return nil, err
			}
			return svc.Video.Build(ctx, opts)
		})

	addTool(server, "recent_activity",
		"List recent ingestion, alignment, ordering and video events, newest first.",
		func(ctx context.Context, in RecentActivityParams) (any, error) {
			opts := activity.ListActivityOptions{
				PhotoID: in.PhotoID,
				BatchID: in.BatchID,
				Limit:   in.Limit,
			}
			if in.Type != "" {
				t := activity.ActivityType(in.Type)
				opts.ActivityType = &t
			}
			entries, err := svc.Activity.GetRecentActivity(ctx, opts)
			if err != nil {
				return nil, err
			}
			if entries == nil {
				entries = []activity.ActivityEntry{}
			}
			return RecentActivityResponse{Entries: entries}, nil
		})
}

func runAlignment(ctx context.Context, req *sdkmcp.CallToolRequest, svc AlignmentService, in RunAlignmentParams) (*sdkmcp.CallToolResult, any, error) {
	ids := in.IDs
	if len(ids) == 0 {
		pending, err := svc.Pending(ctx)
		if err != nil {
			if apiErr := MapError(err); apiErr != nil {
				recordErrorCode(ctx, apiErr.Code)
				return nil, nil, apiErr
			}
			recordErrorCode(ctx, "INTERNAL")
			return nil, nil, err
		}
		ids = pending
	}

	var token any
	if req != nil && req.Params != nil {
		token = req.Params.GetProgressToken()
	}

	resp := RunAlignmentResponse{Events: []alignment.Progress{}}
	for p, err := range svc.Run(ctx, ids) {
		if err != nil {
			resp.Error = MapError(err)
			if resp.Error == nil {
				resp.Error = &APIError{Code: "ALIGNMENT_FAILED", Message: err.Error()}
			}
			recordErrorCode(ctx, resp.Error.Code)
			return &sdkmcp.CallToolResult{IsError: true}, resp, nil
		}
		resp.Events = append(resp.Events, p)
		if p.Status == alignment.StatusOK {
			resp.Aligned++
		} else {
			resp.Failed++
		}
		if token != nil && req.Session != nil {
			notifyProgress(ctx, req.Session, token, p)
		}
	}
	return nil, resp, nil
}

func notifyProgress(ctx context.Context, session *sdkmcp.ServerSession, token any, p alignment.Progress) {
	msg, _ := json.Marshal(p)
	_ = session.NotifyProgress(ctx, &sdkmcp.ProgressNotificationParams{
		ProgressToken: token,
		Progress:      float64(p.Index),
		Total:         float64(p.Total),
		Message:       string(msg),
	})
}

func videoOptions(in BuildVideoParams) (video.Options, error) {
	opts := video.Options{
		FrameDuration: time.Duration(math.Round(in.FrameDuration * float64(time.Second))),
		ShowDates:     in.ShowDates,
	}
	if in.FrameDuration < 0 || math.IsNaN(in.FrameDuration) {
		return opts, video.ErrInvalidFrameDuration
	}
	if in.Birthday != "" {
		b, err := time.Parse(time.DateOnly, in.Birthday)
		if err != nil {
			return opts, &APIError{Code: "INVALID_INPUT", Message: fmt.Sprintf("birthday %q is not YYYY-MM-DD", in.Birthday)}
		}
		opts.Birthday = &b
	}
	return opts, nil
}

package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `facelapse turns a pile of portrait photos of one person into an aligned face-lapse video.

Workflow:
1) submit_batch with local file paths. Each file gets a numeric display name (1.jpg, 2.png, ...). Exact duplicates are reported and skipped. HEIC files are rejected; convert them to JPEG first.
2) run_alignment with no ids aligns every photo that was never aligned. Pass ids to realign. Send a progress token to get one notification per photo. If the detector fails mid-run the result is an error that still lists the photos already aligned.
3) list_photos shows the timeline. Order is manual position first, then display number, then capture date.
4) Fix the order with set_manual_order or reorder_photos. interpolate_dates fills in missing capture dates.
5) set_inclusion excludes bad frames. prune_no_face deletes photos without a face.
6) build_video writes an mp4 of the included frames.

Docs:
- facelapse://docs/ordering (timeline rules and date interpolation)
- facelapse://docs/alignment (canvas geometry and failure reasons)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "facelapse://docs/ordering",
		Name:        "docs_ordering",
		Title:       "Timeline ordering",
		Description: "How photos are ordered and how missing dates are estimated.",
		Content: `# Timeline ordering

Photos are sorted by, in turn:

1. Manual position, ascending. Photos without one come after all pinned photos.
2. Display name. Numeric names sort by value (` + "`2.jpg`" + ` before ` + "`10.jpg`" + `), before any non-numeric name.
3. Capture date. Undated photos come last.
4. Creation time, then id.

Display numbers are assigned at ingestion in capture-date order, then by the first number in the original file name. Numbers are never reused, even after a delete.

## Date interpolation

` + "`interpolate_dates`" + ` estimates the capture date of undated photos from their position:

- Between two dated neighbours, dates are spread evenly.
- Before the first or after the last dated photo, the average spacing of dated photos is extended outwards.
- With no dated photo at all, each photo takes its ingestion time.

Only undated photos are written.
`,
	},
	{
		URI:         "facelapse://docs/alignment",
		Name:        "docs_alignment",
		Title:       "Face alignment",
		Description: "Output canvas geometry and the reasons an alignment can fail.",
		Content: `# Face alignment

Every aligned frame is a 600x800 JPEG. The eyes are levelled, scaled to 120 px apart, and centred horizontally on a line 38% down the frame. Canvas settings can be changed in the ` + "`alignment`" + ` config section.

Detection runs on the full image first. When it finds no face on a photo larger than 2048 px, it is retried once on a downscaled copy with a lower confidence threshold.

## Event statuses

- ` + "`ok`" + `: frame written; the photo is included in videos.
- ` + "`no_face`" + `: no face found; the photo is excluded.
- ` + "`unreadable`" + `: the original could not be decoded.
- ` + "`degenerate_geometry`" + `: the eyes were too close together to align.
- ` + "`not_found`" + `: no photo with that id.
- ` + "`original_missing`" + `: the record exists but its file is gone.

A failed realign removes the previous aligned frame.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}

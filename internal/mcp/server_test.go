package mcp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/facelapse/internal/landmark"
	"github.com/rpggio/facelapse/internal/mcp"
	"github.com/rpggio/facelapse/internal/testenv"
)

func connect(t *testing.T, env *testenv.Env) *sdkmcp.ClientSession {
	t.Helper()
	return connectWith(t, env, nil)
}

func connectWith(t *testing.T, env *testenv.Env, opts *sdkmcp.ClientOptions) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Ingest:    env.Ingest,
			Alignment: env.Alignment,
			Timeline:  env.Timeline,
			Photos:    env.PhotoService,
			Video:     env.Video,
			Activity:  env.Activity,
		},
		Version: "test",
	})

	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "test"}, opts)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func call(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) (*sdkmcp.CallToolResult, string) {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return res, text.Text
}

func writeImage(t *testing.T, dir, name string, shade uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 40, 40))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestTools_Listed(t *testing.T) {
	session := connect(t, testenv.New(t))

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{
		"submit_batch", "run_alignment", "list_photos", "set_manual_order",
		"reorder_photos", "interpolate_dates", "set_inclusion", "delete_photo",
		"prune_no_face", "build_video", "recent_activity",
	}, names)
}

func TestTools_IngestListAndOrder(t *testing.T) {
	env := testenv.New(t)
	session := connect(t, env)
	dir := t.TempDir()

	a := writeImage(t, dir, "scan_1.png", 10)
	b := writeImage(t, dir, "scan_2.png", 20)
	dup := writeImage(t, dir, "copy.png", 10)

	res, text := call(t, session, "submit_batch", map[string]any{"paths": []string{a, b, dup}})
	require.False(t, res.IsError, text)
	var batch struct {
		Accepted   int `json:"accepted"`
		Duplicates int `json:"duplicates"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &batch))
	require.Equal(t, 2, batch.Accepted)
	require.Equal(t, 1, batch.Duplicates)

	_, text = call(t, session, "list_photos", nil)
	var listing mcp.ListPhotosResponse
	require.NoError(t, json.Unmarshal([]byte(text), &listing))
	require.Len(t, listing.Photos, 2)
	require.Equal(t, "1.png", listing.Photos[0].DisplayName)
	require.Equal(t, "2.png", listing.Photos[1].DisplayName)

	second := listing.Photos[1].ID
	res, text = call(t, session, "set_manual_order", map[string]any{"id": second, "order": 0})
	require.False(t, res.IsError, text)

	_, text = call(t, session, "list_photos", nil)
	require.NoError(t, json.Unmarshal([]byte(text), &listing))
	require.Equal(t, second, listing.Photos[0].ID)
	require.Equal(t, 1, listing.Photos[0].Position)
}

func TestTools_ReorderPhotos(t *testing.T) {
	env := testenv.New(t)
	session := connect(t, env)
	dir := t.TempDir()

	a := writeImage(t, dir, "scan_1.png", 10)
	b := writeImage(t, dir, "scan_2.png", 20)
	_, text := call(t, session, "submit_batch", map[string]any{"paths": []string{a, b}})
	require.Contains(t, text, "accepted")

	var listing mcp.ListPhotosResponse
	_, text = call(t, session, "list_photos", nil)
	require.NoError(t, json.Unmarshal([]byte(text), &listing))
	first, second := listing.Photos[0].ID, listing.Photos[1].ID

	res, text := call(t, session, "reorder_photos", map[string]any{"updates": []map[string]any{
		{"id": second, "order": 0},
		{"id": first, "order": 1},
		{"id": 999, "order": 2},
	}})
	require.False(t, res.IsError, text)
	var count mcp.CountResponse
	require.NoError(t, json.Unmarshal([]byte(text), &count))
	require.Equal(t, 2, count.Updated)

	_, text = call(t, session, "list_photos", nil)
	require.NoError(t, json.Unmarshal([]byte(text), &listing))
	require.Equal(t, []int64{second, first}, []int64{listing.Photos[0].ID, listing.Photos[1].ID})

	res, text = call(t, session, "reorder_photos", map[string]any{"updates": []map[string]any{
		{"id": second},
		{"id": first},
	}})
	require.False(t, res.IsError, text)

	_, text = call(t, session, "list_photos", nil)
	require.NoError(t, json.Unmarshal([]byte(text), &listing))
	require.Equal(t, []int64{first, second}, []int64{listing.Photos[0].ID, listing.Photos[1].ID})
	require.Nil(t, listing.Photos[0].ManualOrder)
}

func TestTools_RunAlignmentNotifiesProgress(t *testing.T) {
	env := testenv.New(t)
	var mu sync.Mutex
	var notes []*sdkmcp.ProgressNotificationParams
	session := connectWith(t, env, &sdkmcp.ClientOptions{
		ProgressNotificationHandler: func(_ context.Context, req *sdkmcp.ProgressNotificationClientRequest) {
			mu.Lock()
			defer mu.Unlock()
			notes = append(notes, req.Params)
		},
	})
	dir := t.TempDir()

	a := writeImage(t, dir, "scan_1.png", 10)
	b := writeImage(t, dir, "scan_2.png", 20)
	_, text := call(t, session, "submit_batch", map[string]any{"paths": []string{a, b}})
	require.Contains(t, text, "accepted")

	params := &sdkmcp.CallToolParams{Name: "run_alignment", Arguments: map[string]any{}}
	params.SetProgressToken("align-1")
	res, err := session.CallTool(context.Background(), params)
	require.NoError(t, err)
	require.False(t, res.IsError)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(notes) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, n := range notes {
		require.Equal(t, "align-1", n.ProgressToken)
		require.Equal(t, float64(i+1), n.Progress)
		require.Equal(t, 2.0, n.Total)
		require.Contains(t, n.Message, `"status":"ok"`)
	}
}

func TestTools_RunAlignmentKeepsEventsBeforeFault(t *testing.T) {
	env := testenv.New(t)
	session := connect(t, env)
	dir := t.TempDir()

	a := writeImage(t, dir, "scan_1.png", 10)
	b := writeImage(t, dir, "scan_2.png", 20)
	_, text := call(t, session, "submit_batch", map[string]any{"paths": []string{a, b}})
	require.Contains(t, text, "accepted")

	env.Detector.FailAfter(1, landmark.ErrServiceUnavailable)
	res, text := call(t, session, "run_alignment", nil)
	require.True(t, res.IsError)

	var run mcp.RunAlignmentResponse
	require.NoError(t, json.Unmarshal([]byte(text), &run))
	require.Len(t, run.Events, 1)
	require.Equal(t, 1, run.Aligned)
	require.NotNil(t, run.Error)
	require.Equal(t, "DETECTOR_UNAVAILABLE", run.Error.Code)

	var listing mcp.ListPhotosResponse
	_, text = call(t, session, "list_photos", nil)
	require.NoError(t, json.Unmarshal([]byte(text), &listing))
	require.True(t, listing.Photos[0].FaceDetected)
	require.False(t, listing.Photos[1].FaceDetected)
}

func TestTools_AlignmentAndVideo(t *testing.T) {
	env := testenv.New(t)
	session := connect(t, env)
	dir := t.TempDir()

	path := writeImage(t, dir, "face.png", 128)
	_, text := call(t, session, "submit_batch", map[string]any{"paths": []string{path}})
	require.Contains(t, text, "accepted")

	res, text := call(t, session, "run_alignment", nil)
	require.False(t, res.IsError, text)
	var run mcp.RunAlignmentResponse
	require.NoError(t, json.Unmarshal([]byte(text), &run))
	require.Equal(t, 1, run.Aligned)
	require.Equal(t, 0, run.Failed)

	res, text = call(t, session, "build_video", map[string]any{"frame_duration": 0.5})
	require.False(t, res.IsError, text)
	require.Contains(t, text, "timelapse_0.50s.mp4")
	require.Len(t, env.Encoder.Frames, 1)

	_, text = call(t, session, "recent_activity", map[string]any{"type": "video_built"})
	var activity mcp.RecentActivityResponse
	require.NoError(t, json.Unmarshal([]byte(text), &activity))
	require.Len(t, activity.Entries, 1)
}

func TestTools_ErrorsAreMapped(t *testing.T) {
	session := connect(t, testenv.New(t))

	res, text := call(t, session, "delete_photo", map[string]any{"id": 42})
	require.True(t, res.IsError)
	require.Contains(t, text, "PHOTO_NOT_FOUND")

	res, text = call(t, session, "build_video", nil)
	require.True(t, res.IsError)
	require.Contains(t, text, "NO_FRAMES")

	res, text = call(t, session, "build_video", map[string]any{"frame_duration": 9})
	require.True(t, res.IsError)
	require.Contains(t, text, "INVALID_FRAME_DURATION")

	res, text = call(t, session, "submit_batch", map[string]any{"paths": []string{}})
	require.True(t, res.IsError)
	require.Contains(t, text, "EMPTY_BATCH")
}

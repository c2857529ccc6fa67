package landmark

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func TestHTTPDetector_FaceFound(t *testing.T) {
	var gotConfidence string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/landmarks", r.URL.Path)
		require.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		gotConfidence = r.URL.Query().Get("min_confidence")

		_, err := jpeg.Decode(r.Body)
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(DetectResponse{
			FaceFound:  true,
			Confidence: 0.9,
			Landmarks:  [][2]float64{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL+"/", time.Second)
	set, err := d.Detect(context.Background(), testImage(), 0.3)
	require.NoError(t, err)
	require.Equal(t, "0.30", gotConfidence)
	require.Equal(t, Set{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}}, set)
}

func TestHTTPDetector_NoFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(DetectResponse{FaceFound: false})
	}))
	defer srv.Close()

	set, err := NewHTTPDetector(srv.URL, time.Second).Detect(context.Background(), testImage(), 0.2)
	require.NoError(t, err)
	require.Nil(t, set)
}

func TestHTTPDetector_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPDetector(srv.URL, time.Second).Detect(context.Background(), testImage(), 0.3)
	require.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestHTTPDetector_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Model: "face_mesh"})
	}))
	defer srv.Close()

	health, err := NewHTTPDetector(srv.URL, time.Second).Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
}

func TestSet_Mean(t *testing.T) {
	set := Set{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

	p, ok := set.Mean([]int{0, 1, 2, 3})
	require.True(t, ok)
	require.InDelta(t, 0.5, p.X, 1e-9)
	require.InDelta(t, 0.5, p.Y, 1e-9)

	_, ok = set.Mean([]int{0, 4})
	require.False(t, ok)

	_, ok = set.Mean(nil)
	require.False(t, ok)
}

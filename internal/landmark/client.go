package landmark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrServiceUnavailable indicates the detection service could not be reached
// or answered with a server error.
var ErrServiceUnavailable = errors.New("landmark service unavailable")

// HTTPDetector talks to a face landmark service over HTTP. The service
// receives a JPEG body and answers with at most one face's landmarks.
type HTTPDetector struct {
	baseURL    string
	httpClient *http.Client
	quality    int
}

// DetectResponse is the service's answer for one image.
type DetectResponse struct {
	FaceFound  bool         `json:"face_found"`
	Confidence float64      `json:"confidence"`
	Landmarks  [][2]float64 `json:"landmarks"`
	Error      string       `json:"error,omitempty"`
}

// HealthResponse is returned by the service health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// NewHTTPDetector creates a client for the service at baseURL.
func NewHTTPDetector(baseURL string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPDetector{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		quality: 92,
	}
}

// Detect sends img to the service and returns the landmark set of the face it
// found. A nil set with a nil error means no face was detected.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image, minConfidence float64) (Set, error) {
	var body bytes.Buffer
	if err := jpeg.Encode(&body, img, &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode detection image: %w", err)
	}

	q := url.Values{}
	q.Set("min_confidence", strconv.FormatFloat(minConfidence, 'f', 2, 64))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/landmarks?"+q.Encode(), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d: %s", ErrServiceUnavailable, resp.StatusCode, string(payload))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("landmark service returned status %d: %s", resp.StatusCode, string(payload))
	}

	var result DetectResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("landmark service error: %s", result.Error)
	}
	if !result.FaceFound || len(result.Landmarks) == 0 {
		return nil, nil
	}

	set := make(Set, len(result.Landmarks))
	for i, p := range result.Landmarks {
		set[i] = Point{X: p[0], Y: p[1]}
	}
	return set, nil
}

// Health checks that the service is up.
func (d *HTTPDetector) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

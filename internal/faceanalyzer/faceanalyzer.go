// Package faceanalyzer implements the FaceAnalyzer capability seam: given
// raw image bytes, detect faces and compute their embeddings. The HTTP
// client here is grounded on the corpus's embedding-server client
// (internal/fingerprint's EmbeddingClient), generalized from a CLIP image
// endpoint to the face-detection-plus-embedding endpoint that capability
// needs.
package faceanalyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// Detection is one detected face: its bounding box in the input image's
// pixel coordinate space, its embedding, and the detector's confidence.
type Detection struct {
	BBoxX      float64
	BBoxY      float64
	BBoxWidth  float64
	BBoxHeight float64
	Embedding  []float32
	Confidence float64
}

// FaceAnalyzer is the capability the Processor depends on. Implementations
// are expected to be thread-affine: the worker pool constructs one
// instance per worker goroutine via a Factory rather than sharing a
// single instance, so model state (if any) never contends across workers.
type FaceAnalyzer interface {
	DetectAndEmbed(ctx context.Context, imageData []byte) ([]Detection, error)
}

// Factory constructs one FaceAnalyzer. Supplied once by the Supervisor and
// called once per worker at startup.
type Factory func() (FaceAnalyzer, error)

const defaultBaseURL = "http://localhost:8000"

// HTTPAnalyzer posts images to an external face-embedding server over
// multipart/form-data and parses its JSON detection response.
type HTTPAnalyzer struct {
	parsedURL *url.URL
	client    *http.Client
}

// NewHTTPAnalyzer returns a FaceAnalyzer backed by an HTTP face-embedding
// server. connectTimeout/readTimeout bound the underlying client per spec's
// configured remote transport timeouts.
func NewHTTPAnalyzer(baseURL string, connectTimeout, readTimeout time.Duration) (*HTTPAnalyzer, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid face analyzer URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid face analyzer URL scheme %q: must be http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("invalid face analyzer URL: missing host")
	}
	return &HTTPAnalyzer{
		parsedURL: parsed,
		client: &http.Client{
			Timeout: connectTimeout + readTimeout,
		},
	}, nil
}

type faceDetection struct {
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
}

// DetectAndEmbed posts imageData to the /embed/face endpoint and returns
// one Detection per face found. A zero-length result with nil error means
// the image decoded fine but contained no faces.
func (a *HTTPAnalyzer) DetectAndEmbed(ctx context.Context, imageData []byte) ([]Detection, error) {
	body, err := a.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing face analyzer response: %w", err)
	}

	out := make([]Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 {
			continue
		}
		x1, y1, x2, y2 := f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3]
		out = append(out, Detection{
			BBoxX:      x1,
			BBoxY:      y1,
			BBoxWidth:  x2 - x1,
			BBoxHeight: y2 - y1,
			Embedding:  f.Embedding,
			Confidence: f.DetScore,
		})
	}
	return out, nil
}

func (a *HTTPAnalyzer) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating multipart field: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("writing image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	reqURL := a.parsedURL.JoinPath(endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.client.Do(req) //nolint:gosec // URL validated in NewHTTPAnalyzer (scheme + host check)
	if err != nil {
		return nil, fmt.Errorf("face analyzer request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading face analyzer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face analyzer error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	defaultDescriptorURL   = "http://localhost:8000"
	defaultDescriptorModel = "dlib" // model name for reference only
	maxBackoff             = 10 * time.Second
)

// ErrServiceUnavailable is returned when the descriptor service keeps failing.
var ErrServiceUnavailable = errors.New("descriptor service unavailable")

// statusError carries the HTTP status of a failed request.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.status, e.body)
}

// RemoteExtractor computes face descriptors with an HTTP descriptor service.
type RemoteExtractor struct {
	baseURL    string
	model      string
	client     *http.Client
	retryCount int
	retryDelay time.Duration
}

var _ Extractor = (*RemoteExtractor)(nil)

// RemoteOption configures a RemoteExtractor.
type RemoteOption func(*RemoteExtractor)

// WithRetry sets how many times 5xx and transport failures are retried and
// the base delay, which doubles on each attempt.
func WithRetry(count int, delay time.Duration) RemoteOption {
	return func(r *RemoteExtractor) {
		r.retryCount = count
		r.retryDelay = delay
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteExtractor) { r.client = c }
}

// NewRemoteExtractor creates a client for the descriptor service at baseURL.
func NewRemoteExtractor(baseURL, model string, opts ...RemoteOption) *RemoteExtractor {
	if baseURL == "" {
		baseURL = defaultDescriptorURL
	}
	if model == "" {
		model = defaultDescriptorModel
	}
	r := &RemoteExtractor{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		client:     &http.Client{Timeout: 30 * time.Second},
		retryCount: 2,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// faceDetection represents a single detected face in the service response
type faceDetection struct {
	FaceIndex  int       `json:"face_index"`
	Dim        int       `json:"dim"`
	Descriptor []float32 `json:"embedding"`
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore   float64   `json:"det_score"`
}

// faceResponse represents the response from the face endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Extract sends img as JPEG to /embed/face and returns the faces found.
func (r *RemoteExtractor) Extract(ctx context.Context, img image.Image) ([]Face, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	return r.ExtractBytes(ctx, data)
}

// ExtractBytes is Extract for already encoded image data.
func (r *RemoteExtractor) ExtractBytes(ctx context.Context, imageData []byte) ([]Face, error) {
	body, err := r.postWithRetry(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Descriptor) == 0 {
			return nil, fmt.Errorf("face %d: empty descriptor returned", f.FaceIndex)
		}
		var rect image.Rectangle
		if len(f.BBox) == 4 {
			rect = image.Rect(int(f.BBox[0]), int(f.BBox[1]), int(f.BBox[2]), int(f.BBox[3]))
		}
		faces = append(faces, Face{Rect: rect, Descriptor: f.Descriptor})
	}
	return faces, nil
}

// Model returns the model name being used
func (r *RemoteExtractor) Model() string {
	return r.model
}

func (r *RemoteExtractor) postWithRetry(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retryCount; attempt++ {
		if attempt > 0 {
			backoff := min(r.retryDelay<<(attempt-1), maxBackoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := r.postMultipartImage(ctx, endpoint, imageData)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Only server errors and transport failures are retried.
		var se *statusError
		if errors.As(err, &se) && se.status < http.StatusInternalServerError {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, lastErr)
}

// postMultipartImage posts the image as the "file" form field with a sniffed content type.
func (r *RemoteExtractor) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", http.DetectContentType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: string(body)}
	}
	return body, nil
}

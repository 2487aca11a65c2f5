package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"github.com/kozaktomas/face-attendance/internal/vision/lbph"
)

var testNow = time.Date(2024, 3, 14, 9, 30, 5, 0, time.Local)

// fakeExtractor returns the same faces for every image.
type fakeExtractor struct {
	faces []vision.Face
	err   error
}

func (f *fakeExtractor) Extract(context.Context, image.Image) ([]vision.Face, error) {
	return f.faces, f.err
}

// testEnv is an attendance service over in-memory stores.
type testEnv struct {
	students    *mock.MockStudentStore
	labels      *mock.MockLabelStore
	descriptors *mock.MockDescriptorStore
	ledger      *mock.MockLedger
	extractor   *fakeExtractor
	svc         *attendance.Service
	stats       *StatsHandler
}

func newTestEnv(t *testing.T, strategy string) *testEnv {
	t.Helper()
	env := &testEnv{
		students:    mock.NewMockStudentStore(),
		labels:      mock.NewMockLabelStore(),
		descriptors: mock.NewMockDescriptorStore(),
		ledger:      mock.NewMockLedger(),
		extractor:   &fakeExtractor{},
	}
	dir := t.TempDir()
	svc, err := attendance.New(attendance.Options{
		Students:         env.students,
		Labels:           env.labels,
		Descriptors:      env.descriptors,
		Ledger:           env.ledger,
		Extractor:        env.extractor,
		NewClassifier:    func() vision.Classifier { return lbph.New() },
		Strategy:         strategy,
		ModelPath:        dir + "/trained_model/lbph.gob",
		SamplesRoot:      dir + "/data/raw",
		MaxFrameFailures: 2,
		Now:              func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("attendance.New() error = %v", err)
	}
	env.svc = svc
	env.stats = NewStatsHandler(svc)
	return env
}

// addStudent registers a student with a descriptor directly in the stores.
func (e *testEnv) addStudent(t *testing.T, username, fullName, branch string, descriptor []float32) {
	t.Helper()
	if _, err := e.svc.RegisterDescriptor(username, fullName, branch, descriptor); err != nil {
		t.Fatalf("RegisterDescriptor(%s) error = %v", username, err)
	}
}

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		DataDir: "/tmp/attendance",
		Match: config.MatchConfig{
			Strategy:            facematch.StrategyDescriptor,
			Tolerance:           0.5,
			ClassifierThreshold: 70,
		},
		Session: config.SessionConfig{
			Camera:           "0",
			MaxFrameFailures: 5,
			SampleCount:      20,
		},
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// testPNG encodes a small solid image.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := range 48 {
		for x := range 64 {
			img.Set(x, y, color.RGBA{R: 120, G: 90, B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

// multipartRequest builds a multipart POST with the given fields and optional image.
func multipartRequest(t *testing.T, path string, fields map[string]string, imageData []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("writing field %s: %v", key, err)
		}
	}
	if imageData != nil {
		part, err := mw.CreateFormFile("image", "face.png")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		part.Write(imageData)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

func TestRespondJSON(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusCreated, map[string]any{"name": "101", "count": 2})

	assertStatusCode(t, recorder, http.StatusCreated)
	assertContentType(t, recorder, "application/json")

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["name"] != "101" || result["count"] != float64(2) {
		t.Errorf("unexpected body %v", result)
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusNoContent, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", recorder.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusBadRequest, "username is required")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "username is required")
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid student", fmt.Errorf("%w: name", database.ErrInvalidStudent), http.StatusUnprocessableEntity},
		{"no face", database.ErrNoFaceDetected, http.StatusUnprocessableEntity},
		{"multiple faces", database.ErrMultipleFacesDetected, http.StatusUnprocessableEntity},
		{"no training data", database.ErrNoTrainingData, http.StatusUnprocessableEntity},
		{"storage missing", fmt.Errorf("loading: %w", database.ErrStorageMissing), http.StatusNotFound},
		{"device", database.ErrDeviceUnavailable, http.StatusServiceUnavailable},
		{"descriptor service", vision.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"backend not compiled", vision.ErrUnavailable, http.StatusServiceUnavailable},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusForError(tc.err); got != tc.expected {
				t.Errorf("statusForError(%v) = %d, want %d", tc.err, got, tc.expected)
			}
		})
	}
}

func TestRespondServiceError_HidesInternalErrors(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondServiceError(recorder, "reading stats", errors.New("open /secret/path: permission denied"))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "reading stats failed")
}

func TestRespondServiceError_ExposesDomainErrors(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondServiceError(recorder, "registration", database.ErrNoFaceDetected)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertJSONError(t, recorder, "no face detected")
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("asha\r\nforged line"); got != "ashaforged line" {
		t.Errorf("sanitizeForLog() = %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	for _, method := range []string{"GET", "HEAD", "POST"} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/v1/health", nil)
			recorder := httptest.NewRecorder()

			HealthCheck(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			var result map[string]string
			parseJSONResponse(t, recorder, &result)
			if result["status"] != "ok" {
				t.Errorf("expected status 'ok', got '%s'", result["status"])
			}
		})
	}
}

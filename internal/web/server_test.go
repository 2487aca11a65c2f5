package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

func testServer(t *testing.T, password string) *Server {
	t.Helper()
	svc, err := attendance.New(attendance.Options{
		Students:    mock.NewMockStudentStore(),
		Labels:      mock.NewMockLabelStore(),
		Descriptors: mock.NewMockDescriptorStore(),
		Ledger:      mock.NewMockLedger(),
		Strategy:    facematch.StrategyDescriptor,
		ModelPath:   t.TempDir() + "/lbph.gob",
		Now:         func() time.Time { return time.Date(2024, 3, 14, 9, 0, 0, 0, time.Local) },
	})
	if err != nil {
		t.Fatalf("attendance.New() error = %v", err)
	}
	cfg := &config.Config{
		Match: config.MatchConfig{Strategy: facematch.StrategyDescriptor},
		Web:   config.WebConfig{Host: "127.0.0.1", Port: 0, Password: password, SessionSecret: "test"},
	}
	return NewServer(cfg, svc)
}

func serve(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestServer_Routes(t *testing.T) {
	s := testServer(t, "")

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{"GET", "/api/v1/health", "", http.StatusOK},
		{"GET", "/api/v1/auth/status", "", http.StatusOK},
		{"GET", "/api/v1/students", "", http.StatusOK},
		{"GET", "/api/v1/students/101", "", http.StatusNotFound},
		{"GET", "/api/v1/attendance", "", http.StatusOK},
		{"GET", "/api/v1/attendance?date=bad", "", http.StatusBadRequest},
		{"GET", "/api/v1/attendance/export", "", http.StatusOK},
		{"POST", "/api/v1/attendance/mark", `{"username":"101"}`, http.StatusUnprocessableEntity},
		{"POST", "/api/v1/train", "", http.StatusNotFound},
		{"GET", "/api/v1/sessions", "", http.StatusOK},
		{"GET", "/api/v1/sessions/unknown", "", http.StatusNotFound},
		{"GET", "/api/v1/sessions/unknown/events", "", http.StatusNotFound},
		{"DELETE", "/api/v1/sessions/unknown", "", http.StatusNotFound},
		{"GET", "/api/v1/config", "", http.StatusOK},
		{"GET", "/api/v1/stats", "", http.StatusOK},
		{"POST", "/api/v1/clear", "", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := serve(s, tc.method, tc.path, tc.body, nil)
			if recorder.Code != tc.want {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.want, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServer_PasswordProtectsAPI(t *testing.T) {
	s := testServer(t, "hunter2")

	if code := serve(s, "GET", "/api/v1/health", "", nil).Code; code != http.StatusOK {
		t.Errorf("health should stay public, got %d", code)
	}
	if code := serve(s, "GET", "/api/v1/stats", "", nil).Code; code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a session, got %d", code)
	}

	login := serve(s, "POST", "/api/v1/auth/login", `{"password":"hunter2"}`, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", login.Code, login.Body.String())
	}
	cookies := login.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	req.AddCookie(cookies[0])
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200 with the session cookie, got %d", recorder.Code)
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	recorder := serve(testServer(t, ""), "GET", "/api/v1/health", "", nil)

	if got := recorder.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := recorder.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
}

func TestServer_ServesDashboard(t *testing.T) {
	s := testServer(t, "")

	for _, path := range []string{"/", "/students/101"} {
		recorder := serve(s, "GET", path, "", nil)
		if recorder.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, recorder.Code)
		}
		if ct := recorder.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("GET %s: unexpected content type %q", path, ct)
		}
		if !strings.Contains(recorder.Body.String(), "Face Attendance") {
			t.Errorf("GET %s: expected the dashboard page", path)
		}
	}

	recorder := serve(s, "GET", "/app.js", "", nil)
	if ct := recorder.Header().Get("Content-Type"); ct != "application/javascript; charset=utf-8" {
		t.Errorf("unexpected content type for app.js %q", ct)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"/index.html": "text/html; charset=utf-8",
		"/app.css":    "text/css; charset=utf-8",
		"/logo.svg":   "image/svg+xml",
		"/blob":       "application/octet-stream",
		"/data.bin":   "application/octet-stream",
	}
	for path, want := range tests {
		if got := contentTypeFor(path); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", path, got, want)
		}
	}
}

package handlers

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// blockingSource yields no frames until its context is cancelled.
type blockingSource struct{}

func (blockingSource) Read(ctx context.Context) (image.Image, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSource) Close() error { return nil }

func frames(n int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = image.NewRGBA(image.Rect(0, 0, 64, 48))
	}
	return out
}

func startSession(t *testing.T, handler *SessionsHandler, body string) (*httptest.ResponseRecorder, SessionInfo) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/sessions", strings.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)
	var info SessionInfo
	if recorder.Code == http.StatusAccepted {
		parseJSONResponse(t, recorder, &info)
	}
	return recorder, info
}

func waitForStatus(t *testing.T, jobs *JobManager, id string, want JobStatus) *SessionJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := jobs.GetJob(id)
		if job != nil && job.GetStatus() == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s did not reach status %s", id, want)
	return nil
}

func TestSessionsHandler_RunsToCompletion(t *testing.T) {
	env := newTestEnv(t, "descriptor")
	env.addStudent(t, "101", "Asha", "CS", []float32{0.1, 0.2, 0.3})
	env.extractor.faces = []vision.Face{{Rect: image.Rect(0, 0, 20, 20), Descriptor: []float32{0.1, 0.2, 0.3}}}

	var opened string
	jobs := NewJobManager()
	handler := NewSessionsHandler(env.svc, jobs, env.stats, "0", func(spec string) (camera.Source, error) {
		opened = spec
		return camera.NewImageSource(frames(3)...), nil
	})

	recorder, info := startSession(t, handler, `{"camera":"./frames"}`)
	assertStatusCode(t, recorder, http.StatusAccepted)
	if info.ID == "" || info.Strategy != "descriptor" || info.Camera != "./frames" {
		t.Fatalf("unexpected session info %+v", info)
	}

	job := waitForStatus(t, jobs, info.ID, JobStatusCompleted)
	snap := job.Snapshot()
	if opened != "./frames" {
		t.Errorf("expected camera ./frames to be opened, got %q", opened)
	}
	if snap.Summary.Frames != 3 || snap.Summary.Marked != 1 || snap.Summary.Skipped != 2 {
		t.Errorf("unexpected summary %+v", snap.Summary)
	}
	if snap.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if rows, _ := env.ledger.Rows(); len(rows) != 1 || rows[0].Name != "101" {
		t.Errorf("expected one row for 101, got %+v", rows)
	}
}

func TestSessionsHandler_DefaultCamera(t *testing.T) {
	env := newTestEnv(t, "descriptor")
	opened := make(chan string, 1)
	jobs := NewJobManager()
	handler := NewSessionsHandler(env.svc, jobs, env.stats, "2", func(spec string) (camera.Source, error) {
		opened <- spec
		return camera.NewImageSource(), nil
	})

	_, info := startSession(t, handler, "")
	waitForStatus(t, jobs, info.ID, JobStatusCompleted)

	if spec := <-opened; spec != "2" {
		t.Errorf("expected default camera 2, got %q", spec)
	}
}

func TestSessionsHandler_OpenFailure(t *testing.T) {
	env := newTestEnv(t, "descriptor")
	jobs := NewJobManager()
	handler := NewSessionsHandler(env.svc, jobs, env.stats, "0", func(string) (camera.Source, error) {
		return nil, errors.New("no such device")
	})

	_, info := startSession(t, handler, "")
	job := waitForStatus(t, jobs, info.ID, JobStatusFailed)

	if snap := job.Snapshot(); !strings.Contains(snap.Error, "camera device unavailable") {
		t.Errorf("expected device error, got %q", snap.Error)
	}
}

func TestSessionsHandler_ConflictAndCancel(t *testing.T) {
	env := newTestEnv(t, "descriptor")
	jobs := NewJobManager()
	handler := NewSessionsHandler(env.svc, jobs, env.stats, "0", func(string) (camera.Source, error) {
		return blockingSource{}, nil
	})

	recorder, info := startSession(t, handler, "")
	assertStatusCode(t, recorder, http.StatusAccepted)

	recorder, _ = startSession(t, handler, "")
	assertStatusCode(t, recorder, http.StatusConflict)
	assertJSONError(t, recorder, "a recognition session is already running")

	cancelReq := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/sessions/"+info.ID, nil), map[string]string{"jobId": info.ID})
	recorder = httptest.NewRecorder()
	handler.Cancel(recorder, cancelReq)
	assertStatusCode(t, recorder, http.StatusOK)

	job := waitForStatus(t, jobs, info.ID, JobStatusCancelled)
	deadline := time.Now().Add(5 * time.Second)
	for job.Snapshot().CompletedAt == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if job.Snapshot().CompletedAt == nil {
		t.Fatal("expected the cancelled session to finish")
	}

	recorder = httptest.NewRecorder()
	handler.Cancel(recorder, cancelReq)
	assertStatusCode(t, recorder, http.StatusConflict)

	recorder, _ = startSession(t, handler, "")
	assertStatusCode(t, recorder, http.StatusAccepted)
	jobs.CancelAll()
}

func TestSessionsHandler_StartErrors(t *testing.T) {
	t.Run("invalid body", func(t *testing.T) {
		env := newTestEnv(t, "descriptor")
		handler := NewSessionsHandler(env.svc, NewJobManager(), env.stats, "0", nil)
		recorder, _ := startSession(t, handler, "{")
		assertStatusCode(t, recorder, http.StatusBadRequest)
	})

	t.Run("untrained classifier", func(t *testing.T) {
		env := newTestEnv(t, "classifier")
		jobs := NewJobManager()
		handler := NewSessionsHandler(env.svc, jobs, env.stats, "0", nil)
		recorder, _ := startSession(t, handler, "")
		assertStatusCode(t, recorder, http.StatusNotFound)
		if len(jobs.ListJobs()) != 0 {
			t.Error("expected no session to be created")
		}
	})
}

func TestSessionsHandler_StatusAndList(t *testing.T) {
	env := newTestEnv(t, "descriptor")
	jobs := NewJobManager()
	handler := NewSessionsHandler(env.svc, jobs, env.stats, "0", func(string) (camera.Source, error) {
		return camera.NewImageSource(frames(1)...), nil
	})
	_, info := startSession(t, handler, "")
	waitForStatus(t, jobs, info.ID, JobStatusCompleted)

	recorder := httptest.NewRecorder()
	handler.Status(recorder, requestWithChiParams(httptest.NewRequest("GET", "/", nil), map[string]string{"jobId": info.ID}))
	assertStatusCode(t, recorder, http.StatusOK)
	var got SessionInfo
	parseJSONResponse(t, recorder, &got)
	if got.ID != info.ID || got.Status != JobStatusCompleted || got.State.String() != "closed" {
		t.Errorf("unexpected status %+v", got)
	}

	recorder = httptest.NewRecorder()
	handler.Status(recorder, requestWithChiParams(httptest.NewRequest("GET", "/", nil), map[string]string{"jobId": "missing"}))
	assertStatusCode(t, recorder, http.StatusNotFound)

	recorder = httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/v1/sessions", nil))
	var list []SessionInfo
	parseJSONResponse(t, recorder, &list)
	if len(list) != 1 {
		t.Errorf("expected 1 session, got %d", len(list))
	}
}

func TestSessionsHandler_EventsForFinishedSession(t *testing.T) {
	env := newTestEnv(t, "descriptor")
	jobs := NewJobManager()
	handler := NewSessionsHandler(env.svc, jobs, env.stats, "0", func(string) (camera.Source, error) {
		return camera.NewImageSource(), nil
	})
	_, info := startSession(t, handler, "")
	waitForStatus(t, jobs, info.ID, JobStatusCompleted)

	recorder := httptest.NewRecorder()
	handler.Events(recorder, requestWithChiParams(httptest.NewRequest("GET", "/", nil), map[string]string{"jobId": info.ID}))

	assertContentType(t, recorder, "text/event-stream")
	body := recorder.Body.String()
	if !strings.HasPrefix(body, "event: status\ndata: ") || !strings.Contains(body, `"status":"completed"`) {
		t.Errorf("unexpected event stream %q", body)
	}
}

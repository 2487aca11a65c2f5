package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
)

// CameraOpener opens a frame source from a camera spec.
type CameraOpener func(spec string) (camera.Source, error)

// SessionsHandler starts and streams live recognition sessions
type SessionsHandler struct {
	svc           *attendance.Service
	jobs          *JobManager
	stats         *StatsHandler
	defaultCamera string
	open          CameraOpener
}

// NewSessionsHandler creates a new sessions handler. open defaults to camera.Open.
func NewSessionsHandler(svc *attendance.Service, jobs *JobManager, stats *StatsHandler, defaultCamera string, open CameraOpener) *SessionsHandler {
	if open == nil {
		open = camera.Open
	}
	return &SessionsHandler{svc: svc, jobs: jobs, stats: stats, defaultCamera: defaultCamera, open: open}
}

type startSessionRequest struct {
	Camera string `json:"camera"`
}

// Start launches a recognition session in the background
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}
	spec := req.Camera
	if spec == "" {
		spec = h.defaultCamera
	}

	// Fail fast on an untrained classifier instead of reporting it over SSE.
	matcher, err := h.svc.Matcher()
	if err != nil {
		respondServiceError(w, "starting session", err)
		return
	}

	job := h.jobs.CreateJob(uuid.New().String(), spec, matcher.Strategy())
	if job == nil {
		respondError(w, http.StatusConflict, "a recognition session is already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)
	sess := h.svc.NewSession(matcher, func() (camera.Source, error) { return h.open(spec) })
	sess.OnState = func(st attendance.State) {
		job.update(func(info *SessionInfo) { info.State = st })
		job.SendEvent(JobEvent{Type: "state", Message: st.String()})
	}
	sess.OnFrame = func(e attendance.FrameEvent) {
		job.update(func(info *SessionInfo) { info.Summary = sess.Summary() })
		job.SendEvent(JobEvent{Type: "frame", Data: e})
		for _, region := range e.Regions {
			if region.Outcome != nil && region.Result.Known {
				h.stats.InvalidateCache()
				break
			}
		}
	}

	job.update(func(info *SessionInfo) { info.Status = JobStatusRunning })
	go h.run(ctx, cancel, job, sess)

	respondJSON(w, http.StatusAccepted, job.Snapshot())
}

func (h *SessionsHandler) run(ctx context.Context, cancel context.CancelFunc, job *SessionJob, sess *attendance.Session) {
	defer cancel()
	id := job.Snapshot().ID
	log.Printf("Recognition session %s started", id)

	summary, err := sess.Run(ctx)
	switch {
	case err != nil:
		status := job.finish(JobStatusFailed, summary, err.Error())
		log.Printf("Recognition session %s ended: %v", id, err)
		if status == JobStatusFailed {
			msg := err.Error()
			if errors.Is(err, context.Canceled) {
				msg = "session cancelled"
			}
			job.SendEvent(JobEvent{Type: "failed", Message: msg, Data: summary})
		}
	default:
		status := job.finish(JobStatusCompleted, summary, "")
		log.Printf("Recognition session %s %s: %d frames, %d marked", id, status, summary.Frames, summary.Marked)
		if status == JobStatusCompleted {
			job.SendEvent(JobEvent{Type: "completed", Data: summary})
		}
	}
	h.stats.InvalidateCache()
}

// List returns known sessions, newest first
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.ListJobs()
	out := make([]SessionInfo, len(jobs))
	for i, job := range jobs {
		out[i] = job.Snapshot()
	}
	respondJSON(w, http.StatusOK, out)
}

// Status returns one session
func (h *SessionsHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams session events via SSE
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if job := h.jobs.GetJob(id); job != nil {
				return job
			}
			return nil
		},
		func(job SSEJob) any { return job.(*SessionJob).Snapshot() },
	)
}

// Cancel stops a running session
func (h *SessionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if isJobTerminal(job.GetStatus()) {
		respondError(w, http.StatusConflict, "session already finished")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, job.Snapshot())
}

package handlers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// SessionInfo is the serializable view of a recognition session.
type SessionInfo struct {
	ID          string             `json:"id"`
	Camera      string             `json:"camera"`
	Strategy    string             `json:"strategy"`
	Status      JobStatus          `json:"status"`
	State       attendance.State   `json:"state"`
	Summary     attendance.Summary `json:"summary"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// SessionJob is a live recognition session running in the background.
type SessionJob struct {
	EventBroadcaster

	info SessionInfo
}

// GetStatus returns the current job status (implements SSEJob).
func (j *SessionJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.info.Status
}

// Snapshot returns a copy safe to serialize while the job runs.
func (j *SessionJob) Snapshot() SessionInfo {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.info
}

func (j *SessionJob) update(fn func(*SessionInfo)) {
	j.mu.Lock()
	fn(&j.info)
	j.mu.Unlock()
}

// finish records the terminal status unless the job was already cancelled.
func (j *SessionJob) finish(status JobStatus, summary attendance.Summary, errMsg string) JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.info.CompletedAt = &now
	j.info.Summary = summary
	if j.info.Status == JobStatusCancelled {
		return j.info.Status
	}
	j.info.Status = status
	j.info.Error = errMsg
	return status
}

func (j *SessionJob) startedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.info.StartedAt
}

// Cancel stops the session.
func (j *SessionJob) Cancel() {
	j.mu.Lock()
	if j.info.Status == JobStatusPending || j.info.Status == JobStatusRunning {
		j.info.Status = JobStatusCancelled
	}
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Session stopped by user"})
}

func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager tracks recognition sessions. At most one session may hold the
// camera at a time.
type JobManager struct {
	jobs map[string]*SessionJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*SessionJob),
	}
}

// CreateJob registers a pending session. It returns nil when another session
// is still active.
func (m *JobManager) CreateJob(id, cameraSpec, strategy string) *SessionJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if !isJobTerminal(job.GetStatus()) {
			return nil
		}
	}
	m.pruneLocked()

	job := &SessionJob{info: SessionInfo{
		ID:        id,
		Camera:    cameraSpec,
		Strategy:  strategy,
		Status:    JobStatusPending,
		State:     attendance.StateIdle,
		StartedAt: time.Now(),
	}}
	m.jobs[id] = job
	return job
}

// pruneLocked drops the oldest finished sessions beyond MaxFinishedSessions.
func (m *JobManager) pruneLocked() {
	var finished []*SessionJob
	for _, job := range m.jobs {
		if isJobTerminal(job.GetStatus()) {
			finished = append(finished, job)
		}
	}
	if len(finished) < constants.MaxFinishedSessions {
		return
	}
	slices.SortFunc(finished, func(a, b *SessionJob) int { return a.startedAt().Compare(b.startedAt()) })
	for _, job := range finished[:len(finished)-constants.MaxFinishedSessions+1] {
		delete(m.jobs, job.info.ID)
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *SessionJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, newest first.
func (m *JobManager) ListJobs() []*SessionJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*SessionJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b *SessionJob) int { return b.startedAt().Compare(a.startedAt()) })
	return jobs
}

// CancelAll stops every active session, used on shutdown.
func (m *JobManager) CancelAll() {
	for _, job := range m.ListJobs() {
		if !isJobTerminal(job.GetStatus()) {
			job.Cancel()
		}
	}
}

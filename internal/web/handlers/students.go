package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// StudentsHandler serves the student directory
type StudentsHandler struct {
	svc *attendance.Service
}

// NewStudentsHandler creates a new students handler
func NewStudentsHandler(svc *attendance.Service) *StudentsHandler {
	return &StudentsHandler{svc: svc}
}

// List returns registered students, filtered by ?q= when given
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.StudentRecords()
	if err != nil {
		respondServiceError(w, "listing students", err)
		return
	}

	query := r.URL.Query().Get("q")
	out := make([]database.StudentRecord, 0, len(records))
	for _, rec := range records {
		if query == "" || facematch.MatchesQuery(query, rec.Username, rec.FullName, rec.Branch) {
			out = append(out, rec)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one student with today's attendance status
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	records, err := h.svc.StudentRecords()
	if err != nil {
		respondServiceError(w, "reading student", err)
		return
	}
	for _, rec := range records {
		if rec.Username != username {
			continue
		}
		rows, err := h.svc.Report("")
		if err != nil {
			respondServiceError(w, "reading attendance", err)
			return
		}
		history := make([]database.AttendanceRow, 0)
		for _, row := range rows {
			if row.Name == username {
				history = append(history, row)
			}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"student":    rec,
			"attendance": history,
		})
		return
	}
	respondError(w, http.StatusNotFound, "student not found")
}

package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler serves the attendance ledger
type AttendanceHandler struct {
	svc   *attendance.Service
	stats *StatsHandler
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(svc *attendance.Service, stats *StatsHandler) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, stats: stats}
}

// dateParam validates ?date=; empty means every date.
func dateParam(r *http.Request) (string, error) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return "", nil
	}
	if _, err := time.Parse(constants.DateLayout, date); err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return date, nil
}

// AttendanceResponse is the ledger listing
type AttendanceResponse struct {
	Date  string                   `json:"date,omitempty"`
	Count int                      `json:"count"`
	Rows  []database.AttendanceRow `json:"rows"`
}

// List returns ledger rows, optionally for one date
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.svc.Report(date)
	if err != nil {
		respondServiceError(w, "reading attendance", err)
		return
	}
	if rows == nil {
		rows = []database.AttendanceRow{}
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{Date: date, Count: len(rows), Rows: rows})
}

// Export downloads the ledger as CSV
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := "attendance.csv"
	if date != "" {
		name = "attendance-" + date + ".csv"
	}
	var buf bytes.Buffer
	if _, err := h.svc.ExportCSV(&buf, date); err != nil {
		respondServiceError(w, "exporting attendance", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type markRequest struct {
	Username string `json:"username"`
}

// MarkResponse is the result of a manual mark
type MarkResponse struct {
	Outcome database.Outcome       `json:"outcome"`
	Row     database.AttendanceRow `json:"row"`
}

// Mark records attendance for a registered student without a camera
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}
	outcome, row, err := h.svc.MarkManual(req.Username)
	if err != nil {
		respondServiceError(w, "marking attendance", err)
		return
	}
	h.stats.InvalidateCache()
	respondJSON(w, http.StatusOK, MarkResponse{Outcome: outcome, Row: row})
}

// Clear removes stored descriptors and resets the ledger
func (h *AttendanceHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(); err != nil {
		respondServiceError(w, "clearing", err)
		return
	}
	h.stats.InvalidateCache()
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

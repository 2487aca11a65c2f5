package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// RecognizeHandler runs a single uploaded frame through the recognition pipeline
type RecognizeHandler struct {
	svc   *attendance.Service
	stats *StatsHandler
}

// NewRecognizeHandler creates a new recognize handler
func NewRecognizeHandler(svc *attendance.Service, stats *StatsHandler) *RecognizeHandler {
	return &RecognizeHandler{svc: svc, stats: stats}
}

// RecognizeResponse lists the regions found in the frame
type RecognizeResponse struct {
	Faces   int                 `json:"faces"`
	Regions []attendance.Region `json:"regions"`
}

// Recognize matches every face in the uploaded image and marks known students
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	img, ok, err := readUploadedImage(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}

	matcher, err := h.svc.Matcher()
	if err != nil {
		respondServiceError(w, "recognition", err)
		return
	}
	regions, err := h.svc.ProcessFrame(r.Context(), img, matcher)
	if err != nil {
		respondServiceError(w, "recognition", err)
		return
	}
	if regions == nil {
		regions = []attendance.Region{}
	}
	h.stats.InvalidateCache()
	respondJSON(w, http.StatusOK, RecognizeResponse{Faces: len(regions), Regions: regions})
}

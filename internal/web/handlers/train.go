package handlers

import (
	"log"
	"net/http"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// TrainHandler retrains the classifier on demand
type TrainHandler struct {
	svc *attendance.Service
	// running serializes training; the model file is rewritten as a whole
	running sync.Mutex
}

// NewTrainHandler creates a new train handler
func NewTrainHandler(svc *attendance.Service) *TrainHandler {
	return &TrainHandler{svc: svc}
}

// Train trains the classifier synchronously and returns the summary
func (h *TrainHandler) Train(w http.ResponseWriter, r *http.Request) {
	if !h.running.TryLock() {
		respondError(w, http.StatusConflict, "training already in progress")
		return
	}
	defer h.running.Unlock()

	result, err := h.svc.Train(nil)
	if err != nil {
		respondServiceError(w, "training", err)
		return
	}
	for _, username := range result.Missing {
		log.Printf("Training: no samples directory for %s, skipped", sanitizeForLog(username))
	}
	log.Printf("Trained classifier on %d samples from %d students", result.Samples, result.Students)
	respondJSON(w, http.StatusOK, result)
}

package handlers

import (
	"encoding/json"
	"errors"
	"image"
	"io"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// RegisterHandler registers students from uploaded photos or descriptors
type RegisterHandler struct {
	svc   *attendance.Service
	stats *StatsHandler
}

// NewRegisterHandler creates a new register handler
func NewRegisterHandler(svc *attendance.Service, stats *StatsHandler) *RegisterHandler {
	return &RegisterHandler{svc: svc, stats: stats}
}

// readUploadedImage decodes the multipart file field name. ok is false when
// the field is absent.
func readUploadedImage(r *http.Request, name string) (img image.Image, ok bool, err error) {
	file, _, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize))
	if err != nil {
		return nil, false, err
	}
	decoded, err := vision.DecodeImage(data)
	if err != nil {
		return nil, true, err
	}
	return decoded, true, nil
}

// Register handles multipart registration with username, full_name, branch
// and either an image file or a descriptor JSON array. With neither, only
// the identity and label are stored.
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	username := r.FormValue("username")
	fullName := r.FormValue("full_name")
	branch := r.FormValue("branch")

	if err := attendance.ValidateStudent(username, fullName, branch); err != nil {
		respondServiceError(w, "registration", err)
		return
	}

	var (
		reg attendance.Registration
		err error
	)
	img, hasImage, imgErr := readUploadedImage(r, "image")
	switch {
	case imgErr != nil:
		respondError(w, http.StatusBadRequest, "invalid image: "+imgErr.Error())
		return
	case hasImage:
		reg, err = h.svc.RegisterImage(r.Context(), username, fullName, branch, img)
	case r.FormValue("descriptor") != "":
		var descriptor []float32
		if jerr := json.Unmarshal([]byte(r.FormValue("descriptor")), &descriptor); jerr != nil {
			respondError(w, http.StatusBadRequest, "descriptor must be a JSON array of numbers")
			return
		}
		reg, err = h.svc.RegisterDescriptor(username, fullName, branch, descriptor)
	default:
		reg, err = h.svc.RegisterStudent(username, fullName, branch)
	}
	if err != nil {
		respondServiceError(w, "registration", err)
		return
	}

	log.Printf("Registered student %s (label %d)", sanitizeForLog(reg.Username), reg.LabelID)
	h.stats.InvalidateCache()
	respondJSON(w, http.StatusCreated, reg)
}

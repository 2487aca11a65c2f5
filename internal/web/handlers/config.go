package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Strategy            string        `json:"strategy"`
	Tolerance           float64       `json:"tolerance"`
	ClassifierThreshold float64       `json:"classifier_threshold"`
	ExcludedPrefixes    []string      `json:"excluded_prefixes"`
	DescriptorIndex     bool          `json:"descriptor_index"`
	Camera              string        `json:"camera"`
	SampleCount         int           `json:"sample_count"`
	MaxFrameFailures    int           `json:"max_frame_failures"`
	Backends            []BackendInfo `json:"backends"`
	MirrorConfigured    bool          `json:"mirror_configured"`
	AuthRequired        bool          `json:"auth_required"`
}

// BackendInfo describes a vision backend and whether it can be used
type BackendInfo struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Selected  bool   `json:"selected"`
	Available bool   `json:"available"`
}

// Get returns the active configuration without secrets
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg := h.config
	backends := []BackendInfo{
		{
			Name:      "remote",
			Kind:      "descriptor",
			Selected:  cfg.Descriptor.Backend == "remote" || cfg.Descriptor.Backend == "",
			Available: cfg.Descriptor.URL != "",
		},
		{
			Name:      "dlib",
			Kind:      "descriptor",
			Selected:  cfg.Descriptor.Backend == "dlib",
			Available: vision.DlibAvailable(),
		},
		{
			Name:      "lbph",
			Kind:      "classifier",
			Selected:  cfg.Match.ClassifierBackend == "lbph" || cfg.Match.ClassifierBackend == "",
			Available: true, // pure Go
		},
		{
			Name:      "opencv",
			Kind:      "classifier",
			Selected:  cfg.Match.ClassifierBackend == "opencv",
			Available: vision.OpenCVAvailable(),
		},
	}

	prefixes := cfg.Match.ExcludedPrefixes
	if prefixes == nil {
		prefixes = []string{}
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		Strategy:            cfg.Match.Strategy,
		Tolerance:           cfg.Match.Tolerance,
		ClassifierThreshold: cfg.Match.ClassifierThreshold,
		ExcludedPrefixes:    prefixes,
		DescriptorIndex:     cfg.Match.UseIndex,
		Camera:              cfg.Session.Camera,
		SampleCount:         cfg.Session.SampleCount,
		MaxFrameFailures:    cfg.Session.MaxFrameFailures,
		Backends:            backends,
		MirrorConfigured:    cfg.Database.URL != "",
		AuthRequired:        cfg.Web.Password != "",
	})
}

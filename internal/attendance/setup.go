package attendance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/filestore"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"github.com/kozaktomas/face-attendance/internal/vision/lbph"
)

// NewFromConfig wires the file stores and vision backends selected by cfg.
// A missing cascade file only disables the classifier path, so the returned
// service still works for descriptor matching and reporting.
func NewFromConfig(cfg *config.Config) (*Service, *filestore.Store, error) {
	policy := facematch.NewPrefixPolicy(cfg.Match.ExcludedPrefixes)
	store := filestore.Open(cfg.DataDir, policy)

	extractor, closer, err := newExtractor(cfg)
	if err != nil {
		return nil, nil, err
	}
	newClassifier, err := classifierFactory(cfg.Match.ClassifierBackend)
	if err != nil {
		return nil, nil, err
	}

	opts := Options{
		Students:            store.Students(),
		Labels:              store.Labels(),
		Descriptors:         store.Descriptors(),
		Ledger:              store.Ledger(),
		Extractor:           extractor,
		NewClassifier:       newClassifier,
		Strategy:            cfg.Match.Strategy,
		Tolerance:           cfg.Match.Tolerance,
		ClassifierThreshold: cfg.Match.ClassifierThreshold,
		ModelPath:           store.ModelPath(),
		SamplesRoot:         store.SamplesRoot(),
		SampleCount:         cfg.Session.SampleCount,
		SampleMinDistance:   cfg.Session.SampleMinDistance,
		MaxFrameFailures:    cfg.Session.MaxFrameFailures,
	}
	if cfg.Match.UseIndex {
		opts.IndexPath = store.IndexPath()
	}

	detector, detErr := vision.LoadPigoDetector(cascadePath(cfg), vision.DetectorParams{
		MinSize:          cfg.Detector.MinSize,
		MaxSize:          cfg.Detector.MaxSize,
		ShiftFactor:      cfg.Detector.ShiftFactor,
		ScaleFactor:      cfg.Detector.ScaleFactor,
		QualityThreshold: cfg.Detector.QualityThreshold,
	})
	if detErr == nil {
		opts.Detector = detector
	}

	svc, err := New(opts)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}
	svc.detectorErr = detErr
	if closer != nil {
		svc.closers = append(svc.closers, closer)
	}
	return svc, store, nil
}

// cascadePath resolves a relative cascade path against the working directory
// first and the data directory second.
func cascadePath(cfg *config.Config) string {
	p := cfg.Detector.Cascade
	if filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return cfg.Path(p)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newExtractor(cfg *config.Config) (vision.Extractor, closerFunc, error) {
	switch cfg.Descriptor.Backend {
	case "", "remote":
		return vision.NewRemoteExtractor(cfg.Descriptor.URL, cfg.Descriptor.Model), nil, nil
	case "dlib":
		if !vision.DlibAvailable() {
			return nil, nil, fmt.Errorf("descriptor backend dlib: %w (build with -tags dlib)", vision.ErrUnavailable)
		}
		ex, err := vision.NewDlibExtractor(cfg.Descriptor.ModelsDir)
		if err != nil {
			return nil, nil, err
		}
		return ex, ex.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown descriptor backend %q", cfg.Descriptor.Backend)
	}
}

func classifierFactory(backend string) (func() vision.Classifier, error) {
	switch backend {
	case "", "lbph":
		return func() vision.Classifier { return lbph.New() }, nil
	case "opencv":
		if !vision.OpenCVAvailable() {
			return nil, fmt.Errorf("classifier backend opencv: %w (build with -tags gocv)", vision.ErrUnavailable)
		}
		return func() vision.Classifier { return vision.NewOpenCVClassifier() }, nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", backend)
	}
}

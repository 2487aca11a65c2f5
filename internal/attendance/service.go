// Package attendance ties the stores, the vision backends and the matchers
// together: registration, training, recognition sessions and reporting. Both
// the CLI and the web dashboard drive the system through a Service.
package attendance

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// Options configures a Service. Stores are required; vision backends may be
// nil when the corresponding strategy is not used.
type Options struct {
	Students    database.StudentWriter
	Labels      database.LabelStore
	Descriptors database.DescriptorStore
	Ledger      database.Ledger

	Extractor     vision.Extractor
	Detector      vision.Detector
	NewClassifier func() vision.Classifier

	Strategy            string
	Tolerance           float64
	ClassifierThreshold float64
	// IndexPath enables the HNSW descriptor index when non-empty.
	IndexPath string

	ModelPath   string
	SamplesRoot string
	SampleCount int
	// SampleMinDistance enables near-duplicate filtering in CollectSamples.
	SampleMinDistance int

	MaxFrameFailures int

	// Now is the clock used for ledger marks; defaults to time.Now.
	Now func() time.Time
}

// Service is the shared application core.
type Service struct {
	opts Options

	// detectorErr explains a missing detector when setup could not load one.
	detectorErr error
	closers     []io.Closer

	// descriptorGen counts descriptor store writes so live sessions can reload.
	descriptorGen atomic.Uint64
}

// New validates options and fills defaults.
func New(opts Options) (*Service, error) {
	if opts.Students == nil || opts.Labels == nil || opts.Descriptors == nil || opts.Ledger == nil {
		return nil, errors.New("attendance: all stores are required")
	}
	if opts.Strategy == "" {
		opts.Strategy = facematch.StrategyDescriptor
	}
	if opts.Strategy != facematch.StrategyDescriptor && opts.Strategy != facematch.StrategyClassifier {
		return nil, fmt.Errorf("attendance: unknown match strategy %q", opts.Strategy)
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = constants.DefaultMatchTolerance
	}
	if opts.ClassifierThreshold <= 0 {
		opts.ClassifierThreshold = constants.DefaultClassifierThreshold
	}
	if opts.SampleCount <= 0 {
		opts.SampleCount = constants.DefaultSampleCount
	}
	if opts.MaxFrameFailures <= 0 {
		opts.MaxFrameFailures = constants.DefaultMaxFrameFailures
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{opts: opts}, nil
}

// Strategy returns the configured match strategy.
func (s *Service) Strategy() string { return s.opts.Strategy }

// Students returns the identity store.
func (s *Service) Students() database.StudentWriter { return s.opts.Students }

// Ledger returns the attendance ledger.
func (s *Service) Ledger() database.Ledger { return s.opts.Ledger }

// Descriptors returns the descriptor store.
func (s *Service) Descriptors() database.DescriptorStore { return s.opts.Descriptors }

// Labels returns the label store.
func (s *Service) Labels() database.LabelStore { return s.opts.Labels }

// MaxFrameFailures returns the consecutive frame failure budget.
func (s *Service) MaxFrameFailures() int { return s.opts.MaxFrameFailures }

// SampleCount returns the default number of samples collected per student.
func (s *Service) SampleCount() int { return s.opts.SampleCount }

// Matcher builds the matcher for the configured strategy. The classifier
// strategy fails with ErrStorageMissing until training has run.
func (s *Service) Matcher() (facematch.Matcher, error) {
	switch s.opts.Strategy {
	case facematch.StrategyClassifier:
		if s.opts.NewClassifier == nil {
			return nil, errors.New("no classifier backend configured")
		}
		return facematch.NewClassifierMatcher(s.opts.NewClassifier(), s.opts.Labels, s.opts.ModelPath, s.opts.ClassifierThreshold)
	default:
		var opts []facematch.DescriptorOption
		if s.opts.IndexPath != "" {
			opts = append(opts, facematch.WithIndex(s.opts.IndexPath))
		}
		return facematch.NewDescriptorMatcher(s.opts.Descriptors, s.opts.Tolerance, opts...)
	}
}

// DisplayName returns the student's full name, falling back to the username.
func (s *Service) DisplayName(username string) string {
	st, ok, err := s.opts.Students.Get(username)
	if err != nil || !ok || st.FullName == "" {
		return username
	}
	return st.FullName
}

func (s *Service) extractor() (vision.Extractor, error) {
	if s.opts.Extractor == nil {
		return nil, errors.New("no descriptor extractor configured")
	}
	return s.opts.Extractor, nil
}

func (s *Service) detector() (vision.Detector, error) {
	if s.opts.Detector == nil {
		if s.detectorErr != nil {
			return nil, fmt.Errorf("no face detector: %w", s.detectorErr)
		}
		return nil, errors.New("no face detector configured (check PIGO_CASCADE)")
	}
	return s.opts.Detector, nil
}

// Close releases native backends opened by NewFromConfig.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

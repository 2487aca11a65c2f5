package attendance

import (
	"context"
	"fmt"
	"image"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// Region is the recognition result for one detected face in a frame.
type Region struct {
	Rect     image.Rectangle   `json:"rect"`
	Label    string            `json:"label"`
	Result   facematch.Result  `json:"result"`
	Outcome  *database.Outcome `json:"outcome,omitempty"`
	FullName string            `json:"full_name,omitempty"`
	Branch   string            `json:"branch,omitempty"`
}

// probes turns a frame into match probes in the form the matcher needs.
func (s *Service) probes(ctx context.Context, img image.Image, m facematch.Matcher) ([]facematch.Probe, error) {
	if m.NeedsDescriptor() {
		ex, err := s.extractor()
		if err != nil {
			return nil, err
		}
		faces, err := ex.Extract(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("extracting descriptors: %w", err)
		}
		probes := make([]facematch.Probe, len(faces))
		for i, f := range faces {
			probes[i] = facematch.Probe{Rect: f.Rect, Descriptor: f.Descriptor}
		}
		return probes, nil
	}

	det, err := s.detector()
	if err != nil {
		return nil, err
	}
	rects, err := det.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}
	probes := make([]facematch.Probe, 0, len(rects))
	for _, r := range rects {
		crop, err := vision.FaceCrop(img, r, constants.TrainingImageSize)
		if err != nil {
			continue
		}
		probes = append(probes, facematch.Probe{Rect: r, Crop: crop})
	}
	return probes, nil
}

// ProcessFrame detects, matches and marks every face in img. Each known
// region is marked exactly once; the ledger's daily dedup keeps repeated
// frames from adding rows.
func (s *Service) ProcessFrame(ctx context.Context, img image.Image, m facematch.Matcher) ([]Region, error) {
	probes, err := s.probes(ctx, img, m)
	if err != nil {
		return nil, err
	}
	return s.matchProbes(ctx, probes, m)
}

func (s *Service) matchProbes(ctx context.Context, probes []facematch.Probe, m facematch.Matcher) ([]Region, error) {
	regions := make([]Region, 0, len(probes))
	for _, p := range probes {
		res, err := m.Match(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("matching face: %w", err)
		}
		region := Region{Rect: p.Rect, Result: res, Label: constants.UnknownLabel}
		if res.Known {
			if err := s.markRegion(&region); err != nil {
				return nil, err
			}
		}
		regions = append(regions, region)
	}
	return regions, nil
}

func (s *Service) markRegion(region *Region) error {
	username := region.Result.Username
	st, ok, err := s.opts.Students.Get(username)
	if err != nil {
		return fmt.Errorf("looking up student %s: %w", username, err)
	}
	// A label or descriptor can outlive its identity record.
	if !ok {
		st.FullName = username
	}
	outcome, _, err := s.opts.Ledger.Mark(username, st.FullName, st.Branch, s.opts.Now())
	if err != nil {
		return fmt.Errorf("marking %s: %w", username, err)
	}
	region.Outcome = &outcome
	region.FullName = st.FullName
	region.Branch = st.Branch
	region.Label = username
	if st.FullName != "" {
		region.Label = st.FullName
	}
	return nil
}

// MarkManual records attendance for a registered username without a camera.
func (s *Service) MarkManual(username string) (database.Outcome, database.AttendanceRow, error) {
	st, ok, err := s.opts.Students.Get(username)
	if err != nil {
		return database.OutcomeUnknown, database.AttendanceRow{}, err
	}
	if !ok {
		return database.OutcomeUnknown, database.AttendanceRow{}, fmt.Errorf("%w: %s is not registered", database.ErrInvalidStudent, username)
	}
	return s.opts.Ledger.Mark(username, st.FullName, st.Branch, s.opts.Now())
}

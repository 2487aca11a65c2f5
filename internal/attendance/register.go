package attendance

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// faceDedupeIoU collapses overlapping detections of the same face before
// counting faces in a registration image.
const faceDedupeIoU = 0.5

// Registration is what a successful registration stored.
type Registration struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Branch   string `json:"branch"`
	LabelID  int    `json:"label_id"`
	// Rect is the detected face, empty for precomputed descriptors.
	Rect image.Rectangle `json:"rect"`
}

// ValidateStudent checks registration input. Usernames are alphanumeric and
// may contain spaces.
func ValidateStudent(username, fullName, branch string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username is required", database.ErrInvalidStudent)
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ' ' {
			return fmt.Errorf("%w: username %q must be alphanumeric", database.ErrInvalidStudent, username)
		}
	}
	if strings.TrimSpace(fullName) == "" {
		return fmt.Errorf("%w: full name is required", database.ErrInvalidStudent)
	}
	if strings.TrimSpace(branch) == "" {
		return fmt.Errorf("%w: branch is required", database.ErrInvalidStudent)
	}
	return nil
}

// singleFace returns the index of the only face among rects, after merging
// overlapping detections.
func singleFace(rects []image.Rectangle) (int, error) {
	kept := facematch.DedupeRects(rects, faceDedupeIoU)
	switch len(kept) {
	case 0:
		return -1, database.ErrNoFaceDetected
	case 1:
		return kept[0], nil
	default:
		return -1, fmt.Errorf("%w: found %d", database.ErrMultipleFacesDetected, len(kept))
	}
}

// RegisterImage registers a student from a photo containing exactly one face.
// Nothing is written unless the photo yields a descriptor.
func (s *Service) RegisterImage(ctx context.Context, username, fullName, branch string, img image.Image) (Registration, error) {
	if err := ValidateStudent(username, fullName, branch); err != nil {
		return Registration{}, err
	}
	ex, err := s.extractor()
	if err != nil {
		return Registration{}, err
	}
	faces, err := ex.Extract(ctx, img)
	if err != nil {
		return Registration{}, fmt.Errorf("extracting descriptors: %w", err)
	}
	rects := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		rects[i] = f.Rect
	}
	idx, err := singleFace(rects)
	if err != nil {
		return Registration{}, err
	}

	reg, err := s.storeDescriptor(username, fullName, branch, faces[idx].Descriptor)
	if err != nil {
		return Registration{}, err
	}
	reg.Rect = faces[idx].Rect
	return reg, nil
}

// RegisterDescriptor registers a student from a precomputed descriptor. The
// descriptor must have the same length as the ones already stored.
func (s *Service) RegisterDescriptor(username, fullName, branch string, descriptor []float32) (Registration, error) {
	if err := ValidateStudent(username, fullName, branch); err != nil {
		return Registration{}, err
	}
	if len(descriptor) == 0 {
		return Registration{}, fmt.Errorf("%w: empty descriptor", database.ErrInvalidStudent)
	}
	existing, err := s.opts.Descriptors.All()
	if err != nil {
		return Registration{}, fmt.Errorf("loading descriptors: %w", err)
	}
	for _, d := range existing {
		if d.Username == username {
			continue
		}
		if len(d.Descriptor) != len(descriptor) {
			return Registration{}, fmt.Errorf("%w: descriptor has %d values, store uses %d",
				database.ErrInvalidStudent, len(descriptor), len(d.Descriptor))
		}
		break
	}
	return s.storeDescriptor(username, fullName, branch, descriptor)
}

func (s *Service) storeDescriptor(username, fullName, branch string, descriptor []float32) (Registration, error) {
	reg, err := s.RegisterStudent(username, fullName, branch)
	if err != nil {
		return Registration{}, err
	}
	if err := s.opts.Descriptors.Put(username, descriptor); err != nil {
		return Registration{}, fmt.Errorf("storing descriptor: %w", err)
	}
	s.descriptorGen.Add(1)
	return reg, nil
}

// RegisterStudent stores identity metadata and assigns a label without any
// face data. The classifier path registers this way and collects samples
// afterwards.
func (s *Service) RegisterStudent(username, fullName, branch string) (Registration, error) {
	if err := ValidateStudent(username, fullName, branch); err != nil {
		return Registration{}, err
	}
	if err := s.opts.Students.Upsert(username, fullName, branch); err != nil {
		return Registration{}, fmt.Errorf("storing student: %w", err)
	}
	id, err := s.opts.Labels.Assign(username)
	if err != nil {
		return Registration{}, fmt.Errorf("assigning label: %w", err)
	}
	return Registration{Username: username, FullName: fullName, Branch: branch, LabelID: id}, nil
}

// SamplesDir is where training crops for username live.
func (s *Service) SamplesDir(username string) string {
	return filepath.Join(s.opts.SamplesRoot, username)
}

// CollectSamples reads frames from src and saves up to count grayscale face
// crops for a registered student. Frames without exactly one face are
// skipped, as are near-duplicate crops when SampleMinDistance is set.
// progress, when set, is called after every saved sample.
func (s *Service) CollectSamples(ctx context.Context, username string, src camera.Source, count int, progress func(saved int)) (int, error) {
	if _, ok, err := s.opts.Students.Get(username); err != nil {
		return 0, err
	} else if !ok {
		return 0, fmt.Errorf("%w: %s is not registered", database.ErrInvalidStudent, username)
	}
	det, err := s.detector()
	if err != nil {
		return 0, err
	}
	if count <= 0 {
		count = s.opts.SampleCount
	}

	dir := s.SamplesDir(username)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dir, err)
	}

	seen := fingerprint.NewSet(s.opts.SampleMinDistance)
	saved, failures := 0, 0
	for saved < count {
		if ctx.Err() != nil {
			return saved, ctx.Err()
		}
		img, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			failures++
			if failures >= s.opts.MaxFrameFailures {
				return saved, fmt.Errorf("%w: %w", database.ErrDeviceUnavailable, err)
			}
			continue
		}
		failures = 0

		rects, err := det.Detect(img)
		if err != nil {
			return saved, fmt.Errorf("detecting faces: %w", err)
		}
		idx, err := singleFace(rects)
		if err != nil {
			continue
		}
		crop, err := vision.FaceCrop(img, rects[idx], constants.TrainingImageSize)
		if err != nil || !seen.Add(crop) {
			continue
		}
		data, err := vision.EncodePNG(crop)
		if err != nil {
			return saved, err
		}
		saved++
		name := filepath.Join(dir, fmt.Sprintf("%d.png", saved))
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return saved - 1, fmt.Errorf("writing sample: %w", err)
		}
		if progress != nil {
			progress(saved)
		}
	}
	return saved, nil
}

package attendance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

var sampleExtensions = []string{".png", ".jpg", ".jpeg"}

// TrainResult summarises a training run.
type TrainResult struct {
	Students int      `json:"students"`
	Samples  int      `json:"samples"`
	Model    string   `json:"model"`
	Missing  []string `json:"missing,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
}

type sampleFile struct {
	path  string
	label int
}

// collectSampleFiles lists the sample images of every labeled username.
// Usernames without a samples directory are reported in missing.
func (s *Service) collectSampleFiles() (files []sampleFile, missing []string, err error) {
	labels, err := s.opts.Labels.All()
	if err != nil {
		return nil, nil, fmt.Errorf("loading labels: %w", err)
	}
	usernames := make([]string, 0, len(labels))
	for u := range labels {
		usernames = append(usernames, u)
	}
	slices.SortFunc(usernames, func(a, b string) int { return labels[a] - labels[b] })

	for _, username := range usernames {
		dir := s.SamplesDir(username)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			missing = append(missing, username)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !slices.Contains(sampleExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
				continue
			}
			files = append(files, sampleFile{path: filepath.Join(dir, e.Name()), label: labels[username]})
		}
	}
	return files, missing, nil
}

// Train builds the classifier from the collected samples and saves the model.
// progress, when set, is called as (loaded, total) while samples are read.
func (s *Service) Train(progress func(done, total int)) (TrainResult, error) {
	if !s.opts.Labels.Exists() {
		return TrainResult{}, fmt.Errorf("%w: label file not found, register students first", database.ErrStorageMissing)
	}
	if s.opts.NewClassifier == nil {
		return TrainResult{}, errors.New("no classifier backend configured")
	}

	files, missing, err := s.collectSampleFiles()
	if err != nil {
		return TrainResult{}, err
	}
	result := TrainResult{Model: s.opts.ModelPath, Missing: missing}

	size := constants.TrainingImageSize
	samples := make([]vision.Sample, 0, len(files))
	seen := make(map[int]bool)
	for i, f := range files {
		data, err := os.ReadFile(f.path) //nolint:gosec // path is under the data directory
		if err != nil {
			return TrainResult{}, fmt.Errorf("reading sample %s: %w", f.path, err)
		}
		img, err := vision.DecodeImage(data)
		if err != nil {
			result.Skipped = append(result.Skipped, f.path)
			continue
		}
		samples = append(samples, vision.Sample{Image: vision.ToGray(vision.Resize(img, size, size)), Label: f.label})
		seen[f.label] = true
		if progress != nil {
			progress(i+1, len(files))
		}
	}
	if len(samples) == 0 {
		return result, database.ErrNoTrainingData
	}

	cls := s.opts.NewClassifier()
	if err := cls.Train(samples); err != nil {
		return result, fmt.Errorf("training classifier: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.opts.ModelPath), 0o755); err != nil {
		return result, fmt.Errorf("creating model directory: %w", err)
	}
	if err := cls.Save(s.opts.ModelPath); err != nil {
		return result, fmt.Errorf("saving model: %w", err)
	}

	result.Students = len(seen)
	result.Samples = len(samples)
	return result, nil
}

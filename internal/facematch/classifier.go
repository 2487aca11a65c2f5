package facematch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// ClassifierMatcher resolves crops with a trained classifier and maps the
// predicted label id back to a username.
type ClassifierMatcher struct {
	classifier vision.Classifier
	labels     database.LabelStore
	threshold  float64
}

var _ Matcher = (*ClassifierMatcher)(nil)

// NewClassifierMatcher loads the trained model at modelPath. Running before
// training (no model or no label file) fails with ErrStorageMissing.
func NewClassifierMatcher(classifier vision.Classifier, labels database.LabelStore, modelPath string, threshold float64) (*ClassifierMatcher, error) {
	if threshold <= 0 {
		threshold = constants.DefaultClassifierThreshold
	}
	if !labels.Exists() {
		return nil, fmt.Errorf("%w: label file not found, register students first", database.ErrStorageMissing)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: trained model %s not found, run train first", database.ErrStorageMissing, modelPath)
	}
	if err := classifier.Load(modelPath); err != nil {
		return nil, fmt.Errorf("loading trained model: %w", err)
	}
	return &ClassifierMatcher{classifier: classifier, labels: labels, threshold: threshold}, nil
}

// NewClassifierMatcherFrom wraps an already trained classifier.
func NewClassifierMatcherFrom(classifier vision.Classifier, labels database.LabelStore, threshold float64) *ClassifierMatcher {
	if threshold <= 0 {
		threshold = constants.DefaultClassifierThreshold
	}
	return &ClassifierMatcher{classifier: classifier, labels: labels, threshold: threshold}
}

// Match accepts the prediction when its confidence is at most the threshold
// and the label id belongs to a registered username.
func (m *ClassifierMatcher) Match(ctx context.Context, probe Probe) (Result, error) {
	if probe.Crop == nil {
		return Result{}, errors.New("probe has no face crop")
	}

	pred, err := m.classifier.Predict(probe.Crop)
	if errors.Is(err, vision.ErrUntrained) {
		return unknown(0), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("classifier predict: %w", err)
	}
	if pred.Confidence > m.threshold {
		return unknown(pred.Confidence), nil
	}

	username, ok, err := m.labels.ByID(pred.Label)
	if err != nil {
		return Result{}, fmt.Errorf("resolving label %d: %w", pred.Label, err)
	}
	if !ok {
		return unknown(pred.Confidence), nil
	}
	return Result{Username: username, Distance: pred.Confidence, Known: true}, nil
}

func (m *ClassifierMatcher) Strategy() string      { return StrategyClassifier }
func (m *ClassifierMatcher) NeedsDescriptor() bool { return false }

// Threshold returns the accepted maximum confidence.
func (m *ClassifierMatcher) Threshold() float64 { return m.threshold }

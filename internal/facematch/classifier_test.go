package facematch

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// fakeClassifier always returns the configured prediction.
type fakeClassifier struct {
	pred    vision.Prediction
	err     error
	loaded  string
	loadErr error
}

func (f *fakeClassifier) Train([]vision.Sample) error { return nil }
func (f *fakeClassifier) Predict(*image.Gray) (vision.Prediction, error) {
	return f.pred, f.err
}
func (f *fakeClassifier) Save(string) error { return nil }
func (f *fakeClassifier) Load(path string) error {
	f.loaded = path
	return f.loadErr
}

func crop() *image.Gray {
	return image.NewGray(image.Rect(0, 0, 200, 200))
}

func TestClassifierMatcher_Match(t *testing.T) {
	labels := mock.NewMockLabelStore()
	labels.SetLabel("101", 0)
	labels.SetLabel("102", 1)

	tests := []struct {
		name      string
		pred      vision.Prediction
		predErr   error
		wantKnown bool
		wantUser  string
		wantErr   bool
	}{
		{"confident match", vision.Prediction{Label: 0, Confidence: 40}, nil, true, "101", false},
		{"at threshold", vision.Prediction{Label: 1, Confidence: 70}, nil, true, "102", false},
		{"above threshold is unknown", vision.Prediction{Label: 0, Confidence: 85}, nil, false, "", false},
		{"unmapped label is unknown", vision.Prediction{Label: 9, Confidence: 10}, nil, false, "", false},
		{"untrained is unknown", vision.Prediction{}, vision.ErrUntrained, false, "", false},
		{"backend failure", vision.Prediction{}, errors.New("boom"), false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewClassifierMatcherFrom(&fakeClassifier{pred: tt.pred, err: tt.predErr}, labels, 70)
			got, err := m.Match(context.Background(), Probe{Crop: crop()})
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if got.Known != tt.wantKnown || got.Username != tt.wantUser {
				t.Errorf("Match() = %+v, want known=%v user=%q", got, tt.wantKnown, tt.wantUser)
			}
		})
	}
}

func TestClassifierMatcher_MissingCrop(t *testing.T) {
	m := NewClassifierMatcherFrom(&fakeClassifier{}, mock.NewMockLabelStore(), 70)
	if _, err := m.Match(context.Background(), Probe{}); err == nil {
		t.Error("expected error for probe without crop")
	}
}

func TestNewClassifierMatcher_StorageMissing(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "lbph.gob")

	labels := mock.NewMockLabelStore()
	_, err := NewClassifierMatcher(&fakeClassifier{}, labels, modelPath, 70)
	if !errors.Is(err, database.ErrStorageMissing) {
		t.Errorf("expected ErrStorageMissing without labels, got %v", err)
	}

	labels.SetLabel("101", 0)
	_, err = NewClassifierMatcher(&fakeClassifier{}, labels, modelPath, 70)
	if !errors.Is(err, database.ErrStorageMissing) {
		t.Errorf("expected ErrStorageMissing without model, got %v", err)
	}

	if err := os.WriteFile(modelPath, []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	cls := &fakeClassifier{}
	m, err := NewClassifierMatcher(cls, labels, modelPath, 0)
	if err != nil {
		t.Fatalf("NewClassifierMatcher() error = %v", err)
	}
	if cls.loaded != modelPath {
		t.Errorf("expected model loaded from %s, got %q", modelPath, cls.loaded)
	}
	if m.Threshold() != 70 {
		t.Errorf("expected default threshold 70, got %f", m.Threshold())
	}
}

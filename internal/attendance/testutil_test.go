package attendance

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

type fakeDetector struct {
	rects []image.Rectangle
	err   error
	calls int
}

func (f *fakeDetector) Detect(image.Image) ([]image.Rectangle, error) {
	f.calls++
	return f.rects, f.err
}

type fakeExtractor struct {
	faces []vision.Face
	err   error
}

func (f *fakeExtractor) Extract(context.Context, image.Image) ([]vision.Face, error) {
	return f.faces, f.err
}

// fakeClassifier predicts a fixed label and records what it was trained on.
type fakeClassifier struct {
	pred    vision.Prediction
	trained []vision.Sample
	saved   string
}

func (f *fakeClassifier) Train(samples []vision.Sample) error {
	f.trained = samples
	return nil
}

func (f *fakeClassifier) Predict(*image.Gray) (vision.Prediction, error) {
	if f.trained == nil {
		return vision.Prediction{}, vision.ErrUntrained
	}
	return f.pred, nil
}

func (f *fakeClassifier) Save(path string) error {
	f.saved = path
	return nil
}

func (f *fakeClassifier) Load(string) error { return nil }

type testEnv struct {
	students    *mock.MockStudentStore
	labels      *mock.MockLabelStore
	descriptors *mock.MockDescriptorStore
	ledger      *mock.MockLedger
	detector    *fakeDetector
	extractor   *fakeExtractor
	classifier  *fakeClassifier
	svc         *Service
}

var fixedNow = time.Date(2024, 3, 14, 9, 30, 5, 0, time.Local)

func newTestEnv(t *testing.T, strategy string) *testEnv {
	t.Helper()
	env := &testEnv{
		students:    mock.NewMockStudentStore(),
		labels:      mock.NewMockLabelStore(),
		descriptors: mock.NewMockDescriptorStore(),
		ledger:      mock.NewMockLedger(),
		detector:    &fakeDetector{},
		extractor:   &fakeExtractor{},
		classifier:  &fakeClassifier{},
	}
	dir := t.TempDir()
	svc, err := New(Options{
		Students:         env.students,
		Labels:           env.labels,
		Descriptors:      env.descriptors,
		Ledger:           env.ledger,
		Extractor:        env.extractor,
		Detector:         env.detector,
		NewClassifier:    func() vision.Classifier { return env.classifier },
		Strategy:         strategy,
		ModelPath:        dir + "/trained_model/lbph.gob",
		SamplesRoot:      dir + "/data/raw",
		MaxFrameFailures: 3,
		Now:              func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.svc = svc
	return env
}

// trainedMatcher returns a classifier matcher over the env's fake classifier.
func (e *testEnv) trainedMatcher() facematch.Matcher {
	e.classifier.trained = []vision.Sample{{}}
	return facematch.NewClassifierMatcherFrom(e.classifier, e.labels, 0)
}

func frame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

var faceRect = image.Rect(100, 100, 300, 300)

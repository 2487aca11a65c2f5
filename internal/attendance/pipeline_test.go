package attendance

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// A registered student recognised by the classifier is marked once per day,
// however many frames show them.
func TestClassifierRecognitionMarksOncePerDay(t *testing.T) {
	env := newTestEnv(t, facematch.StrategyClassifier)
	reg, err := env.svc.RegisterStudent("101", "Asha", "CS")
	if err != nil {
		t.Fatalf("RegisterStudent() error = %v", err)
	}
	if reg.LabelID != 0 {
		t.Fatalf("LabelID = %d, want 0", reg.LabelID)
	}

	env.detector.rects = []image.Rectangle{faceRect}
	env.classifier.pred = vision.Prediction{Label: 0, Confidence: 40}
	m := env.trainedMatcher()

	regions, err := env.svc.ProcessFrame(context.Background(), frame(), m)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(regions) != 1 || !regions[0].Result.Known {
		t.Fatalf("regions = %+v, want one known region", regions)
	}
	if got := *regions[0].Outcome; got != database.OutcomeWritten {
		t.Errorf("first outcome = %v, want written", got)
	}
	if regions[0].Label != "Asha" {
		t.Errorf("Label = %q, want Asha", regions[0].Label)
	}

	rows, _ := env.ledger.Rows()
	want := database.AttendanceRow{Date: "2024-03-14", Name: "101", FullName: "Asha", Branch: "CS", Time: "09:30:05", Status: "P"}
	if len(rows) != 1 || rows[0] != want {
		t.Fatalf("rows = %+v, want [%+v]", rows, want)
	}

	regions, err = env.svc.ProcessFrame(context.Background(), frame(), m)
	if err != nil {
		t.Fatalf("second ProcessFrame() error = %v", err)
	}
	if got := *regions[0].Outcome; got != database.OutcomeSkipped {
		t.Errorf("second outcome = %v, want skipped", got)
	}
	if rows, _ := env.ledger.Rows(); len(rows) != 1 {
		t.Errorf("ledger has %d rows after second frame, want 1", len(rows))
	}
}

// A label can exist without an identity record; the ledger row then carries
// the username as the full name.
func TestProcessFrame_MissingStudentRecordUsesUsername(t *testing.T) {
	env := newTestEnv(t, facematch.StrategyClassifier)
	env.labels.SetLabel("101", 0)
	env.detector.rects = []image.Rectangle{faceRect}
	env.classifier.pred = vision.Prediction{Label: 0, Confidence: 40}

	regions, err := env.svc.ProcessFrame(context.Background(), frame(), env.trainedMatcher())
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(regions) != 1 || !regions[0].Result.Known {
		t.Fatalf("regions = %+v, want one known region", regions)
	}
	if regions[0].Label != "101" || regions[0].FullName != "101" {
		t.Errorf("region = %+v, want label and full name 101", regions[0])
	}

	rows, _ := env.ledger.Rows()
	want := database.AttendanceRow{Date: "2024-03-14", Name: "101", FullName: "101", Time: "09:30:05", Status: "P"}
	if len(rows) != 1 || rows[0] != want {
		t.Fatalf("rows = %+v, want [%+v]", rows, want)
	}
}

func TestProcessFrame_UnknownFacesAreNotMarked(t *testing.T) {
	env := newTestEnv(t, facematch.StrategyClassifier)
	if _, err := env.svc.RegisterStudent("101", "Asha", "CS"); err != nil {
		t.Fatal(err)
	}
	env.detector.rects = []image.Rectangle{faceRect}
	env.classifier.pred = vision.Prediction{Label: 0, Confidence: 95}

	regions, err := env.svc.ProcessFrame(context.Background(), frame(), env.trainedMatcher())
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(regions) != 1 || regions[0].Result.Known {
		t.Fatalf("regions = %+v, want one unknown region", regions)
	}
	if regions[0].Label != constants.UnknownLabel || regions[0].Outcome != nil {
		t.Errorf("region = %+v, want Unknown without outcome", regions[0])
	}
	if env.ledger.MarkCalls != 0 {
		t.Errorf("MarkCalls = %d, want 0", env.ledger.MarkCalls)
	}
}

func TestProcessFrame_DescriptorStrategy(t *testing.T) {
	env := newTestEnv(t, facematch.StrategyDescriptor)
	if err := env.descriptors.Put("alice", []float32{0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := env.descriptors.Put("bob", []float32{1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	env.extractor.faces = []vision.Face{
		{Rect: faceRect, Descriptor: []float32{0.1, 0, 0}},
		{Rect: image.Rect(400, 100, 500, 200), Descriptor: []float32{5, 5, 5}},
	}
	m, err := env.svc.Matcher()
	if err != nil {
		t.Fatalf("Matcher() error = %v", err)
	}

	regions, err := env.svc.ProcessFrame(context.Background(), frame(), m)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if !regions[0].Result.Known || regions[0].Result.Username != "alice" {
		t.Errorf("region 0 = %+v, want alice", regions[0].Result)
	}
	// alice has no student record, so the label falls back to the username.
	if regions[0].Label != "alice" {
		t.Errorf("Label = %q, want alice", regions[0].Label)
	}
	if regions[1].Result.Known {
		t.Errorf("region 1 = %+v, want unknown", regions[1].Result)
	}
	if env.ledger.MarkCalls != 1 {
		t.Errorf("MarkCalls = %d, want 1", env.ledger.MarkCalls)
	}
}

func TestProcessFrame_Errors(t *testing.T) {
	env := newTestEnv(t, facematch.StrategyDescriptor)
	env.extractor.err = errors.New("service down")
	m, err := env.svc.Matcher()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.ProcessFrame(context.Background(), frame(), m); err == nil {
		t.Error("expected extractor error")
	}

	env.extractor.err = nil
	env.extractor.faces = []vision.Face{{Rect: faceRect, Descriptor: []float32{0}}}
	env.descriptors.Put("a", []float32{0})
	env.ledger.MarkError = errors.New("disk full")
	m, _ = env.svc.Matcher()
	if _, err := env.svc.ProcessFrame(context.Background(), frame(), m); err == nil {
		t.Error("expected ledger error")
	}
}

func TestMatcher_ClassifierWithoutTraining(t *testing.T) {
	env := newTestEnv(t, facematch.StrategyClassifier)
	_, err := env.svc.Matcher()
	if !errors.Is(err, database.ErrStorageMissing) {
		t.Errorf("Matcher() error = %v, want ErrStorageMissing", err)
	}
}

func TestMarkManual(t *testing.T) {
	env := newTestEnv(t, facematch.StrategyDescriptor)
	outcome, _, err := env.svc.MarkManual("ghost")
	if !errors.Is(err, database.ErrInvalidStudent) {
		t.Errorf("MarkManual(ghost) error = %v, want ErrInvalidStudent", err)
	}
	if outcome != database.OutcomeUnknown {
		t.Errorf("MarkManual(ghost) outcome = %v, want unknown", outcome)
	}
	env.students.Upsert("101", "Asha", "CS")
	outcome, row, err := env.svc.MarkManual("101")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != database.OutcomeWritten || row.FullName != "Asha" {
		t.Errorf("MarkManual() = %v, %+v", outcome, row)
	}
}

func TestNew_Validation(t *testing.T) {
	env := newTestEnv(t, "")
	if env.svc.Strategy() != facematch.StrategyDescriptor {
		t.Errorf("default strategy = %q", env.svc.Strategy())
	}
	if _, err := New(Options{}); err == nil {
		t.Error("New() without stores should fail")
	}
	_, err := New(Options{
		Students: env.students, Labels: env.labels, Descriptors: env.descriptors, Ledger: env.ledger,
		Strategy: "eigenfaces",
	})
	if err == nil {
		t.Error("New() with unknown strategy should fail")
	}
}

func TestDisplayName(t *testing.T) {
	env := newTestEnv(t, "")
	env.students.Upsert("101", "Asha", "CS")
	if got := env.svc.DisplayName("101"); got != "Asha" {
		t.Errorf("DisplayName(101) = %q", got)
	}
	if got := env.svc.DisplayName("999"); got != "999" {
		t.Errorf("DisplayName(999) = %q", got)
	}
}

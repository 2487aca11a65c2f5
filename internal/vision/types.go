// Package vision wraps the face detection, descriptor extraction and
// classifier libraries behind small interfaces.
package vision

import (
	"context"
	"errors"
	"image"
)

// ErrUnavailable is returned by backends compiled without their native library.
var ErrUnavailable = errors.New("vision backend not compiled in")

// ErrUntrained is returned when predicting with a classifier that has no model.
var ErrUntrained = errors.New("classifier has not been trained")

// Face is a detected face region with its descriptor.
type Face struct {
	Rect       image.Rectangle `json:"rect"`
	Descriptor []float32       `json:"descriptor"`
}

// Detector finds face regions in an image.
type Detector interface {
	Detect(img image.Image) ([]image.Rectangle, error)
}

// Extractor finds faces and computes one descriptor per face.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) ([]Face, error)
}

// Sample is one labeled grayscale training crop.
type Sample struct {
	Image *image.Gray
	Label int
}

// Prediction is a classifier result. Lower Confidence means a closer match.
type Prediction struct {
	Label      int
	Confidence float64
}

// Classifier is a trainable face recognizer keyed by integer labels.
type Classifier interface {
	Train(samples []Sample) error
	Predict(img *image.Gray) (Prediction, error)
	Save(path string) error
	Load(path string) error
}

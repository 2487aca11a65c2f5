//go:build !gocv

package vision

import "image"

// OpenCVClassifier is unavailable without the gocv build tag.
type OpenCVClassifier struct{}

// NewOpenCVClassifier returns a classifier whose methods fail with ErrUnavailable.
func NewOpenCVClassifier() *OpenCVClassifier { return &OpenCVClassifier{} }

func (c *OpenCVClassifier) Train([]Sample) error { return ErrUnavailable }

func (c *OpenCVClassifier) Predict(*image.Gray) (Prediction, error) {
	return Prediction{}, ErrUnavailable
}

func (c *OpenCVClassifier) Save(string) error { return ErrUnavailable }
func (c *OpenCVClassifier) Load(string) error { return ErrUnavailable }

// OpenCVAvailable reports whether the binary was built with OpenCV support.
func OpenCVAvailable() bool { return false }

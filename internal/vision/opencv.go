//go:build gocv

package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// OpenCVClassifier is the OpenCV contrib LBPH face recognizer.
type OpenCVClassifier struct {
	rec     *contrib.LBPHFaceRecognizer
	trained bool
	mu      sync.Mutex
}

var _ Classifier = (*OpenCVClassifier)(nil)

// NewOpenCVClassifier creates an untrained recognizer.
func NewOpenCVClassifier() *OpenCVClassifier {
	return &OpenCVClassifier{rec: contrib.NewLBPHFaceRecognizer()}
}

func (c *OpenCVClassifier) Train(samples []Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to train on")
	}

	mats := make([]gocv.Mat, 0, len(samples))
	labels := make([]int, 0, len(samples))
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()
	for _, s := range samples {
		m, err := gocv.ImageGrayToMatGray(s.Image)
		if err != nil {
			return fmt.Errorf("converting sample: %w", err)
		}
		mats = append(mats, m)
		labels = append(labels, s.Label)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Train(mats, labels)
	c.trained = true
	return nil
}

func (c *OpenCVClassifier) Predict(img *image.Gray) (Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.trained {
		return Prediction{}, ErrUntrained
	}

	m, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return Prediction{}, fmt.Errorf("converting crop: %w", err)
	}
	defer m.Close()

	resp := c.rec.PredictExtendedResponse(m)
	return Prediction{Label: int(resp.Label), Confidence: float64(resp.Confidence)}, nil
}

func (c *OpenCVClassifier) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.trained {
		return ErrUntrained
	}
	c.rec.SaveFile(path)
	return nil
}

func (c *OpenCVClassifier) Load(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.LoadFile(path)
	c.trained = true
	return nil
}

// OpenCVAvailable reports whether the binary was built with OpenCV support.
func OpenCVAvailable() bool { return true }

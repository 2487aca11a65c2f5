package vision

import (
	"errors"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// DetectorParams tunes the pigo cascade scan.
type DetectorParams struct {
	MinSize          int
	MaxSize          int
	ShiftFactor      float64
	ScaleFactor      float64
	QualityThreshold float64
	IoUThreshold     float64
}

// PigoDetector detects faces with a pigo pixel-intensity cascade.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     DetectorParams
}

var _ Detector = (*PigoDetector)(nil)

// NewPigoDetector unpacks a cascade and returns a detector.
func NewPigoDetector(cascade []byte, params DetectorParams) (*PigoDetector, error) {
	if len(cascade) == 0 {
		return nil, errors.New("empty cascade data")
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	if params.IoUThreshold == 0 {
		params.IoUThreshold = 0.2
	}
	return &PigoDetector{classifier: classifier, params: params}, nil
}

// LoadPigoDetector reads the cascade file at path.
func LoadPigoDetector(path string, params DetectorParams) (*PigoDetector, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewPigoDetector(data, params)
}

// Detect returns square face regions above the quality threshold.
func (d *PigoDetector) Detect(img image.Image) ([]image.Rectangle, error) {
	src := pigo.ImgToNRGBA(img)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	maxSize := d.params.MaxSize
	if maxSize <= 0 {
		maxSize = max(cols, rows)
	}

	dets := d.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	offset := img.Bounds().Min
	faces := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if float64(det.Q) <= d.params.QualityThreshold {
			continue
		}
		x := det.Col - det.Scale/2
		y := det.Row - det.Scale/2
		faces = append(faces, image.Rect(x, y, x+det.Scale, y+det.Scale).Add(offset))
	}
	return faces, nil
}

// Package lbph is a pure Go local binary patterns histogram face recognizer.
// It uses radius 1, 8 neighbours and an 8x8 grid, and compares spatial
// histograms with the alternative chi-square distance, so confidences are on
// the same scale as the OpenCV contrib recognizer.
package lbph

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

const (
	gridX     = 8
	gridY     = 8
	bins      = 256
	modelKind = "lbph-r1-n8-g8x8"
)

// model is the gob payload of a saved recognizer.
type model struct {
	Kind       string
	Labels     []int
	Histograms [][]float32
}

// Recognizer holds one spatial histogram per training sample.
type Recognizer struct {
	mu         sync.RWMutex
	labels     []int
	histograms [][]float32
}

var _ vision.Classifier = (*Recognizer)(nil)

// New returns an untrained recognizer.
func New() *Recognizer {
	return &Recognizer{}
}

// Train replaces the model with the given samples.
func (r *Recognizer) Train(samples []vision.Sample) error {
	if len(samples) == 0 {
		return errors.New("no samples to train on")
	}
	labels := make([]int, len(samples))
	hists := make([][]float32, len(samples))
	for i, s := range samples {
		if s.Image == nil {
			return fmt.Errorf("sample %d has no image", i)
		}
		labels[i] = s.Label
		hists[i] = spatialHistogram(s.Image)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = labels
	r.histograms = hists
	return nil
}

// Predict returns the label of the nearest training sample. Ties keep the
// earliest sample.
func (r *Recognizer) Predict(img *image.Gray) (vision.Prediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.histograms) == 0 {
		return vision.Prediction{}, vision.ErrUntrained
	}

	query := spatialHistogram(img)
	best := vision.Prediction{Label: -1, Confidence: -1}
	for i, h := range r.histograms {
		d := chiSquare(query, h)
		if best.Confidence < 0 || d < best.Confidence {
			best = vision.Prediction{Label: r.labels[i], Confidence: d}
		}
	}
	return best, nil
}

// Save writes the model atomically.
func (r *Recognizer) Save(path string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.histograms) == 0 {
		return vision.ErrUntrained
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(model{Kind: modelKind, Labels: r.labels, Histograms: r.histograms}); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func (r *Recognizer) Load(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}
	var m model
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	if m.Kind != modelKind {
		return fmt.Errorf("unsupported model kind %q", m.Kind)
	}
	if len(m.Labels) != len(m.Histograms) {
		return fmt.Errorf("corrupt model: %d labels for %d histograms", len(m.Labels), len(m.Histograms))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = m.Labels
	r.histograms = m.Histograms
	return nil
}

// Samples returns the number of training samples in the model.
func (r *Recognizer) Samples() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.histograms)
}

// neighbours are visited clockwise from the top-left pixel.
var neighbours = [8]image.Point{
	{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0},
}

// lbpCodes computes the 8-bit pattern of every interior pixel.
func lbpCodes(img *image.Gray) (codes []uint8, w, h int) {
	b := img.Bounds()
	w, h = b.Dx()-2, b.Dy()-2
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}
	codes = make([]uint8, w*h)
	for y := range h {
		for x := range w {
			px, py := b.Min.X+x+1, b.Min.Y+y+1
			center := img.GrayAt(px, py).Y
			var code uint8
			for i, n := range neighbours {
				if img.GrayAt(px+n.X, py+n.Y).Y >= center {
					code |= 1 << uint(i)
				}
			}
			codes[y*w+x] = code
		}
	}
	return codes, w, h
}

// spatialHistogram concatenates per-cell code histograms, each normalized by
// the number of pixels in its cell.
func spatialHistogram(img *image.Gray) []float32 {
	hist := make([]float32, gridX*gridY*bins)
	codes, w, h := lbpCodes(img)
	if len(codes) == 0 {
		return hist
	}

	cellW, cellH := w/gridX, h/gridY
	if cellW == 0 || cellH == 0 {
		cellW, cellH = max(cellW, 1), max(cellH, 1)
	}
	for gy := range gridY {
		for gx := range gridX {
			cell := hist[(gy*gridX+gx)*bins : (gy*gridX+gx+1)*bins]
			count := 0
			for y := gy * cellH; y < min((gy+1)*cellH, h); y++ {
				for x := gx * cellW; x < min((gx+1)*cellW, w); x++ {
					cell[codes[y*w+x]]++
					count++
				}
			}
			if count > 0 {
				for i := range cell {
					cell[i] /= float32(count)
				}
			}
		}
	}
	return hist
}

// chiSquare is the symmetric chi-square distance sum 2(a-b)^2/(a+b).
func chiSquare(a, b []float32) float64 {
	var sum float64
	for i := range a {
		s := float64(a[i]) + float64(b[i])
		if s <= 0 {
			continue
		}
		d := float64(a[i]) - float64(b[i])
		sum += 2 * d * d / s
	}
	return sum
}

//go:build dlib

package vision

import (
	"context"
	"fmt"
	"image"
	"sync"

	face "github.com/Kagami/go-face"
)

// DlibExtractor computes 128-d descriptors locally with dlib.
type DlibExtractor struct {
	rec *face.Recognizer
	mu  sync.Mutex // the recognizer is not safe for concurrent use
}

var _ Extractor = (*DlibExtractor)(nil)

// NewDlibExtractor loads the dlib models from modelsDir.
func NewDlibExtractor(modelsDir string) (*DlibExtractor, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", modelsDir, err)
	}
	return &DlibExtractor{rec: rec}, nil
}

// Extract encodes img as JPEG and runs the HOG detector plus descriptor network.
func (d *DlibExtractor) Extract(ctx context.Context, img image.Image) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := EncodeJPEG(img)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	faces, err := d.rec.Recognize(data)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("dlib recognize: %w", err)
	}

	out := make([]Face, len(faces))
	for i, f := range faces {
		out[i] = Face{Rect: f.Rectangle, Descriptor: append([]float32(nil), f.Descriptor[:]...)}
	}
	return out, nil
}

// Close releases the dlib models.
func (d *DlibExtractor) Close() error {
	d.rec.Close()
	return nil
}

// DlibAvailable reports whether the binary was built with dlib support.
func DlibAvailable() bool { return true }

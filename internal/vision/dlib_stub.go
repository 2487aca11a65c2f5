//go:build !dlib

package vision

import (
	"context"
	"fmt"
	"image"
)

// DlibExtractor is unavailable without the dlib build tag.
type DlibExtractor struct{}

// NewDlibExtractor always fails; rebuild with -tags dlib.
func NewDlibExtractor(modelsDir string) (*DlibExtractor, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags dlib to load %s", ErrUnavailable, modelsDir)
}

func (d *DlibExtractor) Extract(context.Context, image.Image) ([]Face, error) {
	return nil, ErrUnavailable
}

func (d *DlibExtractor) Close() error { return nil }

// DlibAvailable reports whether the binary was built with dlib support.
func DlibAvailable() bool { return false }

// Package camera provides frame sources for recognition sessions.
package camera

import (
	"context"
	"fmt"
	"image"
	"os"
	"strconv"
)

// Source yields frames one at a time. Read blocks until a frame is available,
// returns io.EOF when a finite source is exhausted, and any other error for a
// failed read that may be retried.
type Source interface {
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// Open resolves spec to a frame source: a directory of frame images, or a
// numeric device index opened through OpenCV.
func Open(spec string) (Source, error) {
	if info, err := os.Stat(spec); err == nil && info.IsDir() {
		return OpenDir(spec)
	}
	id, err := strconv.Atoi(spec)
	if err != nil {
		return nil, fmt.Errorf("camera %q is neither a frame directory nor a device index", spec)
	}
	return OpenDevice(id)
}

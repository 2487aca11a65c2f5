package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

var frameExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// DirSource replays image files from a directory in name order.
type DirSource struct {
	files []string
	next  int
	mu    sync.Mutex
}

// OpenDir lists the frames in dir. A missing directory is reported as an
// unavailable device, matching a camera that cannot be opened.
func OpenDir(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrDeviceUnavailable, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsImageFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return &DirSource{files: files}, nil
}

// IsImageFile reports whether name has a supported image extension.
func IsImageFile(name string) bool {
	return slices.Contains(frameExtensions, strings.ToLower(filepath.Ext(name)))
}

// Read decodes the next frame. A file that fails to decode is a read failure,
// not the end of the stream.
func (d *DirSource) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.next >= len(d.files) {
		d.mu.Unlock()
		return nil, io.EOF
	}
	path := d.files[d.next]
	d.next++
	d.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // frame directory is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("reading frame %s: %w", path, err)
	}
	img, err := vision.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Len returns the number of frames in the directory.
func (d *DirSource) Len() int {
	return len(d.files)
}

func (d *DirSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next = len(d.files)
	return nil
}

// ImageSource serves a fixed list of frames, then io.EOF.
type ImageSource struct {
	frames []image.Image
	next   int
	mu     sync.Mutex
}

// NewImageSource wraps already decoded frames.
func NewImageSource(frames ...image.Image) *ImageSource {
	return &ImageSource{frames: frames}
}

func (s *ImageSource) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	img := s.frames[s.next]
	s.next++
	if img == nil {
		return nil, errors.New("empty frame")
	}
	return img, nil
}

func (s *ImageSource) Close() error { return nil }

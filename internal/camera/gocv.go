//go:build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
	"gocv.io/x/gocv"
)

// DeviceSource reads frames from a local camera through OpenCV.
type DeviceSource struct {
	cam   *gocv.VideoCapture
	frame gocv.Mat
	mu    sync.Mutex
}

// OpenDevice opens camera id. Failure to open is ErrDeviceUnavailable.
func OpenDevice(id int) (Source, error) {
	cam, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %w", database.ErrDeviceUnavailable, id, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, fmt.Errorf("%w: device %d", database.ErrDeviceUnavailable, id)
	}
	return &DeviceSource{cam: cam, frame: gocv.NewMat()}, nil
}

// Read grabs one frame. Failed or empty grabs are returned as errors so the
// session can count them against its failure budget.
func (d *DeviceSource) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if ok := d.cam.Read(&d.frame); !ok {
		return nil, errors.New("cannot read frame from device")
	}
	if d.frame.Empty() {
		return nil, errors.New("empty frame")
	}
	img, err := d.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	return img, nil
}

func (d *DeviceSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame.Close()
	return d.cam.Close()
}

//go:build !gocv

package camera

import (
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// OpenDevice needs OpenCV; without the gocv build tag every device is unavailable.
func OpenDevice(id int) (Source, error) {
	return nil, fmt.Errorf("%w: device %d (built without gocv, use a frame directory)", database.ErrDeviceUnavailable, id)
}

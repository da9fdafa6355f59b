package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrCaptureUnavailable means the device could not be opened or yielded no first frame
	ErrCaptureUnavailable = errors.New("detector: capture unavailable")
	// ErrFrameRead means the device stopped delivering frames
	ErrFrameRead = errors.New("detector: frame read failed")
	// ErrEndOfStream means the source delivered an empty frame
	ErrEndOfStream = errors.New("detector: end of stream")
)

// Source delivers raw frames. *gocv.VideoCapture satisfies it.
type Source interface {
	// Read fills m with the next frame and reports whether it succeeded
	Read(m *gocv.Mat) bool
	// Close releases the underlying device
	Close() error
}

// OpenCamera opens a capture device and requests fps frames per second.
func OpenCamera(device int, fps float64) (*gocv.VideoCapture, error) {
	webcam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrCaptureUnavailable, device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrCaptureUnavailable, device)
	}
	if fps > 0 {
		webcam.Set(gocv.VideoCaptureFPS, fps)
	}
	return webcam, nil
}

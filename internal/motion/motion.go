// Package motion turns raw camera frames into a scalar motion magnitude.
//
// A Preprocessor converts each frame to a blurred grayscale image. An
// Estimator compares two such images and counts the pixels whose intensity
// changed by more than DiffThreshold.
package motion

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const (
	// DefaultBlurSize is the Gaussian kernel edge length in pixels
	DefaultBlurSize = 21
	// DefaultDiffThreshold is the per-pixel intensity change (0-255) counted as motion
	DefaultDiffThreshold = 25

	onValue = 255
)

var (
	// ErrShapeMismatch is returned when two frames cannot be compared
	ErrShapeMismatch = errors.New("motion: frame shape mismatch")
	// ErrPreprocess is returned when preprocessing produced no image
	ErrPreprocess = errors.New("motion: preprocessing failed")
)

// Preprocessor produces the smoothed single-channel image used for differencing.
type Preprocessor struct {
	BlurSize int
	gray     gocv.Mat
}

// NewPreprocessor returns a Preprocessor with a blurSize x blurSize kernel.
// Close must be called to release its scratch buffer.
func NewPreprocessor(blurSize int) *Preprocessor {
	if blurSize <= 0 {
		blurSize = DefaultBlurSize
	}
	return &Preprocessor{
		BlurSize: blurSize,
		gray:     gocv.NewMat(),
	}
}

// Process writes the grayscale, blurred version of src into dst.
func (p *Preprocessor) Process(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() {
		return fmt.Errorf("%w: empty frame", ErrPreprocess)
	}

	gray := src
	if src.Channels() > 1 {
		gocv.CvtColor(src, &p.gray, gocv.ColorBGRToGray)
		gray = p.gray
	}
	gocv.GaussianBlur(gray, dst, image.Pt(p.BlurSize, p.BlurSize), 0, 0, gocv.BorderDefault)

	if dst.Empty() {
		return fmt.Errorf("%w: blur produced an empty image", ErrPreprocess)
	}
	return nil
}

// Close releases the scratch buffer.
func (p *Preprocessor) Close() error {
	return p.gray.Close()
}

// Estimator computes the motion magnitude between two smoothed frames.
type Estimator struct {
	DiffThreshold float32
	diff          gocv.Mat
}

// NewEstimator returns an Estimator binarizing at diffThreshold.
// Close must be called to release its scratch buffer.
func NewEstimator(diffThreshold float32) *Estimator {
	if diffThreshold <= 0 {
		diffThreshold = DefaultDiffThreshold
	}
	return &Estimator{
		DiffThreshold: diffThreshold,
		diff:          gocv.NewMat(),
	}
}

// Estimate returns the number of pixels whose absolute difference between
// prev and cur exceeds DiffThreshold. Both frames must share size and type.
func (e *Estimator) Estimate(prev, cur gocv.Mat) (int, error) {
	if err := sameShape(prev, cur); err != nil {
		return 0, err
	}

	gocv.AbsDiff(prev, cur, &e.diff)
	gocv.Threshold(e.diff, &e.diff, e.DiffThreshold, onValue, gocv.ThresholdBinary)

	// binarized pixels are 0 or onValue, so non-zero count == sum / onValue
	return gocv.CountNonZero(e.diff), nil
}

// Close releases the scratch buffer.
func (e *Estimator) Close() error {
	return e.diff.Close()
}

func sameShape(a, b gocv.Mat) error {
	if a.Empty() || b.Empty() {
		return fmt.Errorf("%w: empty frame", ErrShapeMismatch)
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() || a.Type() != b.Type() {
		return fmt.Errorf("%w: %dx%d (type %v) vs %dx%d (type %v)",
			ErrShapeMismatch,
			a.Cols(), a.Rows(), a.Type(),
			b.Cols(), b.Rows(), b.Type(),
		)
	}
	if a.Channels() != 1 {
		return fmt.Errorf("%w: expected single channel, got %d", ErrShapeMismatch, a.Channels())
	}
	return nil
}

// Package detector runs the capture -> preprocess -> estimate -> record loop.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"gocv.io/x/gocv"

	"go-opencv-motion-log/internal/motion"
)

// DefaultMotionThreshold is the magnitude a frame pair must exceed to count as motion.
const DefaultMotionThreshold = 100

const meterName = "go-opencv-motion-log/detector"

// State is the lifecycle state of a Detector.
type State int32

const (
	// StateIdle means no first frame has been acquired yet
	StateIdle State = iota
	// StateRunning means the first frame was acquired and the loop is active
	StateRunning
	// StateStopped means the loop exited (failure, end of stream, or cancellation)
	StateStopped
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Recorder receives motion detections. *eventlog.Log implements it.
type Recorder interface {
	Record(ts time.Time, magnitude int)
}

// Config holds the detection tunables.
type Config struct {
	// MotionThreshold is the magnitude that must be exceeded to record an event
	MotionThreshold int
	// DiffThreshold is the per-pixel change counted by the estimator
	DiffThreshold float32
	// BlurSize is the Gaussian kernel edge length
	BlurSize int
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		MotionThreshold: DefaultMotionThreshold,
		DiffThreshold:   motion.DefaultDiffThreshold,
		BlurSize:        motion.DefaultBlurSize,
	}
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for detection and lifecycle records.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithMeterProvider sets where frame and detection metrics are reported.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Detector) { d.meterProvider = mp }
}

// Detector owns a Source and feeds detections into a Recorder.
type Detector struct {
	src Source
	rec Recorder
	cfg Config

	logger        *slog.Logger
	now           func() time.Time
	meterProvider metric.MeterProvider

	claimed atomic.Bool
	state   atomic.Int32

	framesCounter    metric.Int64Counter
	detectionCounter metric.Int64Counter
	magnitudeHist    metric.Int64Histogram
}

// New creates a Detector. The Detector takes ownership of src and closes it
// when Run returns.
func New(src Source, rec Recorder, cfg Config, opts ...Option) (*Detector, error) {
	if src == nil {
		return nil, errors.New("detector: source is required")
	}
	if rec == nil {
		return nil, errors.New("detector: recorder is required")
	}

	d := &Detector{
		src:           src,
		rec:           rec,
		cfg:           cfg,
		logger:        slog.Default(),
		now:           time.Now,
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.initMetrics(); err != nil {
		return nil, fmt.Errorf("detector: init metrics: %w", err)
	}
	return d, nil
}

func (d *Detector) initMetrics() error {
	meter := d.meterProvider.Meter(meterName)

	var err error
	d.framesCounter, err = meter.Int64Counter("motion.frames",
		metric.WithDescription("Frames compared by the detector"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}
	d.detectionCounter, err = meter.Int64Counter("motion.detections",
		metric.WithDescription("Frame pairs whose magnitude exceeded the motion threshold"),
		metric.WithUnit("{detection}"),
	)
	if err != nil {
		return err
	}
	d.magnitudeHist, err = meter.Int64Histogram("motion.magnitude",
		metric.WithDescription("Changed pixel count of detections"),
		metric.WithUnit("{pixel}"),
	)
	return err
}

// State returns the current lifecycle state.
func (d *Detector) State() State {
	return State(d.state.Load())
}

// Run acquires the first frame and then loops until the source fails, the
// stream ends, or ctx is cancelled. Cancellation returns nil; every other
// exit returns the reason. The source is always closed on return.
func (d *Detector) Run(ctx context.Context) error {
	if !d.claimed.CompareAndSwap(false, true) {
		return errors.New("detector: already started")
	}
	defer d.state.Store(int32(StateStopped))

	logger := d.logger.With("run_id", uuid.NewString())
	defer func() {
		if err := d.src.Close(); err != nil {
			logger.Warn("detector: failed to release source", "error", err)
		}
	}()

	pre := motion.NewPreprocessor(d.cfg.BlurSize)
	defer pre.Close()
	est := motion.NewEstimator(d.cfg.DiffThreshold)
	defer est.Close()

	img := gocv.NewMat()
	defer img.Close()
	prev := gocv.NewMat()
	defer prev.Close()
	cur := gocv.NewMat()
	defer cur.Close()

	if err := d.read(&img); err != nil {
		logger.Error("detector: cannot acquire first frame", "error", err)
		return fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	if err := pre.Process(img, &prev); err != nil {
		return err
	}

	d.state.Store(int32(StateRunning))
	logger.Info("detector: started",
		"resolution", fmt.Sprintf("%dx%d", img.Cols(), img.Rows()),
		"motion_threshold", d.cfg.MotionThreshold,
		"diff_threshold", d.cfg.DiffThreshold,
		"blur_size", pre.BlurSize,
	)

	var (
		frames     uint64
		lastSecond time.Time
	)
	for {
		select {
		case <-ctx.Done():
			logger.Info("detector: stopped", "reason", ctx.Err(), "frames", frames)
			return nil
		default:
		}

		if err := d.read(&img); err != nil {
			logger.Info("detector: stopped", "reason", err, "frames", frames)
			return err
		}
		if err := pre.Process(img, &cur); err != nil {
			logger.Error("detector: preprocessing failed", "error", err)
			return err
		}

		magnitude, err := est.Estimate(prev, cur)
		if err != nil {
			logger.Error("detector: estimate failed", "error", err)
			return err
		}
		frames++
		d.framesCounter.Add(ctx, 1)

		if magnitude > d.cfg.MotionThreshold {
			ts := d.now().Truncate(time.Second)
			d.rec.Record(ts, magnitude)
			d.detectionCounter.Add(ctx, 1)
			d.magnitudeHist.Record(ctx, int64(magnitude))
			// same second means the log merged into its newest event
			if ts.Equal(lastSecond) {
				logger.Debug("detector: motion merged",
					"timestamp", ts.Format(time.DateTime),
					"magnitude", magnitude,
				)
			} else {
				logger.Info("detector: motion detected",
					"timestamp", ts.Format(time.DateTime),
					"magnitude", magnitude,
				)
			}
			lastSecond = ts
		}

		// the smoothed current frame becomes the next comparison base as is
		prev, cur = cur, prev
	}
}

func (d *Detector) read(img *gocv.Mat) error {
	if ok := d.src.Read(img); !ok {
		return ErrFrameRead
	}
	if img.Empty() {
		return ErrEndOfStream
	}
	return nil
}

// IsStreamEnd reports whether err is an ordinary end of capture rather than
// a fault in the pipeline.
func IsStreamEnd(err error) bool {
	return errors.Is(err, ErrFrameRead) || errors.Is(err, ErrEndOfStream)
}

// Package config holds the process tunables.
//
// Values are seeded into a private viper instance as defaults and decoded
// into Config. Nothing is read from the environment or from files.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"go-opencv-motion-log/internal/detector"
	"go-opencv-motion-log/internal/eventlog"
	"go-opencv-motion-log/internal/motion"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// Config contains every tunable of the motion log.
type Config struct {
	// Device is the capture device index
	Device int `mapstructure:"device"`
	// FrameRate is the requested capture rate in frames per second
	FrameRate float64 `mapstructure:"frame_rate"`
	// MotionThreshold is the magnitude a frame pair must exceed to be recorded
	MotionThreshold int `mapstructure:"motion_threshold"`
	// DiffThreshold is the per-pixel intensity change counted as motion (0-255)
	DiffThreshold float32 `mapstructure:"diff_threshold"`
	// BlurSize is the Gaussian kernel edge length (odd)
	BlurSize int `mapstructure:"blur_size"`
	// Capacity is the number of events kept in the log
	Capacity int `mapstructure:"capacity"`
	// Port is the HTTP listening port
	Port int `mapstructure:"port"`
	// AssetDir is the directory holding favicon-*.png files
	AssetDir string `mapstructure:"asset_dir"`
}

var defaults = map[string]any{
	"device":           0,
	"frame_rate":       24.0,
	"motion_threshold": detector.DefaultMotionThreshold,
	"diff_threshold":   motion.DefaultDiffThreshold,
	"blur_size":        motion.DefaultBlurSize,
	"capacity":         eventlog.DefaultCapacity,
	"port":             23481,
	"asset_dir":        "assets",
}

// Load returns the validated configuration.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges of every field.
func (c Config) Validate() error {
	switch {
	case c.Device < 0:
		return fmt.Errorf("%w: device %d", ErrInvalid, c.Device)
	case c.FrameRate <= 0:
		return fmt.Errorf("%w: frame_rate %.2f must be positive", ErrInvalid, c.FrameRate)
	case c.MotionThreshold < 0:
		return fmt.Errorf("%w: motion_threshold %d", ErrInvalid, c.MotionThreshold)
	case c.DiffThreshold <= 0 || c.DiffThreshold >= 255:
		return fmt.Errorf("%w: diff_threshold %.0f must be within (0, 255)", ErrInvalid, c.DiffThreshold)
	case c.BlurSize <= 0 || c.BlurSize%2 == 0:
		return fmt.Errorf("%w: blur_size %d must be a positive odd number", ErrInvalid, c.BlurSize)
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity %d", ErrInvalid, c.Capacity)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d", ErrInvalid, c.Port)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Detector returns the detection tunables.
func (c Config) Detector() detector.Config {
	return detector.Config{
		MotionThreshold: c.MotionThreshold,
		DiffThreshold:   c.DiffThreshold,
		BlurSize:        c.BlurSize,
	}
}

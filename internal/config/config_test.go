package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Config{
		Device:          0,
		FrameRate:       24,
		MotionThreshold: 100,
		DiffThreshold:   25,
		BlurSize:        21,
		Capacity:        100,
		Port:            23481,
		AssetDir:        "assets",
	}, cfg)
	assert.Equal(t, ":23481", cfg.Addr())

	dc := cfg.Detector()
	assert.Equal(t, 100, dc.MotionThreshold)
	assert.Equal(t, float32(25), dc.DiffThreshold)
	assert.Equal(t, 21, dc.BlurSize)
}

func TestValidate(t *testing.T) {
	valid, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative device", func(c *Config) { c.Device = -1 }},
		{"zero frame rate", func(c *Config) { c.FrameRate = 0 }},
		{"negative motion threshold", func(c *Config) { c.MotionThreshold = -5 }},
		{"zero diff threshold", func(c *Config) { c.DiffThreshold = 0 }},
		{"diff threshold too high", func(c *Config) { c.DiffThreshold = 255 }},
		{"even blur", func(c *Config) { c.BlurSize = 20 }},
		{"zero blur", func(c *Config) { c.BlurSize = 0 }},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }},
		{"port out of range", func(c *Config) { c.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

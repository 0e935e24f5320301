package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Two throttle periods were used in different revisions of the sensor
// pipeline. Both are named here so the choice is a configuration decision,
// not something buried in stream logic. The default tuning uses the slower
// period; the fast one matches the raw hardware rate for high-density
// visualisation.
const (
	ThrottlePeriodDefault = 200 * time.Millisecond
	ThrottlePeriodFast    = 33 * time.Millisecond
)

// DefaultSmoothingWindow is the number of most recent raw samples averaged
// to suppress road-vibration noise.
const DefaultSmoothingWindow = 5

// DefaultTrajectoryCapacity is the number of trajectory points retained for
// rendering, a fixed time window at the nominal emission rate.
const DefaultTrajectoryCapacity = 300

// TuningConfig holds the tunable parameters of the sensor pipeline. Fields
// are pointers so a partial JSON file only overrides what it names; the Get*
// accessors supply defaults for everything left unset.
type TuningConfig struct {
	// Stream params
	SmoothingWindow  *int    `json:"smoothing_window,omitempty"`
	ThrottlePeriod   *string `json:"throttle_period,omitempty"` // duration string like "200ms"
	SubscriberBuffer *int    `json:"subscriber_buffer,omitempty"`

	// Trajectory params
	TrajectoryCapacity *int     `json:"trajectory_capacity,omitempty"`
	ScaleX             *float64 `json:"scale_x,omitempty"`
	ScaleY             *float64 `json:"scale_y,omitempty"`
	CenterX            *float64 `json:"center_x,omitempty"`
	CenterY            *float64 `json:"center_y,omitempty"`
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be >= 1, got %d", *c.SmoothingWindow)
	}

	if c.ThrottlePeriod != nil && *c.ThrottlePeriod != "" {
		d, err := time.ParseDuration(*c.ThrottlePeriod)
		if err != nil {
			return fmt.Errorf("invalid throttle_period '%s': %w", *c.ThrottlePeriod, err)
		}
		if d <= 0 {
			return fmt.Errorf("throttle_period must be positive, got %s", d)
		}
	}

	if c.TrajectoryCapacity != nil && *c.TrajectoryCapacity < 1 {
		return fmt.Errorf("trajectory_capacity must be >= 1, got %d", *c.TrajectoryCapacity)
	}

	if c.SubscriberBuffer != nil && *c.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber_buffer must be >= 1, got %d", *c.SubscriberBuffer)
	}

	return nil
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return DefaultSmoothingWindow
	}
	return *c.SmoothingWindow
}

// GetThrottlePeriod parses and returns the throttle_period as a
// time.Duration, or the default period.
func (c *TuningConfig) GetThrottlePeriod() time.Duration {
	if c.ThrottlePeriod == nil || *c.ThrottlePeriod == "" {
		return ThrottlePeriodDefault
	}
	d, err := time.ParseDuration(*c.ThrottlePeriod)
	if err != nil {
		return ThrottlePeriodDefault
	}
	return d
}

// GetSubscriberBuffer returns the subscriber_buffer value or the default.
func (c *TuningConfig) GetSubscriberBuffer() int {
	if c.SubscriberBuffer == nil {
		return 16
	}
	return *c.SubscriberBuffer
}

// GetTrajectoryCapacity returns the trajectory_capacity value or the default.
func (c *TuningConfig) GetTrajectoryCapacity() int {
	if c.TrajectoryCapacity == nil {
		return DefaultTrajectoryCapacity
	}
	return *c.TrajectoryCapacity
}

// GetScaleX returns the scale_x value or the default.
func (c *TuningConfig) GetScaleX() float64 {
	if c.ScaleX == nil {
		return 10.0
	}
	return *c.ScaleX
}

// GetScaleY returns the scale_y value or the default.
func (c *TuningConfig) GetScaleY() float64 {
	if c.ScaleY == nil {
		return 10.0
	}
	return *c.ScaleY
}

// GetCenterX returns the center_x value or the default.
func (c *TuningConfig) GetCenterX() float64 {
	if c.CenterX == nil {
		return 150.0
	}
	return *c.CenterX
}

// GetCenterY returns the center_y value or the default.
func (c *TuningConfig) GetCenterY() float64 {
	if c.CenterY == nil {
		return 150.0
	}
	return *c.CenterY
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

func TestDefaults(t *testing.T) {
	cfg := &TuningConfig{}

	if got := cfg.GetSmoothingWindow(); got != DefaultSmoothingWindow {
		t.Errorf("GetSmoothingWindow() = %d, want %d", got, DefaultSmoothingWindow)
	}
	if got := cfg.GetThrottlePeriod(); got != ThrottlePeriodDefault {
		t.Errorf("GetThrottlePeriod() = %v, want %v", got, ThrottlePeriodDefault)
	}
	if got := cfg.GetTrajectoryCapacity(); got != DefaultTrajectoryCapacity {
		t.Errorf("GetTrajectoryCapacity() = %d, want %d", got, DefaultTrajectoryCapacity)
	}
	if got := cfg.GetSubscriberBuffer(); got != 16 {
		t.Errorf("GetSubscriberBuffer() = %d, want 16", got)
	}
}

func TestGetThrottlePeriodParses(t *testing.T) {
	cfg := &TuningConfig{ThrottlePeriod: ptrString("33ms")}
	if got := cfg.GetThrottlePeriod(); got != 33*time.Millisecond {
		t.Errorf("GetThrottlePeriod() = %v, want 33ms", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty is valid", TuningConfig{}, false},
		{"valid window", TuningConfig{SmoothingWindow: ptrInt(10)}, false},
		{"zero window", TuningConfig{SmoothingWindow: ptrInt(0)}, true},
		{"bad throttle", TuningConfig{ThrottlePeriod: ptrString("fast")}, true},
		{"negative throttle", TuningConfig{ThrottlePeriod: ptrString("-5ms")}, true},
		{"zero capacity", TuningConfig{TrajectoryCapacity: ptrInt(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	content := `{"smoothing_window": 8, "throttle_period": "50ms"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if got := cfg.GetSmoothingWindow(); got != 8 {
		t.Errorf("GetSmoothingWindow() = %d, want 8", got)
	}
	if got := cfg.GetThrottlePeriod(); got != 50*time.Millisecond {
		t.Errorf("GetThrottlePeriod() = %v, want 50ms", got)
	}
	// Unset fields keep their defaults.
	if got := cfg.GetTrajectoryCapacity(); got != DefaultTrajectoryCapacity {
		t.Errorf("GetTrajectoryCapacity() = %d, want %d", got, DefaultTrajectoryCapacity)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadTuningConfig("tuning.yaml"); err == nil {
		t.Error("expected error for non-.json extension")
	}
}

func TestLoadTuningConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	if err := os.WriteFile(path, []byte(`{"smoothing_window": 0}`), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("expected validation error for zero smoothing_window")
	}
}

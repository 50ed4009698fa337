package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Tuning.SmallFaceThreshold >= cfg.Tuning.LargeFaceThreshold {
		t.Error("default small threshold should be below large threshold")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("WS_LOCAL_SERVER_URL", "ws://fridge.local:9000/vision/find_faces/")
	t.Setenv("API_SERVER_URL", "https://api.example.com")
	t.Setenv("KIOSK_PORT", "8088")
	t.Setenv("WS_MAX_RECONNECT_ATTEMPTS", "3")

	cfg := Default()
	cfg.LoadEnv()

	if cfg.LocalServerURL != "ws://fridge.local:9000/vision/find_faces/" {
		t.Errorf("LocalServerURL = %q", cfg.LocalServerURL)
	}
	if cfg.APIServerURL != "https://api.example.com" {
		t.Errorf("APIServerURL = %q", cfg.APIServerURL)
	}
	if cfg.Port != "8088" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Tuning.MaxReconnectAttempts != 3 {
		t.Errorf("MaxReconnectAttempts = %d, want 3", cfg.Tuning.MaxReconnectAttempts)
	}
}

func TestEnvInt_Invalid(t *testing.T) {
	t.Setenv("KIOSK_TEST_INT", "nope")
	if got := EnvInt("KIOSK_TEST_INT", 7); got != 7 {
		t.Errorf("EnvInt = %d, want default 7", got)
	}
	t.Setenv("KIOSK_TEST_INT", "-2")
	if got := EnvInt("KIOSK_TEST_INT", 7); got != 7 {
		t.Errorf("EnvInt = %d, want default 7 for negative", got)
	}
}

func TestApplyTuningYAML(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyTuningYAML([]byte(`
small_face_threshold: 12000
iou_threshold: 0.4
response_timeout: 2s
`))
	if err != nil {
		t.Fatalf("ApplyTuningYAML: %v", err)
	}

	if cfg.Tuning.SmallFaceThreshold != 12000 {
		t.Errorf("SmallFaceThreshold = %v", cfg.Tuning.SmallFaceThreshold)
	}
	if cfg.Tuning.IOUThreshold != 0.4 {
		t.Errorf("IOUThreshold = %v", cfg.Tuning.IOUThreshold)
	}
	if cfg.Tuning.ResponseTimeout != 2*time.Second {
		t.Errorf("ResponseTimeout = %v", cfg.Tuning.ResponseTimeout)
	}
	// untouched keys keep defaults
	if cfg.Tuning.LargeFaceThreshold != 25000 {
		t.Errorf("LargeFaceThreshold = %v, want 25000", cfg.Tuning.LargeFaceThreshold)
	}
}

func TestLoad_TuningFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("follow_up_delay: 250ms\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KIOSK_TUNING_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tuning.FollowUpDelay != 250*time.Millisecond {
		t.Errorf("FollowUpDelay = %v", cfg.Tuning.FollowUpDelay)
	}
}

func TestLoad_MissingTuningFile(t *testing.T) {
	t.Setenv("KIOSK_TUNING_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing tuning file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad ws scheme", func(c *Config) { c.LocalServerURL = "http://localhost:9000/ws" }, "LocalServerURL"},
		{"empty api url", func(c *Config) { c.APIServerURL = "" }, "APIServerURL"},
		{"empty port", func(c *Config) { c.Port = "" }, "Port"},
		{"inverted thresholds", func(c *Config) { c.Tuning.SmallFaceThreshold = 30000 }, "Tuning"},
		{"iou out of range", func(c *Config) { c.Tuning.IOUThreshold = 1.5 }, "Tuning"},
		{"jpeg quality", func(c *Config) { c.Tuning.JPEGQuality = 0 }, "Tuning"},
		{"zero timeout", func(c *Config) { c.Tuning.ResponseTimeout = 0 }, "Tuning"},
		{"zero frame interval", func(c *Config) { c.Tuning.FrameInterval = 0 }, "Tuning"},
		{"negative frame interval", func(c *Config) { c.Tuning.FrameInterval = -time.Millisecond }, "Tuning"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			err := cfg.Validate()
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cerr.Field != tc.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tc.field)
			}
		})
	}
}

func TestValidate_EqualThresholdsAllowed(t *testing.T) {
	cfg := Default()
	cfg.Tuning.SmallFaceThreshold = 25000
	cfg.Tuning.LargeFaceThreshold = 25000
	if err := cfg.Validate(); err != nil {
		t.Errorf("equal thresholds should validate: %v", err)
	}
}

// Package config provides configuration helpers for the kiosk commands.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the kiosk deployment.
const (
	DefaultLocalServerURL = "ws://localhost:9000/ws"
	DefaultAPIServerURL   = "http://localhost:8080"
	DefaultCameraDevice   = "0"
	DefaultFaceModelPath  = "models/face_detection_yunet.onnx"
	DefaultPort           = "9100"
	DefaultLogLevel       = "info"
)

// Config holds everything the kiosk process needs at startup.
// Flag parsing is done in cmd/kiosk; this struct is data only.
type Config struct {
	// LocalServerURL is the WebSocket endpoint of the recognition service.
	LocalServerURL string

	// APIServerURL is the base URL of the member REST API.
	APIServerURL string

	// CameraDevice is a device index ("0") or a video file path.
	CameraDevice string

	// FaceModelPath points at the YuNet ONNX model.
	FaceModelPath string

	// Port is where the kiosk state server listens.
	Port string

	// DatabaseURL enables the recognition history log when set.
	DatabaseURL string

	LogLevel string

	// TuningFile is an optional YAML file overriding Tuning.
	TuningFile string

	Tuning Tuning
}

// Tuning holds the thresholds and timings of the identification pipeline.
type Tuning struct {
	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`
	JPEGQuality int `yaml:"jpeg_quality"`

	SmallFaceThreshold float64 `yaml:"small_face_threshold"` // stay-CLOSE cut (px²)
	LargeFaceThreshold float64 `yaml:"large_face_threshold"` // enter-CLOSE cut (px²)
	IOUThreshold       float64 `yaml:"iou_threshold"`

	FrameInterval   time.Duration `yaml:"frame_interval"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	FollowUpDelay   time.Duration `yaml:"follow_up_delay"`

	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
}

// DefaultTuning returns the values the kiosk has shipped with.
func DefaultTuning() Tuning {
	return Tuning{
		FrameWidth:  640,
		FrameHeight: 480,
		JPEGQuality: 60,

		SmallFaceThreshold: 10000,
		LargeFaceThreshold: 25000,
		IOUThreshold:       0.5,

		FrameInterval:   16 * time.Millisecond,
		ResponseTimeout: 5 * time.Second,
		FollowUpDelay:   100 * time.Millisecond,

		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

// Default returns a config populated with defaults only.
func Default() Config {
	return Config{
		LocalServerURL: DefaultLocalServerURL,
		APIServerURL:   DefaultAPIServerURL,
		CameraDevice:   DefaultCameraDevice,
		FaceModelPath:  DefaultFaceModelPath,
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
		Tuning:         DefaultTuning(),
	}
}

// Load returns defaults overridden by environment variables and,
// when KIOSK_TUNING_FILE is set, by the tuning file.
func Load() (Config, error) {
	cfg := Default()
	cfg.LoadEnv()
	if cfg.TuningFile != "" {
		if err := cfg.LoadTuningFile(cfg.TuningFile); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// LoadEnv applies environment overrides.
func (c *Config) LoadEnv() {
	c.LocalServerURL = Env("WS_LOCAL_SERVER_URL", c.LocalServerURL)
	c.APIServerURL = Env("API_SERVER_URL", c.APIServerURL)
	c.CameraDevice = Env("CAMERA_DEVICE", c.CameraDevice)
	c.FaceModelPath = Env("FACE_MODEL_PATH", c.FaceModelPath)
	c.Port = Env("KIOSK_PORT", c.Port)
	c.DatabaseURL = Env("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = Env("LOG_LEVEL", c.LogLevel)
	c.TuningFile = Env("KIOSK_TUNING_FILE", c.TuningFile)
	c.Tuning.MaxReconnectAttempts = EnvInt("WS_MAX_RECONNECT_ATTEMPTS", c.Tuning.MaxReconnectAttempts)
}

// LoadTuningFile merges a YAML tuning file into c.Tuning.
// Keys missing from the file keep their current values.
func (c *Config) LoadTuningFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tuning file: %w", err)
	}
	return c.ApplyTuningYAML(data)
}

// ApplyTuningYAML merges YAML-encoded tuning values into c.Tuning.
func (c *Config) ApplyTuningYAML(data []byte) error {
	t := c.Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("parse tuning: %w", err)
	}
	c.Tuning = t
	return nil
}

// Validate checks that the configuration can run a kiosk.
func (c *Config) Validate() error {
	if err := checkURL("LocalServerURL", c.LocalServerURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("APIServerURL", c.APIServerURL, "http", "https"); err != nil {
		return err
	}
	if c.Port == "" {
		return &ConfigError{Field: "Port", Message: "KIOSK_PORT must not be empty"}
	}

	t := c.Tuning
	if t.SmallFaceThreshold <= 0 || t.LargeFaceThreshold <= 0 {
		return &ConfigError{Field: "Tuning", Message: "face thresholds must be positive"}
	}
	// Entering CLOSE must be harder than staying there.
	if t.SmallFaceThreshold > t.LargeFaceThreshold {
		return &ConfigError{Field: "Tuning", Message: "small_face_threshold must not exceed large_face_threshold"}
	}
	if t.IOUThreshold <= 0 || t.IOUThreshold > 1 {
		return &ConfigError{Field: "Tuning", Message: "iou_threshold must be in (0, 1]"}
	}
	if t.JPEGQuality < 1 || t.JPEGQuality > 100 {
		return &ConfigError{Field: "Tuning", Message: "jpeg_quality must be between 1 and 100"}
	}
	if t.FrameInterval <= 0 || t.ResponseTimeout <= 0 || t.FollowUpDelay <= 0 || t.ReconnectInterval <= 0 {
		return &ConfigError{Field: "Tuning", Message: "timeouts and intervals must be positive"}
	}
	if t.MaxReconnectAttempts < 0 {
		return &ConfigError{Field: "Tuning", Message: "max_reconnect_attempts must not be negative"}
	}
	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return &ConfigError{Field: field, Message: fmt.Sprintf("%s is not a valid URL: %q", field, raw)}
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return &ConfigError{Field: field, Message: fmt.Sprintf("%s must use one of %v", field, schemes)}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// Env returns the value of key, or def when unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt reads key as a non-negative integer.
// Returns def if the variable is unset, empty, or invalid.
func EnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return def
}

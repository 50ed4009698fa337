package camera

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-kiosk/pkg/facetrack"
	"github.com/teslashibe/go-kiosk/pkg/facetrack/detection"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("size = %dx%d, want 640x480", cfg.Width, cfg.Height)
	}
	if cfg.JPEGQuality != 60 {
		t.Errorf("JPEGQuality = %d, want 60", cfg.JPEGQuality)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"no device", func(c *Config) { c.Device = "" }, "device"},
		{"tiny width", func(c *Config) { c.Width = 10 }, "width"},
		{"huge height", func(c *Config) { c.Height = 5000 }, "height"},
		{"quality zero", func(c *Config) { c.JPEGQuality = 0 }, "jpeg_quality"},
		{"preview quality", func(c *Config) { c.PreviewQuality = 101 }, "preview_quality"},
		{"negative interval", func(c *Config) { c.PreviewInterval = -time.Second }, "preview_interval"},
		{"no model", func(c *Config) { c.Detector.ModelPath = "" }, "model"},
		{"confidence", func(c *Config) { c.Detector.ConfidenceThresh = 1.5 }, "confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			errs := cfg.Validate()
			if len(errs) != 1 || !strings.Contains(errs[0], tt.want) {
				t.Errorf("Validate() = %v, want one error mentioning %q", errs, tt.want)
			}
		})
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	if _, err := Open(cfg, quietLogger()); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestOpen_MissingDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = "/nonexistent/video.mp4"
	_, err := Open(cfg, quietLogger())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestSnapshot(t *testing.T) {
	c := &Camera{config: DefaultConfig(), latest: gocv.NewMat()}
	defer c.latest.Close()

	if _, err := c.Snapshot(); !errors.Is(err, facetrack.ErrNotReady) {
		t.Fatalf("err = %v before first frame, want ErrNotReady", err)
	}

	c.latest.Close()
	c.latest = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 0), 480, 640, gocv.MatTypeCV8UC3)

	data, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("snapshot is not a JPEG: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("snapshot size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestLoadJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.jpg")
	if err := os.WriteFile(path, createSolidJPEG(320, 240, color.RGBA{200, 10, 10, 255}), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := LoadJPEG(path, DefaultConfig())
	if err != nil {
		t.Fatalf("LoadJPEG: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("size = %dx%d, want 640x480", cfg.Width, cfg.Height)
	}

	if _, err := LoadJPEG(filepath.Join(t.TempDir(), "missing.jpg"), DefaultConfig()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOverlay_Throttle(t *testing.T) {
	var mu sync.Mutex
	var published int

	cfg := DefaultConfig()
	cfg.PreviewInterval = 100 * time.Millisecond
	o := NewOverlay(cfg, func([]byte, int, int) {
		mu.Lock()
		published++
		mu.Unlock()
	}, quietLogger())

	now := time.Unix(1000, 0)
	o.now = func() time.Time { return now }

	frame := &Frame{Mat: gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)}
	defer frame.Close()
	box := &detection.BoundingBox{OriginX: 100, OriginY: 100, Width: 120, Height: 140}

	o.Render(frame, box, facetrack.LevelNear)
	now = now.Add(50 * time.Millisecond)
	o.Render(frame, box, facetrack.LevelNear)
	now = now.Add(60 * time.Millisecond)
	o.Render(frame, nil, facetrack.LevelNone)

	if published != 2 {
		t.Errorf("published %d previews, want 2", published)
	}
}

func TestOverlay_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PreviewInterval = 0
	called := false
	o := NewOverlay(cfg, func([]byte, int, int) { called = true }, quietLogger())

	frame := &Frame{Mat: gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)}
	defer frame.Close()
	o.Render(frame, nil, facetrack.LevelNone)

	if called {
		t.Error("preview published with interval 0")
	}
}

func TestYuNetNew_InvalidPath(t *testing.T) {
	cfg := detection.DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"
	if _, err := NewYuNet(cfg); err == nil {
		t.Error("Expected error for invalid model path")
	}
}

func TestYuNetDetect_SolidImage(t *testing.T) {
	d := newTestYuNet(t)

	img, err := gocv.IMDecode(createSolidJPEG(640, 480, color.RGBA{0, 0, 255, 255}), gocv.IMReadColor)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	frame := &Frame{Mat: img}
	defer frame.Close()

	dets, err := d.Detect(frame, 0)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) > 0 {
		t.Errorf("Expected no detections in solid color image, got %d", len(dets))
	}
}

type otherFrame struct{}

func (otherFrame) Size() (int, int) { return 0, 0 }
func (otherFrame) Close() error     { return nil }

func TestYuNetDetect_RejectsForeignFrame(t *testing.T) {
	d := newTestYuNet(t)
	if _, err := d.Detect(otherFrame{}, 0); err == nil {
		t.Error("Expected error for non-camera frame")
	}
}

// Helper functions

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestYuNet(t *testing.T) *YuNet {
	t.Helper()
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}
	cfg := detection.DefaultConfig()
	cfg.ModelPath = modelPath

	d, err := NewYuNet(cfg)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func findModelPath() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != "/"; dir = filepath.Dir(dir) {
			modelPath := filepath.Join(dir, "models", "face_detection_yunet.onnx")
			if _, err := os.Stat(modelPath); err == nil {
				return modelPath
			}
		}
	}
	return ""
}

func createSolidJPEG(width, height int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}
